// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-archive-scraper/internal/blog"
)

// DefaultTable is where extracted posts land unless configured otherwise.
const DefaultTable = "scrapped_contents"

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidTableName reports whether name can be interpolated into DDL unquoted.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// Persist stages reported in PersistError.Op.
const (
	OpConnect     = "connect"
	OpBegin       = "begin"
	OpEnsureTable = "ensure_table"
	OpInsert      = "insert"
	OpCommit      = "commit"
)

// PersistError reports which stage of a Persist call failed. Op is
// OpConnect when the database was unreachable or refused the credentials.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist posts: %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// PostStoreConfig holds the connection parameters for the posts table.
type PostStoreConfig struct {
	Name     string
	User     string
	Password string
	Host     string
	Port     int
	SSLMode  string
	Table    string
}

// ConnString renders the config as a postgres:// URL understood by pgx.
func (c PostStoreConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// Conn is the subset of *pgx.Conn used by PostStore.
type Conn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Dialer opens a single connection for one Persist call.
type Dialer func(ctx context.Context, connString string) (Conn, error)

func dialPgx(ctx context.Context, connString string) (Conn, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PostStore appends records to the posts table inside one transaction per call.
type PostStore struct {
	connString string
	table      string
	dial       Dialer
	logger     *zap.Logger
}

// NewPostStore validates the config and returns a store that dials with pgx.
func NewPostStore(cfg PostStoreConfig, logger *zap.Logger) (*PostStore, error) {
	return NewPostStoreWithDialer(cfg, dialPgx, logger)
}

// NewPostStoreWithDialer constructs a store around a custom dialer (primarily for testing).
func NewPostStoreWithDialer(cfg PostStoreConfig, dial Dialer, logger *zap.Logger) (*PostStore, error) {
	if dial == nil {
		return nil, fmt.Errorf("dialer is required")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("database host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("database port must be > 0")
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	if !ValidTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostStore{
		connString: cfg.ConnString(),
		table:      table,
		dial:       dial,
		logger:     logger,
	}, nil
}

// Persist creates the table if needed and inserts records in order. All rows
// are committed together; any failure rolls the transaction back. The
// connection is closed before returning.
func (s *PostStore) Persist(ctx context.Context, records []blog.Record) (n int, err error) {
	conn, err := s.dial(ctx, s.connString)
	if err != nil {
		return 0, &PersistError{Op: OpConnect, Err: err}
	}
	defer func() {
		if closeErr := conn.Close(context.WithoutCancel(ctx)); closeErr != nil {
			s.logger.Warn("close postgres connection failed", zap.Error(closeErr))
		}
	}()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, &PersistError{Op: OpBegin, Err: err}
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Error("rollback failed", zap.Error(rbErr))
		}
	}()

	if _, err = tx.Exec(ctx, s.createTableSQL()); err != nil {
		return 0, &PersistError{Op: OpEnsureTable, Err: err}
	}

	insert := s.insertSQL()
	for i, rec := range records {
		if _, err = tx.Exec(ctx, insert, rec.Date, rec.Title, rec.Author, rec.Content); err != nil {
			return 0, &PersistError{Op: OpInsert, Err: fmt.Errorf("record %d: %w", i, err)}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, &PersistError{Op: OpCommit, Err: err}
	}
	s.logger.Info("posts committed", zap.String("table", s.table), zap.Int("rows", len(records)))
	return len(records), nil
}

func (s *PostStore) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	date TEXT,
	title TEXT,
	author TEXT,
	content TEXT
)`, s.table)
}

func (s *PostStore) insertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s (date, title, author, content) VALUES ($1, $2, $3, $4)`, s.table)
}
