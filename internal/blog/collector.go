package blog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-archive-scraper/internal/metrics"
)

const archiveContentType = "text/html; charset=utf-8"

// CollectorConfig controls traversal limits and archiving.
type CollectorConfig struct {
	Rules Rules
	// MaxPages stops the walk after this many successful fetches. Zero means no cap.
	MaxPages int
	// ArchivePrefix is the object key prefix for raw pages when a BlobStore is set.
	ArchivePrefix string
}

// Collector walks an archive by following "older posts" links and extracts
// a Record from every well-formed post container it meets on the way.
type Collector struct {
	cfg     CollectorConfig
	rules   compiledRules
	fetcher Fetcher
	archive BlobStore
	now     func() time.Time
	logger  *zap.Logger
}

// NewCollector compiles the rules and builds a Collector. archive may be nil.
func NewCollector(cfg CollectorConfig, fetcher Fetcher, archive BlobStore, logger *zap.Logger) (*Collector, error) {
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max pages must be >= 0")
	}
	rules, err := cfg.Rules.compile()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		cfg:     cfg,
		rules:   rules,
		fetcher: fetcher,
		archive: archive,
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}, nil
}

// Collect walks the archive starting at start until a page carries no
// "older posts" link. When a fetch fails the walk stops and the records
// gathered so far are returned together with the *FetchError.
func (c *Collector) Collect(ctx context.Context, start string) (Result, error) {
	var result Result
	visited := make(map[string]struct{})
	cursor := strings.TrimSpace(start)

	for cursor != "" {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("collect canceled: %w", err)
		}
		if c.cfg.MaxPages > 0 && result.Pages >= c.cfg.MaxPages {
			c.logger.Info("page limit reached",
				zap.Int("max_pages", c.cfg.MaxPages),
				zap.String("next_url", cursor),
			)
			break
		}
		visited[cursor] = struct{}{}

		page, err := c.fetcher.Fetch(ctx, cursor)
		if err != nil {
			metrics.ObservePage(metrics.PageFailed)
			fetchErr := asFetchError(cursor, err)
			c.logger.Error("page fetch failed; stopping pagination",
				zap.String("url", cursor),
				zap.Int("status_code", fetchErr.StatusCode),
				zap.Int("pages", result.Pages),
				zap.Int("records", len(result.Records)),
				zap.Error(fetchErr.Err),
			)
			return result, fetchErr
		}
		result.Pages++
		metrics.ObservePage(metrics.PageOK)
		c.archivePage(ctx, cursor, page)

		records, next, err := c.processPage(cursor, page)
		if err != nil {
			c.logger.Error("page parse failed; stopping pagination", zap.String("url", cursor), zap.Error(err))
			return result, &FetchError{URL: cursor, StatusCode: page.StatusCode, Err: err}
		}
		result.Records = append(result.Records, records.records...)
		result.Skipped += records.skipped
		if records.linkErr != nil {
			c.logger.Error("older posts link is invalid; stopping pagination",
				zap.String("url", cursor),
				zap.String("href", records.linkErr.URL),
				zap.Int("pages", result.Pages),
				zap.Int("records", len(result.Records)),
				zap.Error(records.linkErr.Err),
			)
			return result, records.linkErr
		}

		if _, seen := visited[next]; next != "" && seen {
			c.logger.Warn("older posts link points to a visited page; stopping pagination",
				zap.String("url", cursor),
				zap.String("next_url", next),
			)
			break
		}
		cursor = next
	}

	c.logger.Info("collection finished",
		zap.Int("pages", result.Pages),
		zap.Int("records", len(result.Records)),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

type pageRecords struct {
	records []Record
	skipped int
	// linkErr is set when the page carries an older posts link that cannot be followed.
	linkErr *FetchError
}

func (c *Collector) processPage(location string, page Page) (pageRecords, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return pageRecords{}, "", fmt.Errorf("parse html: %w", err)
	}

	base := page.URL
	if base == "" {
		base = location
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = nil
	}

	records, gaps := c.rules.extract(doc, base)
	for _, gap := range gaps {
		c.logger.Warn("skipping incomplete post",
			zap.String("url", gap.URL),
			zap.Int("container", gap.Index),
			zap.Strings("missing", gap.Missing),
		)
	}
	metrics.ObserveExtracted(len(records), len(gaps))

	out := pageRecords{records: records, skipped: len(gaps)}
	next, err := c.rules.nextLocation(doc, baseURL)
	if err != nil {
		out.linkErr = asFetchError(location, err)
	}
	c.logger.Debug("page extracted",
		zap.String("url", base),
		zap.Int("records", len(records)),
		zap.Int("skipped", len(gaps)),
		zap.String("next_url", next),
	)
	return out, next, nil
}

func (c *Collector) archivePage(ctx context.Context, location string, page Page) {
	if c.archive == nil {
		return
	}
	key := c.archiveKey(location)
	uri, err := c.archive.PutObject(ctx, key, archiveContentType, bytes.NewReader(page.Body))
	if err != nil {
		c.logger.Warn("archive page failed", zap.String("url", location), zap.String("key", key), zap.Error(err))
		return
	}
	c.logger.Debug("page archived", zap.String("url", location), zap.String("uri", uri))
}

func (c *Collector) archiveKey(location string) string {
	sum := sha256.Sum256([]byte(location))
	return path.Join(
		strings.Trim(c.cfg.ArchivePrefix, "/"),
		c.now().Format("2006-01-02"),
		fmt.Sprintf("%x.html", sum),
	)
}

func asFetchError(location string, err error) *FetchError {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	return &FetchError{URL: location, Err: err}
}
