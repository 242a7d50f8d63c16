package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/blog-archive-scraper/internal/blog"
	pubmemory "github.com/JakeFAU/blog-archive-scraper/internal/publisher/memory"
)

type fakeCollector struct {
	result blog.Result
	err    error
	start  string
}

func (f *fakeCollector) Collect(_ context.Context, start string) (blog.Result, error) {
	f.start = start
	return f.result, f.err
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Persist(ctx context.Context, records []blog.Record) (int, error) {
	args := m.Called(ctx, records)
	return args.Int(0), args.Error(1)
}

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) { return f.id, f.err }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, any) (string, error) {
	return "", errors.New("topic unavailable")
}

func twoRecords() []blog.Record {
	return []blog.Record{
		{Date: "D1", Title: "T1", Author: "A1", Content: "C1"},
		{Date: "D2", Title: "T2", Author: blog.UnknownAuthor, Content: "C2"},
	}
}

func newTestRunner(t *testing.T, cfg Config, c Collector, sink blog.RecordSink, pub blog.Publisher, logger *zap.Logger) *Runner {
	t.Helper()
	r, err := New(cfg, c, sink, pub, fixedIDs{id: "run-1"}, logger)
	require.NoError(t, err)
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func TestRunPersistsCollectedRecords(t *testing.T) {
	t.Parallel()

	records := twoRecords()
	collector := &fakeCollector{result: blog.Result{Records: records, Pages: 2, Skipped: 1}}
	sink := &mockSink{}
	sink.On("Persist", mock.Anything, records).Return(2, nil).Once()
	pub := pubmemory.New()

	r := newTestRunner(t, Config{StartURL: "https://blog.example.com/"}, collector, sink, pub, nil)
	summary := r.Run(context.Background())

	sink.AssertExpectations(t)
	assert.Equal(t, "https://blog.example.com/", collector.start)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, OutcomeOK, summary.Outcome)
	assert.Equal(t, 2, summary.Pages)
	assert.Equal(t, 2, summary.Records)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Persisted)
	assert.Empty(t, summary.FetchError)
	assert.True(t, summary.FinishedAt.After(summary.StartedAt))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, summary, msgs[0])
}

func TestRunSkipsPersistWhenNothingCollected(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := &mockSink{}

	r := newTestRunner(t, Config{StartURL: "https://blog.example.com/"}, &fakeCollector{}, sink, nil, zap.New(core))
	summary := r.Run(context.Background())

	sink.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything)
	assert.Equal(t, OutcomeEmpty, summary.Outcome)
	assert.Equal(t, 1, logs.FilterMessage("no records collected; skipping persist").Len())
}

func TestRunPersistsPartialResultAfterFetchError(t *testing.T) {
	t.Parallel()

	records := twoRecords()[:1]
	fetchErr := &blog.FetchError{URL: "https://blog.example.com/page2", StatusCode: http.StatusBadGateway}
	collector := &fakeCollector{result: blog.Result{Records: records, Pages: 1}, err: fetchErr}
	sink := &mockSink{}
	sink.On("Persist", mock.Anything, records).Return(1, nil).Once()
	core, logs := observer.New(zapcore.InfoLevel)

	r := newTestRunner(t, Config{}, collector, sink, nil, zap.New(core))
	summary := r.Run(context.Background())

	sink.AssertExpectations(t)
	assert.Equal(t, OutcomePartial, summary.Outcome)
	assert.Equal(t, fetchErr.Error(), summary.FetchError)
	assert.Equal(t, 1, summary.Persisted)

	entries := logs.FilterMessage("collection stopped early").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "run-1", entries[0].ContextMap()["run_id"])
}

func TestRunFetchFailureWithNothingCollected(t *testing.T) {
	t.Parallel()

	collector := &fakeCollector{err: &blog.FetchError{URL: "https://blog.example.com/", Err: errors.New("connection refused")}}
	sink := &mockSink{}

	r := newTestRunner(t, Config{}, collector, sink, nil, nil)
	summary := r.Run(context.Background())

	sink.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything)
	assert.Equal(t, OutcomeFetchFailed, summary.Outcome)
	assert.Contains(t, summary.FetchError, "connection refused")
}

func TestRunLogsPersistFailure(t *testing.T) {
	t.Parallel()

	records := twoRecords()
	sink := &mockSink{}
	sink.On("Persist", mock.Anything, records).Return(0, errors.New("insert: boom")).Once()
	core, logs := observer.New(zapcore.ErrorLevel)

	r := newTestRunner(t, Config{}, &fakeCollector{result: blog.Result{Records: records, Pages: 1}}, sink, failingPublisher{}, zap.New(core))
	summary := r.Run(context.Background())

	assert.Equal(t, OutcomePersistFailed, summary.Outcome)
	assert.Equal(t, "insert: boom", summary.PersistError)
	assert.Zero(t, summary.Persisted)
	assert.Equal(t, 1, logs.FilterMessage("persist failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("publish run summary failed").Len())
}

func TestRunPublishesAfterCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	collector := &fakeCollector{err: context.Canceled}
	pub := pubmemory.New()

	r := newTestRunner(t, Config{}, collector, &mockSink{}, pub, nil)
	summary := r.Run(ctx)

	assert.Equal(t, OutcomeFetchFailed, summary.Outcome)
	assert.Len(t, pub.Messages(), 1)
}

func TestRunPushesMetrics(t *testing.T) {
	t.Parallel()

	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path.Store(req.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	records := twoRecords()
	sink := &mockSink{}
	sink.On("Persist", mock.Anything, records).Return(2, nil)

	r := newTestRunner(t, Config{PushgatewayURL: srv.URL, MetricsJob: "blogscraper"},
		&fakeCollector{result: blog.Result{Records: records, Pages: 1}}, sink, nil, nil)
	r.Run(context.Background())

	got, _ := path.Load().(string)
	assert.True(t, strings.HasSuffix(got, "/metrics/job/blogscraper/run_id/run-1"), got)
}

func TestRunContinuesWithoutRunID(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	r, err := New(Config{}, &fakeCollector{}, &mockSink{}, nil, fixedIDs{err: errors.New("entropy")}, zap.New(core))
	require.NoError(t, err)

	summary := r.Run(context.Background())
	assert.Empty(t, summary.RunID)
	assert.Equal(t, 1, logs.FilterMessage("run id generation failed").Len())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil, &mockSink{}, nil, nil, nil)
	require.Error(t, err)
	_, err = New(Config{}, &fakeCollector{}, nil, nil, nil, nil)
	require.Error(t, err)
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    Summary
		want string
	}{
		{"ok", Summary{Records: 3}, OutcomeOK},
		{"empty", Summary{}, OutcomeEmpty},
		{"partial", Summary{Records: 1, FetchError: "x"}, OutcomePartial},
		{"fetch failed", Summary{FetchError: "x"}, OutcomeFetchFailed},
		{"persist wins", Summary{Records: 1, FetchError: "x", PersistError: "y"}, OutcomePersistFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, outcomeOf(tt.s))
		})
	}
}
