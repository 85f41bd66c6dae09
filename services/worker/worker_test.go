package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/purchasewatcher/config"
	"sjsage522/purchasewatcher/internal/monitor"
	perrors "sjsage522/purchasewatcher/pkg/errors"
	"sjsage522/purchasewatcher/services/publisher"
)

// MockRunner implements Runner for testing
type MockRunner struct {
	mu      sync.Mutex
	calls   map[string]int
	windows map[string]int
	fail    map[string]error
	total   atomic.Int32
}

// Ensure MockRunner implements Runner
var _ Runner = (*MockRunner)(nil)

func NewMockRunner() *MockRunner {
	return &MockRunner{
		calls:   make(map[string]int),
		windows: make(map[string]int),
		fail:    make(map[string]error),
	}
}

func (m *MockRunner) Run(ctx context.Context, site config.Site, maxMinutes int) (*monitor.Result, error) {
	m.mu.Lock()
	m.calls[site.Name]++
	m.windows[site.Name] = maxMinutes
	err := m.fail[site.Name]
	m.mu.Unlock()
	m.total.Add(1)

	if err != nil {
		return &monitor.Result{Site: site.Name}, err
	}
	return &monitor.Result{Site: site.Name, Success: true, RecordsFound: 2, RecordsStored: 1}, nil
}

// MockPublisher implements publisher.Publisher for testing
type MockPublisher struct {
	trims atomic.Int32
}

// Ensure MockPublisher implements publisher.Publisher
var _ publisher.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, key string, message []byte) error { return nil }

func (m *MockPublisher) TrimStreams(ctx context.Context) error {
	m.trims.Add(1)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

var sites = []config.Site{
	{Name: "kurtas", ProductURL: "https://shop.example.com/p/kurta", IntervalMinutes: 30},
	{Name: "sarees", ProductURL: "https://shop.example.com/p/saree", IntervalMinutes: 60},
}

// TestWorkerRunAll tests that every site runs and streams are trimmed
func TestWorkerRunAll(t *testing.T) {
	runner := NewMockRunner()
	pub := &MockPublisher{}
	w := NewWorker(runner, sites, pub, "")

	results := w.RunAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "kurtas", results[0].Site)
	assert.Equal(t, "sarees", results[1].Site)
	assert.True(t, results[0].Success)

	assert.Equal(t, 1, runner.calls["kurtas"])
	assert.Equal(t, 30, runner.windows["kurtas"])
	assert.Equal(t, 60, runner.windows["sarees"])
	assert.Equal(t, int32(1), pub.trims.Load())
}

// TestWorkerRunAllWithError tests that one failing site does not stop the others
func TestWorkerRunAllWithError(t *testing.T) {
	runner := NewMockRunner()
	runner.fail["kurtas"] = errors.New("test error")
	w := NewWorker(runner, sites, nil, "")

	results := w.RunAll(context.Background())
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Equal(t, "test error", results[0].Error)
	assert.False(t, results[0].Retryable)
	assert.True(t, results[1].Success)
}

// TestWorkerRunAllMarksRetryable tests that transient failures are flagged on the result
func TestWorkerRunAllMarksRetryable(t *testing.T) {
	runner := NewMockRunner()
	runner.fail["kurtas"] = perrors.NewNetwork("kurtas", "failed to fetch", errors.New("connection reset"))
	runner.fail["sarees"] = perrors.NewRateLimit("sarees", time.Minute)
	w := NewWorker(runner, sites, nil, "")

	results := w.RunAll(context.Background())
	require.Len(t, results, 2)
	assert.True(t, results[0].Retryable)
	assert.False(t, results[1].Retryable)
	assert.False(t, results[1].Success)
}

// TestWorkerStartSchedule tests scheduled runs stop with the context
func TestWorkerStartSchedule(t *testing.T) {
	runner := NewMockRunner()
	w := NewWorker(runner, sites[:1], nil, "@every 1s")

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	err := w.Start(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, runner.total.Load(), int32(1))
}

func TestWorkerStartDisabled(t *testing.T) {
	w := NewWorker(NewMockRunner(), sites, nil, "")
	assert.NoError(t, w.Start(context.Background()))
}

func TestWorkerStartBadSchedule(t *testing.T) {
	w := NewWorker(NewMockRunner(), sites, nil, "not a schedule")
	assert.Error(t, w.Start(context.Background()))
}
