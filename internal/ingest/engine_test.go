// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/research-stream/internal/feed"
	"github.com/pdiddy/research-stream/internal/monitor"
	"github.com/pdiddy/research-stream/pkg/types"
)

// fakeSource replays a scripted sequence of fetch results. After the script
// is exhausted it keeps returning the last entry.
type fakeSource struct {
	name     string
	interval time.Duration

	mu      sync.Mutex
	script  []fetchResult
	calls   int
	panicOn int // 1-based call number that panics; 0 disables
}

type fetchResult struct {
	records []types.Record
	err     error
}

func (f *fakeSource) Name() string            { return f.name }
func (f *fakeSource) Interval() time.Duration { return f.interval }

func (f *fakeSource) Fetch(ctx context.Context) ([]types.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOn > 0 && f.calls == f.panicOn {
		panic("scripted panic")
	}
	idx := f.calls - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	if idx < 0 {
		return nil, nil
	}
	res := f.script[idx]
	return res.records, res.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func rec(id string) types.Record {
	return types.Record{ID: id, Source: "arxiv_cs.AI", Title: "paper " + id}
}

func testConfig(dir string) types.EngineConfig {
	return types.EngineConfig{
		Sink: types.SinkConfig{
			OutputPath:    filepath.Join(dir, "records.jsonl"),
			SummaryPath:   filepath.Join(dir, "summary.json"),
			FlushInterval: 10 * time.Millisecond,
		},
		Supervisor: types.SupervisorConfig{
			BackoffBase:  time.Millisecond,
			BackoffMax:   5 * time.Millisecond,
			MaxRetries:   3,
			RestartDelay: 5 * time.Millisecond,
		},
	}
}

func newTestEngine(t *testing.T, cfg types.EngineConfig, sources ...feed.Source) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, sources, monitor.NewMetrics(), zap.NewNop())
	require.NoError(t, err)
	return e
}

func readSummary(t *testing.T, path string) types.Summary {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var sum types.Summary
	require.NoError(t, json.Unmarshal(data, &sum))
	return sum
}

func idCounts(t *testing.T, path string) map[string]int {
	t.Helper()
	counts := make(map[string]int)
	for _, r := range readLines(t, path) {
		counts[r.ID]++
	}
	return counts
}

func TestEngine_PollOnceDeduplicates(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{name: "arxiv_cs.AI", script: []fetchResult{
		{records: []types.Record{rec("A1"), rec("A2")}},
		{records: []types.Record{rec("A1"), rec("A3")}},
	}}
	e := newTestEngine(t, testConfig(dir), src)

	// Cycle 1: two new entries.
	added, err := e.pollOnce(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	// Cycle 2: one already seen, one new.
	added, err = e.pollOnce(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, e.buffer.Len())
}

func TestEngine_FlushWritesEachIDOnce(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{name: "arxiv_cs.AI", script: []fetchResult{
		{records: []types.Record{rec("A1"), rec("A2")}},
		{records: []types.Record{rec("A1"), rec("A3")}},
	}}
	cfg := testConfig(dir)
	e := newTestEngine(t, cfg, src)

	_, err := e.pollOnce(context.Background(), src)
	require.NoError(t, err)
	e.flush(context.Background(), "active")

	_, err = e.pollOnce(context.Background(), src)
	require.NoError(t, err)
	e.flush(context.Background(), "active")

	counts := idCounts(t, cfg.Sink.OutputPath)
	assert.Equal(t, map[string]int{"A1": 1, "A2": 1, "A3": 1}, counts)
	assert.Equal(t, 3, e.stats.Ingested())
}

func TestEngine_FlushStampsIngestedAt(t *testing.T) {
	dir := t.TempDir()
	src := &fakeSource{name: "arxiv_cs.AI", script: []fetchResult{
		{records: []types.Record{rec("A1")}},
	}}
	cfg := testConfig(dir)
	e := newTestEngine(t, cfg, src)

	before := time.Now().Add(-time.Second)
	_, err := e.pollOnce(context.Background(), src)
	require.NoError(t, err)
	e.flush(context.Background(), "active")

	records := readLines(t, cfg.Sink.OutputPath)
	require.Len(t, records, 1)
	assert.True(t, records[0].IngestedAt.After(before))
}

func TestEngine_EmptyFlushStillWritesSummary(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	e := newTestEngine(t, cfg, &fakeSource{name: "arxiv_cs.AI"})

	e.flush(context.Background(), "active")

	// No record lines were written.
	_, err := os.Stat(cfg.Sink.OutputPath)
	assert.True(t, os.IsNotExist(err))

	sum := readSummary(t, cfg.Sink.SummaryPath)
	assert.Equal(t, "active", sum.MonitoringStatus)
	assert.Zero(t, sum.TotalPapers)
	assert.NotEmpty(t, sum.LastUpdated)
}

func TestEngine_ExhaustedWriteRetriesDropBatch(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	// The output path is a directory, so every write attempt fails.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "records.jsonl"), 0o755))

	src := &fakeSource{name: "arxiv_cs.AI", script: []fetchResult{
		{records: []types.Record{rec("A1"), rec("A2")}},
	}}
	e := newTestEngine(t, cfg, src)

	_, err := e.pollOnce(context.Background(), src)
	require.NoError(t, err)
	e.flush(context.Background(), "active")

	// The batch is dropped; each failed attempt counted as a retry.
	assert.Zero(t, e.buffer.Len())
	assert.Zero(t, e.stats.Ingested())
	sum := readSummary(t, cfg.Sink.SummaryPath)
	assert.Equal(t, 5, sum.ConnectionHealth.TotalRetries)

	// Polling continues unaffected.
	_, err = e.pollOnce(context.Background(), src)
	require.NoError(t, err)
}

func TestEngine_RunReloadsDedupFromDisk(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	// A previous run already flushed A1.
	prior, err := json.Marshal(rec("A1"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cfg.Sink.OutputPath, append(prior, '\n'), 0o644))

	src := &fakeSource{
		name:     "arxiv_cs.AI",
		interval: time.Millisecond,
		script: []fetchResult{
			{records: []types.Record{rec("A1"), rec("A3")}},
		},
	}
	e := newTestEngine(t, cfg, src)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	counts := idCounts(t, cfg.Sink.OutputPath)
	assert.Equal(t, map[string]int{"A1": 1, "A3": 1}, counts)
}

func TestEngine_TransientErrorsBackOffThenRecover(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	src := &fakeSource{
		name:     "arxiv_cs.AI",
		interval: time.Millisecond,
		script: []fetchResult{
			{err: &feed.TransportError{Source: "arxiv_cs.AI", Err: assert.AnError}},
			{err: &feed.TransportError{Source: "arxiv_cs.AI", Err: assert.AnError}},
			{records: []types.Record{rec("A1")}},
		},
	}
	e := newTestEngine(t, cfg, src)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	counts := idCounts(t, cfg.Sink.OutputPath)
	assert.Equal(t, 1, counts["A1"])

	sum := readSummary(t, cfg.Sink.SummaryPath)
	assert.Equal(t, 2, sum.ConnectionHealth.Failures)
	assert.GreaterOrEqual(t, sum.ConnectionHealth.TotalRetries, 2)
	assert.NotEmpty(t, sum.ConnectionHealth.LastSuccessfulFetch)

	// Both failures were transport errors, counted under their category.
	assert.Equal(t, 2.0,
		testutil.ToFloat64(e.metrics.FetchFailures.WithLabelValues("arxiv_cs.AI", "network")))
}

func TestEngine_RestartPreservesUnflushedRecords(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	// Flush cadence far beyond the test window: the buffer still holds A1
	// when the panic forces a restart.
	cfg.Sink.FlushInterval = time.Hour

	steady := &fakeSource{
		name:     "arxiv_cs.AI",
		interval: time.Millisecond,
		script: []fetchResult{
			{records: []types.Record{rec("A1")}},
		},
	}
	crashing := &fakeSource{
		name:     "biorxiv",
		interval: time.Millisecond,
		panicOn:  1,
	}
	e := newTestEngine(t, cfg, steady, crashing)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	// The restart flushed A1 before rebuilding the dedup set, so the
	// re-fetch after restart is filtered and the file holds A1 once.
	counts := idCounts(t, cfg.Sink.OutputPath)
	assert.Equal(t, map[string]int{"A1": 1}, counts)
}

func TestEngine_RestartsAfterPanic(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	src := &fakeSource{
		name:     "arxiv_cs.AI",
		interval: time.Millisecond,
		panicOn:  1,
		script: []fetchResult{
			{records: []types.Record{rec("A1")}},
		},
	}
	e := newTestEngine(t, cfg, src)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	// The panic crashed the first run; the engine restarted and ingested.
	assert.Greater(t, src.callCount(), 1)
	counts := idCounts(t, cfg.Sink.OutputPath)
	assert.Equal(t, 1, counts["A1"])
}

func TestEngine_FinalFlushOnCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	// Flush cadence far beyond the test window: only the final flush runs.
	cfg.Sink.FlushInterval = time.Hour

	src := &fakeSource{
		name:     "arxiv_cs.AI",
		interval: time.Millisecond,
		script: []fetchResult{
			{records: []types.Record{rec("A1")}},
		},
	}
	e := newTestEngine(t, cfg, src)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx))

	counts := idCounts(t, cfg.Sink.OutputPath)
	assert.Equal(t, 1, counts["A1"])

	sum := readSummary(t, cfg.Sink.SummaryPath)
	assert.Equal(t, "stopped", sum.MonitoringStatus)
}

func TestEngine_RequiresSources(t *testing.T) {
	_, err := NewEngine(testConfig(t.TempDir()), nil, monitor.NewMetrics(), zap.NewNop())
	assert.Error(t, err)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"transport", &feed.TransportError{Source: "s", Err: assert.AnError}, CategoryNetwork},
		{"parse", &feed.ParseError{Source: "s", Err: assert.AnError}, CategoryParse},
		{"other", assert.AnError, CategoryFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.err))
		})
	}
}
