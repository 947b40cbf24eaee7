// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/research-stream/internal/feed"
	"github.com/pdiddy/research-stream/internal/monitor"
	"github.com/pdiddy/research-stream/pkg/types"
)

// sourceState is the supervisor state for one polled feed. There is no
// terminal failure state: the supervisor favors uptime over fast-fail and
// keeps retrying indefinitely.
type sourceState int

const (
	stateConnecting sourceState = iota
	statePolling
	stateBackoff
)

const defaultRestartDelay = 30 * time.Second

// Engine owns the dedup set, buffer, counters, and sink, and supervises the
// per-source polling loops. All state is process-local; the output and
// summary files are the only persisted artifacts.
type Engine struct {
	cfg     types.EngineConfig
	sources []feed.Source
	metrics *monitor.Metrics
	log     *zap.Logger

	dedup  *Dedup
	buffer *Buffer
	stats  *Stats
	sink   *Sink
}

// NewEngine builds an engine over the given sources.
func NewEngine(cfg types.EngineConfig, sources []feed.Source, metrics *monitor.Metrics, log *zap.Logger) (*Engine, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no feed sources configured")
	}

	sink, err := NewSink(cfg.Sink, log)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:     cfg,
		sources: sources,
		metrics: metrics,
		log:     log,
		dedup:   NewDedup(),
		buffer:  NewBuffer(),
		stats:   NewStats(time.Now()),
		sink:    sink,
	}, nil
}

// Summary snapshots the engine's live status document.
func (e *Engine) Summary() types.Summary {
	return e.stats.Summary("active", e.buffer.Len(), time.Now())
}

// Run polls all sources until ctx is cancelled. Any error escaping the
// source supervisors is treated as fatal-unexpected: it is logged, the
// engine waits out the restart delay, and everything restarts from scratch
// including the dedup reload. Flushed records are never lost across a
// restart. On cancellation a final flush runs before returning.
func (e *Engine) Run(ctx context.Context) error {
	for {
		err := e.runOnce(ctx)

		if ctx.Err() != nil {
			e.flush(context.Background(), "stopped")
			e.log.Info("engine stopped", zap.Int("records_ingested", e.stats.Ingested()))
			return nil
		}

		// Persist anything still buffered before state is rebuilt. The
		// dedup reload only sees the output file, so an unflushed record
		// surviving in the buffer would be re-fetched and written twice.
		e.flush(ctx, "active")

		restartDelay := e.cfg.Supervisor.RestartDelay
		if restartDelay <= 0 {
			restartDelay = defaultRestartDelay
		}

		e.log.Error("engine run failed, restarting",
			zap.String("category", string(CategoryFatal)),
			zap.Duration("restart_delay", restartDelay),
			zap.Error(err))

		if !sleepCtx(ctx, restartDelay) {
			e.flush(context.Background(), "stopped")
			return nil
		}
	}
}

// runOnce reloads dedup state from disk and runs the source supervisors and
// the flush loop until ctx is cancelled or one of them fails unexpectedly.
func (e *Engine) runOnce(ctx context.Context) error {
	e.dedup = NewDedup()
	loaded, err := e.dedup.LoadJSONL(e.sink.OutputPath())
	if err != nil {
		// Fail open: a partial or unreadable file costs dedup coverage,
		// not availability.
		e.log.Warn("dedup reload failed",
			zap.String("category", string(CategoryPersistence)),
			zap.Error(err))
	}
	e.log.Info("engine starting",
		zap.Int("sources", len(e.sources)),
		zap.Int("known_ids", loaded))

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range e.sources {
		g.Go(func() error {
			return e.superviseSource(gctx, src)
		})
	}
	g.Go(func() error {
		return e.flushLoop(gctx)
	})

	return g.Wait()
}

// superviseSource runs one source's polling loop through the
// Connecting → Polling → Backoff state machine. Transient errors send it to
// Backoff with capped exponential delay; exhausting the retry budget only
// resets the counter. Panics are converted to errors so the outer restart
// loop can take over.
func (e *Engine) superviseSource(ctx context.Context, src feed.Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.Name(), r)
		}
	}()

	backoff := NewBackoff(e.cfg.Supervisor.BackoffBase, e.cfg.Supervisor.BackoffMax)
	state := stateConnecting

	for {
		if ctx.Err() != nil {
			return nil
		}

		switch state {
		case stateConnecting:
			// Polling is stateless HTTP: there is no connection to
			// establish, only the transition into the cycle loop.
			state = statePolling

		case statePolling:
			added, pollErr := e.pollOnce(ctx, src)
			if pollErr != nil {
				if ctx.Err() != nil {
					return nil
				}
				category := Categorize(pollErr)
				e.stats.RecordFailure()
				e.metrics.FetchFailures.WithLabelValues(src.Name(), string(category)).Inc()
				e.log.Warn("poll cycle failed",
					zap.String("source", src.Name()),
					zap.String("category", string(category)),
					zap.Error(pollErr))
				state = stateBackoff
				continue
			}

			backoff.Reset()
			e.stats.RecordFetch(time.Now())
			if added > 0 {
				e.log.Info("records buffered",
					zap.String("source", src.Name()),
					zap.Int("new", added),
					zap.Int("buffer_depth", e.buffer.Len()))
			}

			if !sleepCtx(ctx, src.Interval()) {
				return nil
			}

		case stateBackoff:
			delay := backoff.Next()
			e.stats.RecordRetries(1)

			maxRetries := e.cfg.Supervisor.MaxRetries
			if maxRetries > 0 && backoff.Attempts() > maxRetries {
				e.log.Info("retry budget exhausted, resetting counter",
					zap.String("source", src.Name()),
					zap.Int("retries", backoff.Attempts()))
				backoff.Reset()
			}

			if !sleepCtx(ctx, delay) {
				return nil
			}
			state = stateConnecting
		}
	}
}

// pollOnce runs one fetch cycle for a source: fetch under the per-request
// timeout, then dedup-filter into the buffer. Returns the number of new
// records buffered.
func (e *Engine) pollOnce(ctx context.Context, src feed.Source) (int, error) {
	fctx := ctx
	if timeout := e.cfg.Poll.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	records, err := src.Fetch(fctx)
	if err != nil {
		return 0, err
	}

	added := 0
	now := time.Now().UTC()
	for _, r := range records {
		if r.ID == "" || !e.dedup.MarkNew(r.ID) {
			continue
		}
		r.IngestedAt = now
		e.buffer.Append(r)
		added++
	}

	e.metrics.BufferDepth.Set(float64(e.buffer.Len()))
	return added, nil
}

// flushLoop drains the buffer to disk on a fixed cadence.
func (e *Engine) flushLoop(ctx context.Context) error {
	interval := e.cfg.Sink.FlushInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.flush(ctx, "active")
		}
	}
}

// flush drains the buffer, appends the snapshot to the output file, and
// rewrites the summary. An empty drain writes no record lines but still
// refreshes the summary. After exhausted write retries the snapshot is
// dropped and polling continues unaffected.
func (e *Engine) flush(ctx context.Context, status string) {
	batch := e.buffer.Drain()

	if len(batch) > 0 {
		failedAttempts, err := e.sink.AppendWithRetry(ctx, batch)
		e.stats.RecordRetries(failedAttempts)
		e.metrics.FlushRetries.Add(float64(failedAttempts))

		if err != nil {
			e.log.Error("dropping batch after exhausted write retries",
				zap.String("category", string(CategoryPersistence)),
				zap.Int("records_lost", len(batch)),
				zap.Error(err))
		} else {
			e.stats.RecordFlushed(len(batch))
			e.metrics.RecordsIngested.Add(float64(len(batch)))
			e.log.Info("flushed records",
				zap.Int("count", len(batch)),
				zap.Int("total", e.stats.Ingested()))
		}
	}

	e.metrics.BufferDepth.Set(float64(e.buffer.Len()))

	if err := e.sink.WriteSummary(e.stats.Summary(status, e.buffer.Len(), time.Now())); err != nil {
		e.log.Warn("summary write failed",
			zap.String("category", string(CategoryPersistence)),
			zap.Error(err))
	}
}

// sleepCtx waits for d unless ctx is cancelled first. It reports whether
// the full wait elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
