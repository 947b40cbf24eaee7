// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/research-stream/pkg/types"
)

// flushRetryBase is the unit for the 2^attempt backoff between failed
// flush writes. Tests override this to avoid real sleeps.
var flushRetryBase = time.Second

const defaultMaxWriteAttempts = 5

// Sink persists buffered records to the append-only JSONL file and rewrites
// the summary file. The engine is the file's only writer, so no locking is
// needed.
type Sink struct {
	outputPath  string
	summaryPath string
	maxAttempts int
	log         *zap.Logger
}

// NewSink builds a sink from config, creating parent directories for both
// output paths.
func NewSink(cfg types.SinkConfig, log *zap.Logger) (*Sink, error) {
	maxAttempts := cfg.MaxWriteAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxWriteAttempts
	}

	for _, p := range []string{cfg.OutputPath, cfg.SummaryPath} {
		if dir := filepath.Dir(p); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating directory %s: %w", dir, err)
			}
		}
	}

	return &Sink{
		outputPath:  cfg.OutputPath,
		summaryPath: cfg.SummaryPath,
		maxAttempts: maxAttempts,
		log:         log,
	}, nil
}

// OutputPath returns the append-only record file path.
func (s *Sink) OutputPath() string { return s.outputPath }

// Append writes one JSON object per line, in order, to the output file in a
// single attempt.
func (s *Sink) Append(records []types.Record) error {
	f, err := os.OpenFile(s.outputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}

	enc := json.NewEncoder(f)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			f.Close()
			return fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	return nil
}

// AppendWithRetry writes the batch, retrying up to the attempt bound with
// 2^attempt-second backoff. It returns the number of failed attempts along
// with the final error. After exhausting retries the caller drops the batch;
// that data loss is an accepted, logged outcome.
func (s *Sink) AppendWithRetry(ctx context.Context, records []types.Record) (failed int, err error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err = s.Append(records)
		if err == nil {
			return failed, nil
		}
		failed++

		s.log.Warn("flush write failed",
			zap.String("category", string(CategoryPersistence)),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", s.maxAttempts),
			zap.Error(err))

		if attempt == s.maxAttempts-1 {
			break
		}

		backoff := flushRetryBase << uint(attempt)
		select {
		case <-ctx.Done():
			return failed, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return failed, err
}

// WriteSummary replaces the summary file contents wholesale. The write goes
// through a temp file and rename so a reader never observes a partial
// document.
func (s *Sink) WriteSummary(sum types.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(s.summaryPath), ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing summary: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, s.summaryPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
