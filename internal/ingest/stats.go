// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"sync"
	"time"

	"github.com/pdiddy/research-stream/pkg/types"
)

// Stats aggregates the engine's counters. It is mutated on every flush and
// every failure and snapshotted into the summary file; no history is kept.
type Stats struct {
	mu            sync.Mutex
	start         time.Time
	ingested      int
	failures      int
	totalRetries  int
	lastFetchTime time.Time
}

// NewStats returns counters anchored at the given start time.
func NewStats(start time.Time) *Stats {
	return &Stats{start: start}
}

// RecordFetch notes a fetch cycle that completed without error.
func (s *Stats) RecordFetch(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetchTime = at
}

// RecordFailure notes a fetch cycle that ended in an error.
func (s *Stats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures++
}

// RecordRetries adds n backoff sleeps to the retry counter.
func (s *Stats) RecordRetries(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalRetries += n
}

// RecordFlushed adds n records to the ingested total.
func (s *Stats) RecordFlushed(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingested += n
}

// Ingested returns the number of records flushed since start.
func (s *Stats) Ingested() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingested
}

// Summary snapshots the counters into the summary document.
func (s *Stats) Summary(status string, bufferDepth int, now time.Time) types.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	lastFetch := ""
	if !s.lastFetchTime.IsZero() {
		lastFetch = s.lastFetchTime.UTC().Format(time.RFC3339)
	}

	return types.Summary{
		LastUpdated:      now.UTC().Format(time.RFC3339),
		TotalPapers:      s.ingested,
		MonitoringStatus: status,
		PapersInBuffer:   bufferDepth,
		ConnectionHealth: types.ConnectionHealth{
			Failures:            s.failures,
			TotalRetries:        s.totalRetries,
			LastSuccessfulFetch: lastFetch,
			UptimeHours:         now.Sub(s.start).Hours(),
		},
	}
}
