// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"sync"

	"github.com/pdiddy/research-stream/pkg/types"
)

// Buffer holds newly discovered records between flushes. It is append-only
// during a cycle; Drain moves the contents out wholesale. There is no
// explicit capacity bound: depth is limited by the flush cadence.
type Buffer struct {
	mu      sync.Mutex
	records []types.Record
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a record to the end of the buffer.
func (b *Buffer) Append(r types.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, r)
}

// Len returns the current buffer depth.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Drain atomically takes the buffered records and resets the buffer.
// Ownership of the returned slice moves to the caller; no two drains can
// observe the same records.
func (b *Buffer) Drain() []types.Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := b.records
	b.records = nil
	return snapshot
}
