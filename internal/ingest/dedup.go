// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest runs the streaming ingestion engine: feed supervision,
// deduplication, buffering, and flush-to-disk.
package ingest

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
)

// Dedup is the in-memory set of record IDs already seen this process
// lifetime. It grows without bound on very long runs; that is an accepted
// limitation.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedup returns an empty dedup set.
func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]struct{})}
}

// MarkNew reports whether id has not been seen before, and records it.
// Check and insert happen under one lock, so two pollers cannot both
// observe the same ID as new.
func (d *Dedup) MarkNew(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

// Len returns the number of IDs seen.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// LoadJSONL scans an existing output file and collects prior record IDs so
// uniqueness holds across restarts. Lines that do not parse as JSON are
// skipped, not fatal. A missing file loads nothing and returns no error.
func (d *Dedup) LoadJSONL(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	loaded := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var line struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil || line.ID == "" {
			continue
		}
		if d.MarkNew(line.ID) {
			loaded++
		}
	}
	return loaded, scanner.Err()
}
