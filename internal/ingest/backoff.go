// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import "time"

// Backoff computes capped exponential delays between retries of a failing
// source. The delay after k consecutive failures is min(base·2^k, max).
type Backoff struct {
	base     time.Duration
	max      time.Duration
	attempts int
}

// NewBackoff returns a backoff starting at base and capped at max.
// Non-positive arguments fall back to 1s / 300s.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max <= 0 {
		max = 300 * time.Second
	}
	return &Backoff{base: base, max: max}
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	d := b.base << uint(b.attempts)
	if d > b.max || d <= 0 {
		d = b.max
	}
	b.attempts++
	return d
}

// Attempts returns the number of delays taken since the last reset.
func (b *Backoff) Attempts() int { return b.attempts }

// Reset clears the attempt counter after a success, or after the retry
// budget is exhausted. The supervisor never stops permanently.
func (b *Backoff) Reset() { b.attempts = 0 }
