// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package feed polls publication feeds (arXiv Atom, bioRxiv RSS) and parses
// responses into normalized records.
package feed

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/research-stream/pkg/types"
)

// abstractExcerptLen bounds the abstract excerpt carried on each record.
const abstractExcerptLen = 500

// Source is a single polled feed. Fetch issues one HTTP request and returns
// the parsed entries for this cycle; it has no side effects beyond the
// network call. Deduplication and buffering are the caller's job.
type Source interface {
	Name() string
	Interval() time.Duration
	Fetch(ctx context.Context) ([]types.Record, error)
}

// TransportError wraps timeouts, connection failures, and non-200 responses.
// Transport errors are transient: the supervisor retries them with backoff.
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError wraps feed bodies that do not decode as Atom/RSS XML. The
// cycle's batch is dropped and polling continues.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// excerpt trims whitespace, collapses internal newlines, and truncates the
// text to the excerpt bound. The cut backs up to a rune boundary so a
// multi-byte character is never split.
func excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > abstractExcerptLen {
		cut := abstractExcerptLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
