// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"errors"

	"github.com/pdiddy/research-stream/internal/feed"
)

// Category classifies failures for logging and tests. Log lines carry the
// category as a structured field so consumers can key on it instead of
// message text.
type Category string

const (
	// CategoryNetwork covers timeouts and connection failures. Retried
	// with backoff, never surfaced past the supervisor.
	CategoryNetwork Category = "network"

	// CategoryParse covers malformed feed bodies. The cycle's batch is
	// dropped and polling continues.
	CategoryParse Category = "parse"

	// CategoryPersistence covers output-file write failures. Retried a
	// bounded number of times, then the batch is dropped.
	CategoryPersistence Category = "persistence"

	// CategoryFatal covers anything else escaping the source supervisors.
	// Triggers a full engine restart after a fixed delay.
	CategoryFatal Category = "fatal"
)

// Categorize maps an error from a fetch cycle to its failure category.
func Categorize(err error) Category {
	var parseErr *feed.ParseError
	if errors.As(err, &parseErr) {
		return CategoryParse
	}
	var transportErr *feed.TransportError
	if errors.As(err, &transportErr) {
		return CategoryNetwork
	}
	return CategoryFatal
}
