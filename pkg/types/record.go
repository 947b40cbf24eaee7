// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the research-stream pipeline.
package types

import "time"

// SourceBiorxiv is the source tag for records parsed from the bioRxiv feed.
// arXiv records carry "arxiv_<category>" (e.g. "arxiv_cs.AI") instead.
const SourceBiorxiv = "biorxiv"

// Record is one normalized publication entry parsed from a feed. Records are
// immutable once flushed: they are serialized as one JSON object per line in
// the append-only output file and never rewritten.
type Record struct {
	// ID is the source-scoped identifier: the arXiv ID without version
	// suffix (e.g. "2301.07041"), or the bioRxiv DOI.
	ID string `json:"id" yaml:"id"`

	// Source tags the originating feed: "arxiv_<category>" or "biorxiv".
	Source string `json:"source" yaml:"source"`

	// Title is the entry title as returned by the source.
	Title string `json:"title" yaml:"title"`

	// Authors lists the authors in source order. May be empty.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is an excerpt of the abstract, truncated at the poller.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Published is the publication timestamp exactly as the source
	// provided it. It is not parsed or validated.
	Published string `json:"published" yaml:"published"`

	// URL points at the entry's landing page.
	URL string `json:"url" yaml:"url"`

	// Category is the arXiv category for arXiv records, empty otherwise.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// RelevanceScore is a value in [0,1] from static keyword weighting.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// IngestedAt is the wall-clock time the record entered the buffer.
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
}
