// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/research-stream/internal/httputil"
	"github.com/pdiddy/research-stream/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests
// can substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivSource polls one arXiv category for recently submitted papers.
type ArxivSource struct {
	Category string
	Client   *http.Client

	// Limiter paces requests to the arXiv API. It is shared across all
	// category pollers so the combined request rate stays polite.
	Limiter *rate.Limiter

	Scorer Scorer

	cfg types.PollConfig
}

// NewArxivSource builds a poller for one arXiv category.
func NewArxivSource(category string, client *http.Client, limiter *rate.Limiter, scorer Scorer, cfg types.PollConfig) *ArxivSource {
	return &ArxivSource{
		Category: category,
		Client:   client,
		Limiter:  limiter,
		Scorer:   scorer,
		cfg:      cfg,
	}
}

// Name returns the source tag carried on records ("arxiv_<category>").
func (s *ArxivSource) Name() string { return "arxiv_" + s.Category }

// Interval returns the delay between poll cycles for this source.
func (s *ArxivSource) Interval() time.Duration {
	if s.cfg.ArxivInterval > 0 {
		return s.cfg.ArxivInterval
	}
	return 30 * time.Second
}

// Fetch issues one query for the newest submissions in the category and
// parses the Atom response into records.
func (s *ArxivSource) Fetch(ctx context.Context) ([]types.Record, error) {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Source: s.Name(), Err: err}
		}
	}

	maxResults := s.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 50
	}

	url := fmt.Sprintf("%s?search_query=cat:%s&sortBy=submittedDate&sortOrder=descending&max_results=%d",
		arxivAPIBase, s.Category, maxResults)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, 0)
	if err != nil {
		return nil, &TransportError{Source: s.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Source: s.Name(), Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &ParseError{Source: s.Name(), Err: err}
	}

	var records []types.Record
	for _, entry := range feed.Entries {
		arxivID := extractArxivID(entry.ID)
		if arxivID == "" {
			continue
		}

		r := types.Record{
			ID:       arxivID,
			Source:   s.Name(),
			Title:    strings.TrimSpace(entry.Title),
			Abstract: excerpt(entry.Summary),
			// Raw source timestamp, kept unparsed.
			Published: entry.Published,
			URL:       "https://arxiv.org/abs/" + arxivID,
			Category:  s.Category,
		}

		for _, a := range entry.Authors {
			r.Authors = append(r.Authors, strings.TrimSpace(a.Name))
		}

		r.RelevanceScore = s.Scorer.Score(r.Title + " " + r.Abstract)

		records = append(records, r)
	}
	return records, nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
