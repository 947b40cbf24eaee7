// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/research-stream/internal/httputil"
	"github.com/pdiddy/research-stream/pkg/types"
)

// biorxivFeedURL is the bioRxiv RSS endpoint. Declared as a var so tests
// can substitute an httptest server.
var biorxivFeedURL = "https://connect.biorxiv.org/biorxiv_xml.php?subject=neuroscience"

// BiorxivSource polls the bioRxiv preprint RSS feed.
type BiorxivSource struct {
	Client *http.Client
	Scorer Scorer

	cfg types.PollConfig
}

// NewBiorxivSource builds the bioRxiv poller.
func NewBiorxivSource(client *http.Client, scorer Scorer, cfg types.PollConfig) *BiorxivSource {
	return &BiorxivSource{Client: client, Scorer: scorer, cfg: cfg}
}

// Name returns the source tag carried on records.
func (s *BiorxivSource) Name() string { return types.SourceBiorxiv }

// Interval returns the delay between poll cycles. bioRxiv updates far less
// often than arXiv, so the default is longer.
func (s *BiorxivSource) Interval() time.Duration {
	if s.cfg.BiorxivInterval > 0 {
		return s.cfg.BiorxivInterval
	}
	return 120 * time.Second
}

// Fetch issues one request for the feed and parses the RSS (RDF) response
// into records.
func (s *BiorxivSource) Fetch(ctx context.Context) ([]types.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, biorxivFeedURL, nil)
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

	var feed biorxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, &ParseError{Source: s.Name(), Err: err}
	}

	var records []types.Record
	for _, item := range feed.Items {
		id := biorxivID(item)
		if id == "" {
			continue
		}

		r := types.Record{
			ID:        id,
			Source:    s.Name(),
			Title:     strings.TrimSpace(item.Title),
			Abstract:  excerpt(item.Description),
			Published: item.Date,
			URL:       strings.TrimSpace(item.Link),
		}

		if item.Creator != "" {
			r.Authors = splitCreators(item.Creator)
		}

		r.RelevanceScore = s.Scorer.Score(r.Title + " " + r.Abstract)

		records = append(records, r)
	}
	return records, nil
}

// bioRxiv RSS (RDF) XML structures. Dublin Core elements map by local name.
type biorxivFeed struct {
	Items []biorxivItem `xml:"item"`
}

type biorxivItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Date        string `xml:"date"`
	Identifier  string `xml:"identifier"`
	Creator     string `xml:"creator"`
}

// biorxivID prefers the DOI from dc:identifier (stripping any "doi:" prefix)
// and falls back to the item link.
func biorxivID(item biorxivItem) string {
	id := strings.TrimSpace(item.Identifier)
	id = strings.TrimPrefix(id, "doi:")
	if id != "" {
		return id
	}
	return strings.TrimSpace(item.Link)
}

// splitCreators splits the dc:creator element, which bioRxiv populates with
// a comma-separated author list in "Family, G." format. Pairs are kept
// together: "Doe, J., Smith, A." → ["Doe, J.", "Smith, A."].
func splitCreators(creator string) []string {
	parts := strings.Split(creator, ",")
	var authors []string
	for i := 0; i+1 < len(parts); i += 2 {
		name := strings.TrimSpace(parts[i]) + ", " + strings.TrimSpace(parts[i+1])
		authors = append(authors, name)
	}
	if len(parts)%2 == 1 {
		if last := strings.TrimSpace(parts[len(parts)-1]); last != "" {
			authors = append(authors, last)
		}
	}
	return authors
}
