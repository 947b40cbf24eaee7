// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBiorxivRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
         xmlns:dc="http://purl.org/dc/elements/1.1/"
         xmlns="http://purl.org/rss/1.0/">
  <channel rdf:about="http://connect.biorxiv.org">
    <title>bioRxiv Subject Collection: Neuroscience</title>
  </channel>
  <item rdf:about="http://biorxiv.org/cgi/content/short/2023.01.15.524098v1">
    <title>Cortical organoid plasticity under stimulation</title>
    <link>http://biorxiv.org/cgi/content/short/2023.01.15.524098v1</link>
    <description>We characterize plasticity in cortical organoid cultures.</description>
    <dc:date>2023-01-16</dc:date>
    <dc:identifier>doi:10.1101/2023.01.15.524098</dc:identifier>
    <dc:creator>Doe, J., Smith, A.</dc:creator>
  </item>
  <item rdf:about="http://biorxiv.org/no-identifier">
    <title>Entry without identifier</title>
    <link>http://biorxiv.org/no-identifier</link>
    <description>Falls back to the link as ID.</description>
    <dc:date>2023-01-16</dc:date>
  </item>
</rdf:RDF>`

func newTestBiorxivSource(t *testing.T, handler http.HandlerFunc) *BiorxivSource {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := biorxivFeedURL
	biorxivFeedURL = ts.URL
	t.Cleanup(func() { biorxivFeedURL = old })

	return NewBiorxivSource(ts.Client(), DefaultScorer(), pollCfg())
}

func TestBiorxivSource_Fetch(t *testing.T) {
	src := newTestBiorxivSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(sampleBiorxivRSS))
	})

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "10.1101/2023.01.15.524098", r.ID)
	assert.Equal(t, "biorxiv", r.Source)
	assert.Empty(t, r.Category)
	assert.Equal(t, "Cortical organoid plasticity under stimulation", r.Title)
	assert.Equal(t, "2023-01-16", r.Published)
	assert.Equal(t, []string{"Doe, J.", "Smith, A."}, r.Authors)
	// "organoid" and "plasticity" match the default table.
	assert.Greater(t, r.RelevanceScore, 0.5)

	// Missing dc:identifier falls back to the link.
	assert.Equal(t, "http://biorxiv.org/no-identifier", records[1].ID)
	assert.Empty(t, records[1].Authors)
}

func TestBiorxivSource_FetchHTTPError(t *testing.T) {
	src := newTestBiorxivSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := src.Fetch(context.Background())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "biorxiv", transportErr.Source)
}

func TestBiorxivSource_FetchParseError(t *testing.T) {
	src := newTestBiorxivSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"json": "not xml"}`))
	})

	_, err := src.Fetch(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestBiorxivSource_Interval(t *testing.T) {
	src := NewBiorxivSource(http.DefaultClient, DefaultScorer(), pollCfg())
	assert.Equal(t, 120*time.Second, src.Interval())
}

func TestSplitCreators(t *testing.T) {
	tests := []struct {
		name    string
		creator string
		want    []string
	}{
		{"two authors", "Doe, J., Smith, A.", []string{"Doe, J.", "Smith, A."}},
		{"one author", "Doe, J.", []string{"Doe, J."}},
		{"plain name", "Jane Doe", []string{"Jane Doe"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitCreators(tt.creator))
		})
	}
}
