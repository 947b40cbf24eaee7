// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleArxivAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.07041v2</id>
    <title> Neural Correlates of Synthetic Cognition </title>
    <summary>
      We study neural plasticity in simulated cortical networks.
    </summary>
    <published>2023-01-17T14:02:33Z</published>
    <author><name>Ada Example</name></author>
    <author><name>Grace Sample</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.09999v1</id>
    <title>Unrelated Combinatorics</title>
    <summary>A counting argument.</summary>
    <published>2023-01-18T09:00:00Z</published>
    <author><name>Cy Clomatic</name></author>
  </entry>
  <entry>
    <id>http://example.org/not-an-arxiv-id</id>
    <title>Malformed entry</title>
    <summary>No arXiv ID.</summary>
  </entry>
</feed>`

func newTestArxivSource(t *testing.T, handler http.HandlerFunc) *ArxivSource {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	old := arxivAPIBase
	arxivAPIBase = ts.URL
	t.Cleanup(func() { arxivAPIBase = old })

	return NewArxivSource("cs.AI", ts.Client(), nil, DefaultScorer(), pollCfg())
}

func TestArxivSource_Fetch(t *testing.T) {
	var gotQuery string
	src := newTestArxivSource(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(sampleArxivAtom))
	})

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "search_query=cat:cs.AI")
	assert.Contains(t, gotQuery, "sortBy=submittedDate")
	assert.Contains(t, gotQuery, "max_results=50")

	// The entry without an arXiv ID is dropped.
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "2301.07041", r.ID)
	assert.Equal(t, "arxiv_cs.AI", r.Source)
	assert.Equal(t, "cs.AI", r.Category)
	assert.Equal(t, "Neural Correlates of Synthetic Cognition", r.Title)
	assert.Equal(t, "We study neural plasticity in simulated cortical networks.", r.Abstract)
	assert.Equal(t, "2023-01-17T14:02:33Z", r.Published)
	assert.Equal(t, "https://arxiv.org/abs/2301.07041", r.URL)
	assert.Equal(t, []string{"Ada Example", "Grace Sample"}, r.Authors)
	// "neural" and "plasticity" and "cognition" match the default table.
	assert.Greater(t, r.RelevanceScore, 0.5)
	assert.LessOrEqual(t, r.RelevanceScore, 1.0)

	assert.Equal(t, "2301.09999", records[1].ID)
	assert.InDelta(t, 0.5, records[1].RelevanceScore, 1e-9)
}

func TestArxivSource_FetchHTTPError(t *testing.T) {
	src := newTestArxivSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := src.Fetch(context.Background())
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "arxiv_cs.AI", transportErr.Source)
}

func TestArxivSource_FetchParseError(t *testing.T) {
	src := newTestArxivSource(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("this is not XML {"))
	})

	_, err := src.Fetch(context.Background())
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestArxivSource_FetchTimeout(t *testing.T) {
	src := newTestArxivSource(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline"))
}

func TestExtractArxivID(t *testing.T) {
	tests := []struct {
		name  string
		idURL string
		want  string
	}{
		{"versioned", "http://arxiv.org/abs/2301.07041v1", "2301.07041"},
		{"multi-digit version", "http://arxiv.org/abs/2301.07041v12", "2301.07041"},
		{"unversioned", "http://arxiv.org/abs/2301.07041", "2301.07041"},
		{"no abs prefix", "http://example.org/2301.07041", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractArxivID(tt.idURL))
		})
	}
}

func TestArxivSource_Interval(t *testing.T) {
	src := NewArxivSource("cs.AI", http.DefaultClient, nil, DefaultScorer(), pollCfg())
	assert.Equal(t, 30*time.Second, src.Interval())
}
