// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	learned  [][2]string
	snippets [][2]string
	fail     bool
}

func (s *recordingSink) Memorize(ctx context.Context, prompt, sqlText string) error {
	if s.fail {
		return errors.New("store offline")
	}
	s.learned = append(s.learned, [2]string{prompt, sqlText})
	return nil
}

func (s *recordingSink) AddSnippet(ctx context.Context, text, source string) error {
	if s.fail {
		return errors.New("store offline")
	}
	s.snippets = append(s.snippets, [2]string{text, source})
	return nil
}

func TestSeedLearned(t *testing.T) {
	sink := &recordingSink{}
	ing := New(sink, nil, nil)

	n, err := ing.SeedLearned(t.Context())
	require.NoError(t, err)

	assert.Equal(t, len(SeedExamples), n)
	require.Len(t, sink.learned, len(SeedExamples))
	assert.Equal(t, "Which staff member sold the most products?", sink.learned[0][0])
}

func TestSeedDocs(t *testing.T) {
	sink := &recordingSink{}
	ing := New(sink, nil, nil)

	n, err := ing.SeedDocs(t.Context())
	require.NoError(t, err)

	assert.Equal(t, len(SeedGuidance), n)
	assert.Equal(t, "cte_scoping", sink.snippets[0][1])
}

func TestScrapeDocs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<p>The SELECT clause:</p>
<code>SELECT column_list FROM table_name WHERE condition</code>
<code>tiny</code>
<code>GROUP BY expression HAVING condition</code>
</body></html>`))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	ing := New(sink, srv.Client(), nil)

	n, err := ing.ScrapeDocs(t.Context(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	require.Len(t, sink.snippets, 2)
	assert.Equal(t, srv.URL, sink.snippets[0][1])
	assert.Contains(t, sink.snippets[0][0], "SELECT column_list")
}

func TestScrapeDocsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ing := New(&recordingSink{}, srv.Client(), nil)
	_, err := ing.ScrapeDocs(t.Context(), srv.URL)
	require.Error(t, err)
}

func TestSeedLearnedPropagatesSinkFailure(t *testing.T) {
	ing := New(&recordingSink{fail: true}, nil, nil)

	_, err := ing.SeedLearned(t.Context())
	require.Error(t, err)
}
