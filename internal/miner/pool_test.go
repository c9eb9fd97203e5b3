// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package miner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlsage-dev/sqlsage/internal/engine"
)

type fakeSearcher struct {
	mu    sync.Mutex
	urls  []string
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.urls, nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, pageURL)

	body, ok := f.bodies[pageURL]
	if !ok {
		return "", errors.New("not found")
	}
	return body, nil
}

type fakeExecutor struct {
	failing bool
}

func (f *fakeExecutor) Query(ctx context.Context, query string) (engine.Result, error) {
	if f.failing {
		return engine.Result{}, errors.New("Binder Error: table does not exist")
	}
	return engine.Result{Columns: []string{"n"}, Rows: [][]any{{int64(1)}}}, nil
}

type fakeMemorizer struct {
	mu      sync.Mutex
	learned [][2]string
}

func (f *fakeMemorizer) Memorize(ctx context.Context, prompt, sqlText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.learned = append(f.learned, [2]string{prompt, sqlText})
	return nil
}

func (f *fakeMemorizer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.learned)
}

const minedBody = "```sql\nSELECT customer_id, COUNT(*) AS orders FROM orders GROUP BY customer_id\n```"

func newTestPool(searcher Searcher, fetcher Fetcher, gw *stubGateway, executor Executor, mem Memorizer) *Pool {
	adapter := NewAdapter(gw, "test-model", nil)
	opts := Options{
		Workers:        1,
		MaxResults:     5,
		MinBlockLength: 50,
		QueueWait:      10 * time.Millisecond,
		Topics:         []string{"advanced sql examples"},
	}
	return NewPool(searcher, fetcher, adapter, executor, mem, testSchema, opts, nil)
}

func runPoolBriefly(t *testing.T, p *Pool) {
	t.Helper()

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
}

func TestPoolLearnsValidatedQuery(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/guide"}}
	fetcher := &fakeFetcher{bodies: map[string]string{"https://example.com/guide": minedBody}}
	gw := &stubGateway{reply: "-- QUESTION: Count orders per customer\n-- SQL: SELECT customer_id, COUNT(*) FROM orders GROUP BY customer_id"}
	mem := &fakeMemorizer{}

	p := newTestPool(searcher, fetcher, gw, &fakeExecutor{}, mem)
	runPoolBriefly(t, p)

	require.GreaterOrEqual(t, mem.count(), 1)
	assert.Equal(t, "Count orders per customer", mem.learned[0][0])
	assert.True(t, strings.HasPrefix(mem.learned[0][1], "SELECT customer_id"))
}

func TestPoolSkipsSeenURLs(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/guide"}}
	fetcher := &fakeFetcher{bodies: map[string]string{"https://example.com/guide": minedBody}}
	gw := &stubGateway{reply: "N/A"}

	p := newTestPool(searcher, fetcher, gw, &fakeExecutor{}, &fakeMemorizer{})
	runPoolBriefly(t, p)

	// The searcher keeps returning the same URL; it must be fetched once.
	assert.GreaterOrEqual(t, searcher.calls, 2)
	assert.Len(t, fetcher.fetched, 1)
}

func TestPoolShortBlocksNeverReachTheModel(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/tiny"}}
	fetcher := &fakeFetcher{bodies: map[string]string{"https://example.com/tiny": "```sql\nSELECT 1\n```"}}
	gw := &stubGateway{reply: "SELECT 1"}

	p := newTestPool(searcher, fetcher, gw, &fakeExecutor{}, &fakeMemorizer{})
	runPoolBriefly(t, p)

	assert.Zero(t, gw.calls)
}

func TestPoolRejectedQueryNotMemorized(t *testing.T) {
	searcher := &fakeSearcher{urls: []string{"https://example.com/guide"}}
	fetcher := &fakeFetcher{bodies: map[string]string{"https://example.com/guide": minedBody}}
	gw := &stubGateway{reply: "-- SQL: SELECT broken FROM nosuchtable"}
	mem := &fakeMemorizer{}

	p := newTestPool(searcher, fetcher, gw, &fakeExecutor{failing: true}, mem)
	runPoolBriefly(t, p)

	assert.Zero(t, mem.count())
}

func TestPoolStopsOnCancellation(t *testing.T) {
	searcher := &fakeSearcher{}
	fetcher := &fakeFetcher{}
	gw := &stubGateway{}

	p := newTestPool(searcher, fetcher, gw, &fakeExecutor{}, &fakeMemorizer{})

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
}

func TestTruncateOnRuneKeepsValidUTF8(t *testing.T) {
	// "é" is two bytes; cutting at 6 would land mid-rune.
	s := "SELECT" + strings.Repeat("é", 4)
	got := truncateOnRune(s, 7)
	assert.Equal(t, "SELECT", got)
	assert.True(t, utf8.ValidString(got))

	got = truncateOnRune(s, 8)
	assert.Equal(t, "SELECTé", got)

	assert.Equal(t, "short", truncateOnRune("short", 100))
}
