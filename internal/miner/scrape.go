// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package miner

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// Real browser identification; several SQL tutorial hosts reject default
// library user agents with a 403.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// maxFetchBytes caps how much of a page body is read. SQL examples live in
// page text, not in multi-megabyte assets.
const maxFetchBytes = 4 << 20

// Fetcher retrieves page bodies for harvesting.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// HTTPFetcher fetches pages with a browser user agent and a bounded read.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A nil client falls back to
// http.DefaultClient; callers normally pass one with a timeout set.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPFetcher{client: client}
}

// Fetch returns the body of pageURL. Any non-200 status is an error; the
// caller treats all fetch errors as skip-and-continue.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", sageerr.Wrap(err, sageerr.CodeMinerFetchFailure, "building fetch request", sageerr.FieldURL(pageURL))
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", sageerr.Wrap(err, sageerr.CodeMinerFetchFailure, "fetching page", sageerr.FieldURL(pageURL))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", sageerr.Errorf(sageerr.CodeMinerFetchFailure, "fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", sageerr.Wrap(err, sageerr.CodeMinerFetchFailure, "reading page body", sageerr.FieldURL(pageURL))
	}

	return string(body), nil
}

var harvestFenceRe = regexp.MustCompile("(?is)```sql(.*?)```")

// HarvestBlocks extracts candidate SQL blocks from a fetched page. Raw SQL
// URLs (a .sql path, or a raw-file host path) contribute the entire body;
// HTML pages contribute fenced markdown blocks plus the text of code and
// pre elements that look like queries. Blocks shorter than minLen are
// discarded as noise before any model call is spent on them.
func HarvestBlocks(pageURL, body string, minLen int) []string {
	if !strings.Contains(strings.ToUpper(body), "SELECT") {
		return nil
	}

	var blocks []string

	if isRawSQLURL(pageURL) {
		blocks = append(blocks, body)
	} else {
		for _, m := range harvestFenceRe.FindAllStringSubmatch(body, -1) {
			blocks = append(blocks, strings.TrimSpace(m[1]))
		}

		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
			doc.Find("code, pre").Each(func(_ int, sel *goquery.Selection) {
				text := strings.TrimSpace(sel.Text())
				if strings.Contains(strings.ToUpper(text), "SELECT") {
					blocks = append(blocks, text)
				}
			})
		}
	}

	var out []string
	for _, b := range blocks {
		if len(b) >= minLen {
			out = append(out, b)
		}
	}
	return out
}

func isRawSQLURL(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Path, ".sql") || strings.Contains(u.Path, "/raw/")
}
