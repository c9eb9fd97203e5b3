// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package miner

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// Searcher finds candidate URLs for a topic.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]string, error)
}

// DuckDuckGoSearcher queries the DuckDuckGo HTML endpoint, which serves
// plain server-rendered results and needs no API key.
type DuckDuckGoSearcher struct {
	client  *http.Client
	baseURL string
}

// NewDuckDuckGoSearcher creates a searcher using client for requests. A nil
// client falls back to http.DefaultClient.
func NewDuckDuckGoSearcher(client *http.Client) *DuckDuckGoSearcher {
	if client == nil {
		client = http.DefaultClient
	}

	return &DuckDuckGoSearcher{client: client, baseURL: "https://html.duckduckgo.com/html/"}
}

// Search returns up to maxResults result URLs for query.
func (s *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	reqURL := s.baseURL + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeMinerSearchFailure, "building search request")
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeMinerSearchFailure, "executing search request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, sageerr.Errorf(sageerr.CodeMinerSearchFailure, "search returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeMinerSearchFailure, "parsing search results")
	}

	var urls []string
	doc.Find("a.result__a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Attr("href")
		if !ok {
			return true
		}
		if resolved := resolveResultURL(href); resolved != "" {
			urls = append(urls, resolved)
		}
		return len(urls) < maxResults
	})

	return urls, nil
}

// resolveResultURL unwraps DuckDuckGo's redirect links, which carry the
// destination in a uddg query parameter.
func resolveResultURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	if uddg := u.Query().Get("uddg"); uddg != "" {
		return uddg
	}

	if u.Scheme == "http" || u.Scheme == "https" {
		return u.String()
	}
	return ""
}
