// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package ingest seeds the knowledge store: curated few-shot examples for
// the learned collection, hand-written syntax guidance for the docs
// collection, and scraped snippets from the engine's online documentation.
package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// DefaultDocsURL is the documentation page scraped by default.
const DefaultDocsURL = "https://duckdb.org/docs/sql/query_syntax/select"

// minSnippetLen filters code fragments too short to teach anything.
const minSnippetLen = 10

// Sink receives seeded records. The knowledge retriever satisfies it.
type Sink interface {
	Memorize(ctx context.Context, prompt, sqlText string) error
	AddSnippet(ctx context.Context, text, source string) error
}

// Example is a curated question/SQL pair for the learned collection.
type Example struct {
	Prompt string
	SQL    string
}

// SeedExamples are hand-verified queries against the bundled sample schema.
// Few-shot examples are the strongest lever on join-path mistakes, so these
// deliberately cover multi-hop joins and set operations.
var SeedExamples = []Example{
	{
		Prompt: "Which staff member sold the most products?",
		SQL: `SELECT s.first_name, s.last_name, SUM(oi.quantity) AS total_sold
FROM staffs s
JOIN orders o ON s.staff_id = o.staff_id
JOIN order_items oi ON o.order_id = oi.order_id
GROUP BY s.staff_id, s.first_name, s.last_name
ORDER BY total_sold DESC LIMIT 1;`,
	},
	{
		Prompt: "List products in 'Electric Bikes' category.",
		SQL: `SELECT p.product_name
FROM products p
JOIN categories c ON p.category_id = c.category_id
WHERE c.category_name = 'Electric Bikes';`,
	},
	{
		Prompt: "Find customers who bought 'Trek' products.",
		SQL: `SELECT DISTINCT c.first_name, c.last_name
FROM customers c
JOIN orders o ON c.customer_id = o.customer_id
JOIN order_items oi ON o.order_id = oi.order_id
JOIN products p ON oi.product_id = p.product_id
JOIN brands b ON p.brand_id = b.brand_id
WHERE b.brand_name = 'Trek';`,
	},
	{
		Prompt: "Staff who sold 'Electric Bikes' but not 'Children Bicycles'",
		SQL: `SELECT s.first_name, s.last_name
FROM staffs s
JOIN orders o ON s.staff_id = o.staff_id
JOIN order_items oi ON o.order_id = oi.order_id
JOIN products p ON oi.product_id = p.product_id
JOIN categories c ON p.category_id = c.category_id
WHERE c.category_name = 'Electric Bikes'
EXCEPT
SELECT s.first_name, s.last_name
FROM staffs s
JOIN orders o ON s.staff_id = o.staff_id
JOIN order_items oi ON o.order_id = oi.order_id
JOIN products p ON oi.product_id = p.product_id
JOIN categories c ON p.category_id = c.category_id
WHERE c.category_name = 'Children Bicycles';`,
	},
}

// Guidance is a hand-written docs-collection snippet.
type Guidance struct {
	Text   string
	Source string
}

// SeedGuidance corrects the two failure modes retrieval sees most: CTE
// misplacement and wrong join paths to lookup tables.
var SeedGuidance = []Guidance{
	{
		Source: "cte_scoping",
		Text: `DuckDB CTE Scoping Rules:
Common Table Expressions (WITH clauses) define temporary tables.
You can use multiple CTEs separated by commas:
WITH cte1 AS (...), cte2 AS (...) SELECT * FROM cte1 JOIN cte2 ...
Important: You CANNOT define a CTE inside a subquery and reference it outside.
Valid: WITH t1 AS (SELECT...) SELECT * FROM t1
Invalid: SELECT * FROM (WITH t1 AS...)`,
	},
	{
		Source: "join_paths",
		Text: `Database Relationship Rules:
1. 'store_name' is ONLY in the 'stores' table.
2. To get store name from 'stocks', you MUST join 'stores':
   FROM stocks JOIN stores ON stocks.store_id = stores.store_id.
3. 'category_name' is ONLY in 'categories'.
4. To get category name from 'products', join 'categories':
   FROM products JOIN categories ON products.category_id = categories.category_id.
5. 'brand_name' is ONLY in 'brands'.`,
	},
}

// Ingestor writes the seed corpus into a Sink.
type Ingestor struct {
	sink   Sink
	client *http.Client
	logger *slog.Logger
}

// New creates an Ingestor. A nil client falls back to http.DefaultClient.
func New(sink Sink, client *http.Client, logger *slog.Logger) *Ingestor {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Ingestor{sink: sink, client: client, logger: logger}
}

// SeedLearned writes the curated examples and returns how many were added.
func (i *Ingestor) SeedLearned(ctx context.Context) (int, error) {
	for n, ex := range SeedExamples {
		if err := i.sink.Memorize(ctx, ex.Prompt, ex.SQL); err != nil {
			return n, err
		}
	}

	i.logger.Info("seeded learned examples", "count", len(SeedExamples))
	return len(SeedExamples), nil
}

// SeedDocs writes the hand-written guidance and returns how many snippets
// were added.
func (i *Ingestor) SeedDocs(ctx context.Context) (int, error) {
	for n, g := range SeedGuidance {
		if err := i.sink.AddSnippet(ctx, g.Text, g.Source); err != nil {
			return n, err
		}
	}

	i.logger.Info("seeded guidance snippets", "count", len(SeedGuidance))
	return len(SeedGuidance), nil
}

// ScrapeDocs fetches pageURL and stores the text of each code element as a
// docs snippet, returning how many were added.
func (i *Ingestor) ScrapeDocs(ctx context.Context, pageURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, sageerr.Wrap(err, sageerr.CodeIngestSourceFailure, "building docs request", sageerr.FieldURL(pageURL))
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, sageerr.Wrap(err, sageerr.CodeIngestSourceFailure, "fetching docs page", sageerr.FieldURL(pageURL))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, sageerr.Errorf(sageerr.CodeIngestSourceFailure, "docs page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return 0, sageerr.Wrap(err, sageerr.CodeIngestSourceFailure, "parsing docs page", sageerr.FieldURL(pageURL))
	}

	added := 0
	var addErr error
	doc.Find("code").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if len(text) <= minSnippetLen {
			return true
		}
		if err := i.sink.AddSnippet(ctx, text, pageURL); err != nil {
			addErr = err
			return false
		}
		added++
		return true
	})
	if addErr != nil {
		return added, addErr
	}

	i.logger.Info("scraped docs snippets", "url", pageURL, "count", added)
	return added, nil
}

// Run seeds everything: curated examples, guidance, and the default docs
// page. A docs scrape failure is logged and tolerated since the seed corpus
// alone is already useful.
func (i *Ingestor) Run(ctx context.Context) error {
	if _, err := i.SeedLearned(ctx); err != nil {
		return err
	}
	if _, err := i.SeedDocs(ctx); err != nil {
		return err
	}

	if _, err := i.ScrapeDocs(ctx, DefaultDocsURL); err != nil {
		i.logger.Warn("docs scrape failed, continuing with seed corpus", "error", err)
	}

	return nil
}
