// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsage-dev/sqlsage/internal/ingest"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Seed the knowledge store",
		Long:  "Load curated few-shot examples and syntax guidance into the knowledge\nstore, and scrape reference snippets from the engine documentation.",
		RunE:  runIngest,
	}

	cmd.Flags().String("docs-url", ingest.DefaultDocsURL, "documentation page to scrape")
	cmd.Flags().Bool("skip-scrape", false, "seed only the built-in corpus, no network fetch")

	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	if a.retriever == nil {
		return sageerr.New(sageerr.CodeCLISetupFailure, "ingestion requires the knowledge store; fix the embedding endpoint or storage path first")
	}

	ing := ingest.New(a.retriever, &http.Client{Timeout: 15 * time.Second}, a.logger)
	out := cmd.OutOrStdout()

	learned, err := ing.SeedLearned(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d learned examples.\n", learned)

	docs, err := ing.SeedDocs(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d guidance snippets.\n", docs)

	if skip, _ := cmd.Flags().GetBool("skip-scrape"); skip {
		return nil
	}

	docsURL, _ := cmd.Flags().GetString("docs-url")
	scraped, err := ing.ScrapeDocs(cmd.Context(), docsURL)
	if err != nil {
		// The seed corpus already landed; a docs outage is not worth failing over.
		fmt.Fprintf(out, "Docs scrape failed (%v), continuing with seed corpus.\n", err)
		return nil
	}
	fmt.Fprintf(out, "Scraped %d snippets from %s.\n", scraped, docsURL)

	return nil
}
