// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sqlsage-dev/sqlsage/internal/miner"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

func newMineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "Mine the web for SQL worth learning",
		Long:  "Run the background acquisition workers: search for SQL examples,\nadapt them to the local schema, prove they run, and memorize them.\nRuns until interrupted.",
		RunE:  runMine,
	}

	cmd.Flags().Int("workers", 0, "override worker count")

	return cmd
}

func runMine(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	if a.retriever == nil {
		return sageerr.New(sageerr.CodeCLISetupFailure, "mining requires the knowledge store; fix the embedding endpoint or storage path first")
	}

	mcfg := a.cfg.Miner
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		mcfg.Workers = workers
	}

	fetchClient := &http.Client{Timeout: time.Duration(mcfg.FetchTimeoutSeconds) * time.Second}

	pool := miner.NewPool(
		miner.NewDuckDuckGoSearcher(fetchClient),
		miner.NewHTTPFetcher(fetchClient),
		miner.NewAdapter(a.gateway, a.cfg.LLM.Model, a.logger),
		a.engine,
		a.retriever,
		a.schemaText,
		miner.Options{
			Workers:        mcfg.Workers,
			MaxResults:     mcfg.MaxResults,
			MinBlockLength: mcfg.MinBlockLength,
			QueueWait:      time.Duration(mcfg.QueueWaitSeconds) * time.Second,
			Topics:         mcfg.Topics,
		},
		a.logger,
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Mining with %d worker(s). Press Ctrl+C to stop.\n", mcfg.Workers)

	return pool.Run(ctx)
}
