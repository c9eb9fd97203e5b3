// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sqlsage-dev/sqlsage/internal/trainer"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run the self-play curriculum",
		Long:  "Have an instruct model invent graded exercises, solve them blind,\nand memorize every answer whose results match the ground truth.",
		RunE:  runTrain,
	}

	cmd.Flags().Int("per-level", 0, "override exercises per difficulty level")

	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	if a.retriever == nil {
		return sageerr.New(sageerr.CodeCLISetupFailure, "training requires the knowledge store; fix the embedding endpoint or storage path first")
	}

	perLevel := a.cfg.Trainer.PerLevel
	if override, _ := cmd.Flags().GetInt("per-level"); override > 0 {
		perLevel = override
	}

	tr := trainer.New(
		a.gateway,
		a.service,
		a.engine,
		a.retriever,
		a.schemaText,
		a.cfg.Trainer.Model,
		perLevel,
		a.cfg.Trainer.MaxConsecutive,
		a.logger,
	)

	reports, err := tr.Run(ctx)

	out := cmd.OutOrStdout()
	for _, rep := range reports {
		status := "completed"
		if rep.Aborted {
			status = "aborted"
		}
		fmt.Fprintf(out, "%-8s %s: %d memorized\n", rep.Level, status, rep.Learned)
	}

	return err
}
