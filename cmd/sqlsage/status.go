// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what sqlsage can see",
		Long:  "Report the target database, its tables, and the size of the knowledge store.",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, cleanup, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()

	desc, err := a.engine.IntrospectSchema(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Database: %s\n", a.cfg.Engine.Database)
	fmt.Fprintf(out, "Tables:   %d\n", len(desc.Tables))
	for _, name := range desc.TableNames() {
		fmt.Fprintf(out, "  - %s\n", name)
	}

	if a.store == nil {
		fmt.Fprintln(out, "Knowledge: unavailable (retrieval disabled)")
		return nil
	}

	learned, docs, err := a.store.Counts(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Knowledge: %d learned examples, %d doc snippets (%d dimensions)\n",
		learned, docs, a.store.Dimensions())
	return nil
}
