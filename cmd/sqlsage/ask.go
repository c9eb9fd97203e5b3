// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sqlsage-dev/sqlsage/internal/engine"
)

// maxDisplayRows caps how many result rows a single answer prints.
const maxDisplayRows = 20

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Turn a question into SQL",
		Long:  "Generate, validate, and run a SQL query for a natural-language question.\nStarts an interactive session if no question is provided.",
		RunE:  runAsk,
	}

	cmd.Flags().Bool("no-exec", false, "print the SQL without executing it")

	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, cleanup, err := newApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer cleanup()

	noExec, _ := cmd.Flags().GetBool("no-exec")

	if len(args) > 0 {
		return askOnce(cmd.Context(), cmd.OutOrStdout(), a, strings.Join(args, " "), noExec)
	}

	return askInteractive(cmd, a, noExec)
}

// askOnce answers a single question and prints the SQL and, unless
// suppressed, its results.
func askOnce(ctx context.Context, out io.Writer, a *app, question string, noExec bool) error {
	res, err := a.service.Answer(ctx, question)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, res.SQL)

	if !res.Accepted {
		fmt.Fprintf(out, "-- warning: query failed validation after %d attempts\n", res.Attempts)
		return nil
	}
	if noExec {
		return nil
	}

	result, err := a.engine.Query(ctx, res.SQL)
	if err != nil {
		fmt.Fprintf(out, "-- execution failed: %v\n", err)
		return nil
	}

	renderResult(out, result, maxDisplayRows)
	return nil
}

// askInteractive runs the read-ask-confirm loop. A confirmed answer is
// memorized so the next retrieval can reuse it.
func askInteractive(cmd *cobra.Command, a *app, noExec bool) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprintln(out, "Ask questions about your data. Type 'exit' to quit.")
	if a.retriever == nil {
		fmt.Fprintln(out, "(retrieval disabled: answers will not be remembered)")
	}

	for {
		fmt.Fprint(out, "\n? ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}

		res, err := a.service.Answer(cmd.Context(), question)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "\n%s\n", res.SQL)

		if !res.Accepted {
			fmt.Fprintf(out, "-- warning: query failed validation after %d attempts\n", res.Attempts)
			continue
		}

		if !noExec {
			result, err := a.engine.Query(cmd.Context(), res.SQL)
			if err != nil {
				fmt.Fprintf(out, "-- execution failed: %v\n", err)
				continue
			}
			renderResult(out, result, maxDisplayRows)
		}

		if a.retriever == nil {
			continue
		}

		fmt.Fprint(out, "Was this correct? [y/N] ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if answer := strings.ToLower(strings.TrimSpace(scanner.Text())); answer == "y" || answer == "yes" {
			if err := a.retriever.Memorize(cmd.Context(), question, res.SQL); err != nil {
				a.logger.Warn("memorize failed", "error", err)
				continue
			}
			fmt.Fprintln(out, "Remembered.")
		}
	}
}

// renderResult prints a result as tab-separated rows, capped at maxRows.
func renderResult(out io.Writer, result engine.Result, maxRows int) {
	fmt.Fprintln(out, strings.Join(result.Columns, "\t"))

	for i, row := range result.Rows {
		if i >= maxRows {
			fmt.Fprintf(out, "... (%d more rows)\n", len(result.Rows)-maxRows)
			return
		}

		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = fmt.Sprint(cell)
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
}
