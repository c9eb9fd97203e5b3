// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package synthesis turns natural-language questions into validated SQL.
// It composes a completion-style prompt from schema text and retrieved
// context, extracts a candidate statement from the model output, and
// retries with an escalating error history until the engine accepts the
// candidate or the attempt budget runs out.
package synthesis

import (
	"fmt"
	"strings"

	"github.com/sqlsage-dev/sqlsage/internal/knowledge"
)

// Attempt records one failed generation round for the next prompt.
type Attempt struct {
	Index int
	SQL   string
	Err   string
}

// PromptInput carries everything a single completion prompt is built from.
type PromptInput struct {
	SchemaText string
	Context    knowledge.RetrievalResult
	Question   string
	History    []Attempt
}

// ComposePrompt renders a code-completion prompt. Base code models complete
// code far more reliably than they follow chat instructions, so the prompt
// is written as a commented SQL file that ends mid-statement: the model is
// continuing "SELECT", not answering a question.
func ComposePrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("/* Database Schema */\n")
	b.WriteString(in.SchemaText)
	b.WriteString("\n\n/* Relevant Examples */\n")
	b.WriteString(formatContext(in.Context))

	fmt.Fprintf(&b, "\n/* User Question: %s */\n", in.Question)
	fmt.Fprintf(&b, "/* Previous Errors to fix: %s */\n", formatHistory(in.History))

	b.WriteString(`
/* CRITICAL RULES:
   1. ALWAYS use table aliases (e.g. p.list_price, oi.list_price) to prevent "Ambiguous column" errors.
   2. Use explicit JOINs.
*/

-- Generate the valid DuckDB SQL query for the question:
SELECT`)

	return b.String()
}

func formatContext(rc knowledge.RetrievalResult) string {
	var b strings.Builder

	if len(rc.Learned) > 0 {
		b.WriteString("\nPossibly Relevant Past Queries:\n")
		for _, ex := range rc.Learned {
			fmt.Fprintf(&b, "- Q: %s\n  SQL: %s\n", ex.Prompt, ex.SQL)
		}
	}

	if len(rc.Docs) > 0 {
		b.WriteString("\nSyntax Reference:\n")
		for _, d := range rc.Docs {
			fmt.Fprintf(&b, "- %s\n", d.Text)
		}
	}

	return b.String()
}

func formatHistory(history []Attempt) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	for _, a := range history {
		fmt.Fprintf(&b, "\nAttempt %d SQL:\n%s\nError: %s\n", a.Index, a.SQL, a.Err)
	}
	return b.String()
}
