// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package miner implements the background knowledge-acquisition pipeline:
// a worker pool that searches the web for SQL worth learning from, adapts
// each found query to the local schema via the model, proves the adapted
// query actually runs, and commits it to the knowledge store.
package miner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sqlsage-dev/sqlsage/internal/llm"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// declineSentinel is the token the model emits when a source query has no
// meaningful analogue in the target schema. Its presence anywhere in the
// response short-circuits adaptation.
const declineSentinel = "N/A"

var (
	questionRe   = regexp.MustCompile(`-- QUESTION: (.*)`)
	sqlAnchorRe  = regexp.MustCompile(`(?s)-- SQL:(.*)`)
	sqlFenceRe   = regexp.MustCompile("(?is)```sql(.*?)```")
	queryStartRe = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)
)

// Adapter re-expresses a found SQL query against the local schema. The
// transfer is conceptual: the model names the structural pattern in the
// source (ranking, running aggregate, multi-way join) and writes an
// analogous query for the target tables.
type Adapter struct {
	gateway llm.Gateway
	model   string
	logger  *slog.Logger
}

// NewAdapter creates an Adapter using model for completions.
func NewAdapter(gateway llm.Gateway, model string, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{gateway: gateway, model: model, logger: logger}
}

// Adapt asks the model to transfer the concept in rawSQL to the schema
// described by schemaText. A decline comes back as an error with the
// declined code; use errors.IsDeclined to distinguish it from real
// failures. The returned SQL is never empty, but it is NOT validated here:
// the caller must independently prove it runs.
func (a *Adapter) Adapt(ctx context.Context, rawSQL, schemaText string) (question, sqlText string, err error) {
	prompt := fmt.Sprintf(`/* Task: Adapt SQL Concept from Source to Target Schema */

/* Source SQL (Example of a concept like Window Function, CTE, or Complex Join) */
%s

/* Target Database Schema */
%s

/* Goal */
1. Analyze what the Source SQL is doing (e.g. "Calculate running total", "Rank items").
2. Create a SIMILAR query for the Target Schema.
3. If the concept doesn't apply, return "N/A".
4. Output Format:
-- QUESTION: <Natural Language Description of what the query does>
-- SQL: <The Valid DuckDB Query for Target Schema>
SELECT ...
`, rawSQL, schemaText)

	content, err := a.gateway.Complete(ctx, llm.Request{
		Model:    a.model,
		Messages: llm.UserMessage(prompt),
	})
	if err != nil {
		return "", "", err
	}

	if strings.Contains(content, declineSentinel) {
		return "", "", sageerr.New(sageerr.CodeMinerAdaptDeclined, "model declined to adapt query")
	}

	question = "Complex Query"
	if m := questionRe.FindStringSubmatch(content); m != nil {
		question = strings.TrimSpace(m[1])
	}

	switch {
	case sqlAnchorRe.MatchString(content):
		sqlText = strings.TrimSpace(sqlAnchorRe.FindStringSubmatch(content)[1])
	case sqlFenceRe.MatchString(content):
		sqlText = strings.TrimSpace(sqlFenceRe.FindStringSubmatch(content)[1])
	default:
		sqlText = strings.TrimSpace(content)
	}

	// Anchored sections often carry leading prose; cut to the statement.
	upper := strings.ToUpper(sqlText)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		if loc := queryStartRe.FindStringIndex(sqlText); loc != nil {
			sqlText = sqlText[loc[0]:]
		}
	}

	if sqlText == "" {
		return "", "", sageerr.New(sageerr.CodeMinerAdaptInvalid, "adaptation produced no SQL")
	}

	return question, sqlText, nil
}
