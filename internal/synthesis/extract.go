// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package synthesis

import (
	"regexp"
	"strings"
)

// Strategy identifies which extraction rule produced a candidate.
type Strategy string

const (
	StrategyFenced   Strategy = "fenced_block"
	StrategyPreamble Strategy = "preamble_stripped"
	StrategyKeyword  Strategy = "keyword_anchor"
	StrategyRaw      Strategy = "raw"
)

// Extraction is the result of pulling a SQL candidate out of model output.
type Extraction struct {
	SQL      string
	Strategy Strategy
}

var (
	fencedRe   = regexp.MustCompile("(?is)```(?:sql)?\\s*(.*?)\\s*```")
	preambleRe = regexp.MustCompile(`(?is)^(here is the sql|sure|the query is|based on the schema).*?:`)
	keywordRe  = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)
)

// Extract pulls a SQL statement out of free-form model output. It is a total
// function: some candidate always comes back, and identical input always
// yields identical output. The rules apply in order, first match wins:
//
//  1. the contents of the first fenced code block,
//  2. the text after a known conversational preamble ending in a colon,
//  3. the text from the first query-starting keyword onward,
//  4. the trimmed input unchanged.
//
// The validator rejects unusable candidates downstream; Extract never judges.
func Extract(text string) Extraction {
	if m := fencedRe.FindStringSubmatch(text); m != nil {
		return Extraction{SQL: strings.TrimSpace(m[1]), Strategy: StrategyFenced}
	}

	trimmed := strings.TrimSpace(text)

	if loc := preambleRe.FindStringIndex(trimmed); loc != nil {
		stripped := strings.TrimSpace(trimmed[loc[1]:])
		if startsWithQueryKeyword(stripped) {
			return Extraction{SQL: stripped, Strategy: StrategyPreamble}
		}
		trimmed = stripped
	}

	if !startsWithQueryKeyword(trimmed) {
		if loc := keywordRe.FindStringIndex(trimmed); loc != nil {
			return Extraction{SQL: trimmed[loc[0]:], Strategy: StrategyKeyword}
		}
	}

	return Extraction{SQL: trimmed, Strategy: StrategyRaw}
}

func startsWithQueryKeyword(s string) bool {
	upper := strings.ToUpper(strings.TrimSpace(s))
	return strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH")
}
