// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package knowledge implements the persistent, append-only knowledge base:
// learned query examples and documentation snippets indexed by embedding for
// nearest-neighbor retrieval, backed by SQLite with sqlite-vec.
package knowledge

// LearnedExample is a (question, sql) pair confirmed to run against the
// target schema. Records are append-only and never mutated or deleted; the
// store does not dedupe, so identical pairs may accumulate.
type LearnedExample struct {
	ID            string
	Prompt        string
	SQL           string
	SuccessWeight float64

	// Distance is populated on search results only (lower = closer).
	Distance float64
}

// DocSnippet is a reference documentation fragment with its origin (URL or
// tag). Append-only, like LearnedExample.
type DocSnippet struct {
	ID     string
	Text   string
	Source string

	// Distance is populated on search results only.
	Distance float64
}

// RetrievalResult carries the nearest learned examples and doc snippets for
// one prompt, each ordered closest-first. Either list may be empty.
type RetrievalResult struct {
	Learned []LearnedExample
	Docs    []DocSnippet
}

// Empty reports whether retrieval produced no context at all.
func (r RetrievalResult) Empty() bool {
	return len(r.Learned) == 0 && len(r.Docs) == 0
}
