// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package knowledge

import (
	"context"
	"log/slog"

	"github.com/sqlsage-dev/sqlsage/internal/llm"
)

// Retriever joins the embedding gateway to the store: it is both the read
// path (nearest-neighbor context for prompts) and the shared write path
// (memorizing confirmed queries, ingesting documentation). The synthesis
// loop, the miner, the trainer, and ingestion all go through it so every
// record is embedded the same way.
type Retriever struct {
	store   *Store
	gateway llm.Gateway
	topK    int
	logger  *slog.Logger
}

// NewRetriever creates a Retriever. topK bounds how many records each
// collection contributes per retrieval.
func NewRetriever(store *Store, gateway llm.Gateway, topK int, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 3
	}

	return &Retriever{
		store:   store,
		gateway: gateway,
		topK:    topK,
		logger:  logger,
	}
}

// Retrieve embeds prompt and returns the nearest learned examples and doc
// snippets, each closest-first. Empty collections yield empty lists.
func (r *Retriever) Retrieve(ctx context.Context, prompt string) (RetrievalResult, error) {
	vec, err := r.gateway.Embed(ctx, prompt)
	if err != nil {
		return RetrievalResult{}, err
	}

	learned, err := r.store.SearchLearned(ctx, vec, r.topK)
	if err != nil {
		return RetrievalResult{}, err
	}

	docs, err := r.store.SearchDocs(ctx, vec, r.topK)
	if err != nil {
		return RetrievalResult{}, err
	}

	r.logger.Debug("retrieved context", "learned", len(learned), "docs", len(docs))
	return RetrievalResult{Learned: learned, Docs: docs}, nil
}

// Memorize embeds prompt and appends a learned (prompt, sql) pair. This is
// the single add-path for confirmed queries, shared by the interactive
// feedback loop, the miner, and the trainer.
func (r *Retriever) Memorize(ctx context.Context, prompt, sqlText string) error {
	vec, err := r.gateway.Embed(ctx, prompt)
	if err != nil {
		return err
	}

	return r.store.AddLearned(ctx, LearnedExample{Prompt: prompt, SQL: sqlText}, vec)
}

// AddSnippet embeds text and appends a documentation snippet.
func (r *Retriever) AddSnippet(ctx context.Context, text, source string) error {
	vec, err := r.gateway.Embed(ctx, text)
	if err != nil {
		return err
	}

	return r.store.AddDoc(ctx, DocSnippet{Text: text, Source: source}, vec)
}
