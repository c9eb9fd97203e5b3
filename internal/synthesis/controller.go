// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package synthesis

import (
	"context"
	"log/slog"

	"github.com/sqlsage-dev/sqlsage/internal/knowledge"
	"github.com/sqlsage-dev/sqlsage/internal/llm"
)

// Validator checks a SQL string against the target engine without running
// its data path. A nil return means the statement is acceptable.
type Validator interface {
	Validate(ctx context.Context, query string) error
}

// Result is the outcome of one generation run. SQL is always populated with
// the best candidate; Accepted reports whether the validator passed it.
// When Accepted is false the caller gets the last attempt's SQL anyway, on
// the grounds that a wrong query is more useful to a human than nothing.
type Result struct {
	SQL      string
	Accepted bool
	Attempts int
	History  []Attempt
}

// Controller runs the generate-extract-validate retry loop for a single
// question. Instances are cheap and carry no mutable state across runs, so
// callers serving concurrent questions create one per request.
type Controller struct {
	gateway     llm.Gateway
	validator   Validator
	model       string
	maxAttempts int
	logger      *slog.Logger
}

// NewController creates a Controller. maxAttempts values below one are
// raised to the default of three.
func NewController(gateway llm.Gateway, validator Validator, model string, maxAttempts int, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	return &Controller{
		gateway:     gateway,
		validator:   validator,
		model:       model,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Generate produces SQL for question. Each attempt composes a prompt that
// includes every prior attempt's candidate and engine diagnostic, so the
// model sees exactly what it got wrong. Transport failures are logged and
// consume an attempt with an empty completion rather than aborting the run.
// The only error returned is context cancellation.
func (c *Controller) Generate(ctx context.Context, question, schemaText string, rc knowledge.RetrievalResult) (Result, error) {
	var history []Attempt
	var lastSQL string

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{SQL: lastSQL, Attempts: attempt - 1, History: history}, err
		}

		prompt := ComposePrompt(PromptInput{
			SchemaText: schemaText,
			Context:    rc,
			Question:   question,
			History:    history,
		})

		completion, err := c.gateway.Complete(ctx, llm.Request{
			Model:    c.model,
			Messages: llm.UserMessage(prompt),
		})
		if err != nil {
			c.logger.Warn("completion failed", "attempt", attempt, "error", err)
			completion = ""
		}

		// The prompt ends mid-statement, so the model usually answers with
		// the continuation of "SELECT". Restore the keyword before extraction.
		if !startsWithQueryKeyword(completion) {
			completion = "SELECT " + completion
		}

		extracted := Extract(completion)
		lastSQL = extracted.SQL

		verr := c.validator.Validate(ctx, extracted.SQL)
		if verr == nil {
			c.logger.Debug("candidate accepted", "attempt", attempt, "strategy", extracted.Strategy)
			return Result{SQL: extracted.SQL, Accepted: true, Attempts: attempt, History: history}, nil
		}

		c.logger.Info("candidate rejected", "attempt", attempt, "strategy", extracted.Strategy, "error", verr)
		history = append(history, Attempt{Index: attempt, SQL: extracted.SQL, Err: verr.Error()})
	}

	return Result{SQL: lastSQL, Attempts: c.maxAttempts, History: history}, nil
}
