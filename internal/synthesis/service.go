// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package synthesis

import (
	"context"
	"log/slog"

	"github.com/sqlsage-dev/sqlsage/internal/knowledge"
)

// ContextProvider supplies retrieval context for a question.
type ContextProvider interface {
	Retrieve(ctx context.Context, prompt string) (knowledge.RetrievalResult, error)
}

// Service binds retrieval and generation for a fixed schema. It is the
// question-in, SQL-out surface the CLI and the trainer both use. A nil
// provider runs the service without retrieval augmentation; a provider
// error degrades to the same unaugmented path rather than failing the
// question.
type Service struct {
	provider   ContextProvider
	controller *Controller
	schemaText string
	logger     *slog.Logger
}

// NewService creates a Service. provider may be nil.
func NewService(provider ContextProvider, controller *Controller, schemaText string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		provider:   provider,
		controller: controller,
		schemaText: schemaText,
		logger:     logger,
	}
}

// Answer generates SQL for question, retrieving context first when a
// provider is available.
func (s *Service) Answer(ctx context.Context, question string) (Result, error) {
	var rc knowledge.RetrievalResult

	if s.provider != nil {
		var err error
		rc, err = s.provider.Retrieve(ctx, question)
		if err != nil {
			s.logger.Warn("retrieval failed, continuing without context", "error", err)
			rc = knowledge.RetrievalResult{}
		}
	}

	return s.controller.Generate(ctx, question, s.schemaText, rc)
}
