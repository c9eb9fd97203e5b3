// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/sqlsage-dev/sqlsage/internal/config"
	"github.com/sqlsage-dev/sqlsage/internal/engine"
	"github.com/sqlsage-dev/sqlsage/internal/knowledge"
	"github.com/sqlsage-dev/sqlsage/internal/llm"
	"github.com/sqlsage-dev/sqlsage/internal/synthesis"
)

// app bundles the wired runtime shared by the CLI commands. The knowledge
// fields may be nil: when the store or the embedding calibration cannot
// initialize, synthesis keeps working without retrieval augmentation
// instead of refusing to start. Commands that cannot run degraded
// (mine, train, ingest) check retriever themselves.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	gateway    *llm.Client
	engine     *engine.Engine
	store      *knowledge.Store
	retriever  *knowledge.Retriever
	schemaText string
	service    *synthesis.Service
}

// newApp builds the runtime from the resolved viper config. The returned
// cleanup closes the engine and the knowledge store and is safe to call
// exactly once.
func newApp(ctx context.Context, errOut io.Writer) (*app, func(), error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(errOut, viper.GetBool("verbose"))

	gateway, err := llm.NewClient(llm.Config{
		Endpoint:   cfg.LLM.Endpoint,
		APIKey:     cfg.LLM.APIKey,
		EmbedModel: cfg.LLM.EmbedModel,
		Timeout:    time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.Open(cfg.Engine.Database, logger)
	if err != nil {
		return nil, nil, err
	}

	desc, err := eng.IntrospectSchema(ctx)
	if err != nil {
		_ = eng.Close()
		return nil, nil, err
	}
	schemaText := desc.Format()

	a := &app{
		cfg:        cfg,
		logger:     logger,
		gateway:    gateway,
		engine:     eng,
		schemaText: schemaText,
	}

	// Knowledge initialization degrades instead of failing: calibration
	// needs the embedding model up, and the store needs a writable path.
	// Neither is required to answer a question.
	if dims, err := gateway.Calibrate(ctx); err != nil {
		logger.Warn("embedding calibration failed, retrieval disabled", "error", err)
	} else if store, err := knowledge.Open(cfg.Storage.KnowledgeDB, dims, logger); err != nil {
		logger.Warn("knowledge store unavailable, retrieval disabled", "error", err)
	} else {
		a.store = store
		a.retriever = knowledge.NewRetriever(store, gateway, cfg.Synthesis.TopK, logger)
	}

	controller := synthesis.NewController(gateway, eng, cfg.LLM.Model, cfg.Synthesis.MaxAttempts, logger)

	var provider synthesis.ContextProvider
	if a.retriever != nil {
		provider = a.retriever
	}
	a.service = synthesis.NewService(provider, controller, schemaText, logger)

	cleanup := func() {
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = a.engine.Close()
	}

	return a, cleanup, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
