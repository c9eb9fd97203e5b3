// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package miner

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/sqlsage-dev/sqlsage/internal/engine"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// maxAdaptInput bounds how much of a harvested block is sent to the model.
// Long dumps past this point add cost without adding concept.
const maxAdaptInput = 2000

// Executor proves an adapted query actually runs. The adapter's output is
// never trusted until it has been executed against the read-only engine.
type Executor interface {
	Query(ctx context.Context, query string) (engine.Result, error)
}

// Memorizer commits a confirmed (question, sql) pair to the knowledge store.
type Memorizer interface {
	Memorize(ctx context.Context, prompt, sqlText string) error
}

// Options configures a Pool.
type Options struct {
	Workers        int
	MaxResults     int
	MinBlockLength int
	QueueWait      time.Duration
	Topics         []string
}

// Pool runs the acquisition workers. Workers share the topic queue and the
// seen-URL set; everything else is per-worker. No failure inside the
// pipeline stops a worker: every stage logs and moves on. The pool itself
// stops only when ctx is cancelled.
type Pool struct {
	searcher  Searcher
	fetcher   Fetcher
	adapter   *Adapter
	executor  Executor
	memorizer Memorizer

	schemaText string
	opts       Options

	queue  *topicQueue
	seen   *seenSet
	logger *slog.Logger
}

// NewPool assembles an acquisition pool. schemaText is the formatted target
// schema handed to the adapter for every candidate.
func NewPool(searcher Searcher, fetcher Fetcher, adapter *Adapter, executor Executor, memorizer Memorizer, schemaText string, opts Options, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers < 1 {
		opts.Workers = 2
	}
	if opts.MaxResults < 1 {
		opts.MaxResults = 5
	}
	if opts.MinBlockLength < 1 {
		opts.MinBlockLength = 50
	}
	if opts.QueueWait <= 0 {
		opts.QueueWait = 5 * time.Second
	}

	return &Pool{
		searcher:   searcher,
		fetcher:    fetcher,
		adapter:    adapter,
		executor:   executor,
		memorizer:  memorizer,
		schemaText: schemaText,
		opts:       opts,
		queue:      newTopicQueue(opts.Topics),
		seen:       newSeenSet(),
		logger:     logger,
	}
}

// Run starts the workers and blocks until ctx is cancelled. It returns nil
// on a clean shutdown.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := range p.opts.Workers {
		worker := i
		g.Go(func() error {
			return p.runWorker(ctx, worker)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (p *Pool) runWorker(ctx context.Context, id int) error {
	logger := p.logger.With("worker", id)
	logger.Info("acquisition worker started")

	for {
		topic, err := p.queue.Pop(ctx, p.opts.QueueWait)
		if err != nil {
			logger.Info("acquisition worker stopped")
			return err
		}

		logger.Info("searching", "topic", topic)

		urls, err := p.searcher.Search(ctx, topic, p.opts.MaxResults)
		if err != nil {
			logger.Warn("search failed", "topic", topic, "error", err)
			continue
		}

		for _, pageURL := range urls {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !p.seen.MarkSeen(pageURL) {
				continue
			}
			p.minePage(ctx, logger, pageURL)
		}
	}
}

// minePage runs the fetch-harvest-adapt-prove-commit pipeline for one URL.
func (p *Pool) minePage(ctx context.Context, logger *slog.Logger, pageURL string) {
	body, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		logger.Warn("fetch failed", "url", pageURL, "error", err)
		return
	}

	blocks := HarvestBlocks(pageURL, body, p.opts.MinBlockLength)
	if len(blocks) == 0 {
		return
	}
	logger.Debug("harvested blocks", "url", pageURL, "count", len(blocks))

	for _, block := range blocks {
		if ctx.Err() != nil {
			return
		}

		block = truncateOnRune(block, maxAdaptInput)

		question, adapted, err := p.adapter.Adapt(ctx, block, p.schemaText)
		if err != nil {
			if sageerr.IsDeclined(err) {
				logger.Debug("adaptation declined", "url", pageURL)
			} else {
				logger.Warn("adaptation failed", "url", pageURL, "error", err)
			}
			continue
		}

		if _, err := p.executor.Query(ctx, adapted); err != nil {
			logger.Debug("adapted query rejected by engine", "url", pageURL, "error", err)
			continue
		}

		if err := p.memorizer.Memorize(ctx, question, adapted); err != nil {
			logger.Warn("memorize failed", "url", pageURL, "error", err)
			continue
		}

		logger.Info("learned query", "question", question, "url", pageURL)
	}
}

// truncateOnRune cuts s to at most n bytes without splitting a rune.
func truncateOnRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
