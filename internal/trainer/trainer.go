// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

// Package trainer runs the self-play curriculum: an instruct model invents
// question/SQL pairs of increasing difficulty, the synthesis path solves
// each question blind, and answers whose results match the ground truth are
// memorized into the knowledge store.
package trainer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sqlsage-dev/sqlsage/internal/engine"
	"github.com/sqlsage-dev/sqlsage/internal/llm"
	"github.com/sqlsage-dev/sqlsage/internal/synthesis"
	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

// Level is one rung of the curriculum.
type Level struct {
	Name     string
	Guidance string
}

// Levels is the fixed curriculum, easiest first.
var Levels = []Level{
	{Name: "easy", Guidance: "Use single table, basic SELECT ... WHERE filtering."},
	{Name: "medium", Guidance: "Use JOIN between 2 tables."},
	{Name: "hard", Guidance: "Use JOINs across 3+ tables, GROUP BY, and Aggregates."},
	{Name: "expert", Guidance: "Use Window Functions (RANK, LEAD), CTEs, or Subqueries."},
}

// generateRetries bounds how often ground-truth generation is retried per
// exercise before giving up on it.
const generateRetries = 5

// Student solves a natural-language question with SQL.
type Student interface {
	Answer(ctx context.Context, question string) (synthesis.Result, error)
}

// Executor runs SQL against the read-only engine.
type Executor interface {
	Query(ctx context.Context, query string) (engine.Result, error)
}

// Memorizer commits a confirmed (question, sql) pair to the knowledge store.
type Memorizer interface {
	Memorize(ctx context.Context, prompt, sqlText string) error
}

// LevelReport summarizes one curriculum level.
type LevelReport struct {
	Level   string
	Learned int
	Aborted bool
}

// Trainer drives the curriculum.
type Trainer struct {
	gateway   llm.Gateway
	student   Student
	executor  Executor
	memorizer Memorizer

	schemaText     string
	model          string
	perLevel       int
	maxConsecutive int

	seen   map[string]struct{}
	logger *slog.Logger
}

// New creates a Trainer. model is the instruct model used for ground-truth
// generation, distinct from the completion model the student uses.
func New(gateway llm.Gateway, student Student, executor Executor, memorizer Memorizer, schemaText, model string, perLevel, maxConsecutive int, logger *slog.Logger) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	if perLevel < 1 {
		perLevel = 5
	}
	if maxConsecutive < 1 {
		maxConsecutive = 10
	}

	return &Trainer{
		gateway:        gateway,
		student:        student,
		executor:       executor,
		memorizer:      memorizer,
		schemaText:     schemaText,
		model:          model,
		perLevel:       perLevel,
		maxConsecutive: maxConsecutive,
		seen:           make(map[string]struct{}),
		logger:         logger,
	}
}

// Run works through every level in order and returns a per-level report.
// The only error returned is context cancellation; a level that stalls is
// aborted and recorded, not fatal.
func (t *Trainer) Run(ctx context.Context) ([]LevelReport, error) {
	var reports []LevelReport

	for _, level := range Levels {
		report, err := t.runLevel(ctx, level)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}

	return reports, nil
}

func (t *Trainer) runLevel(ctx context.Context, level Level) (LevelReport, error) {
	logger := t.logger.With("level", level.Name)
	logger.Info("starting level")

	report := LevelReport{Level: level.Name}
	consecutiveFails := 0

	for report.Learned < t.perLevel {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if consecutiveFails >= t.maxConsecutive {
			logger.Warn("aborting level", "consecutive_failures", consecutiveFails)
			report.Aborted = true
			return report, nil
		}

		question, truthSQL, truth, err := t.generateGroundTruth(ctx, level)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			logger.Warn("ground truth generation failed", "error", err)
			consecutiveFails++
			continue
		}

		logger.Info("exercise", "question", question)

		res, err := t.student.Answer(ctx, question)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			consecutiveFails++
			continue
		}

		studentResult, err := t.executor.Query(ctx, res.SQL)
		if err != nil {
			logger.Info("student query failed to run", "error", err)
			consecutiveFails++
			continue
		}

		if !resultsMatch(truth, studentResult) {
			logger.Info("wrong result", "truth_sql", truthSQL, "student_sql", res.SQL)
			consecutiveFails++
			continue
		}

		if err := t.memorizer.Memorize(ctx, question, res.SQL); err != nil {
			logger.Warn("memorize failed", "error", err)
			consecutiveFails++
			continue
		}

		logger.Info("memorized", "question", question)
		report.Learned++
		consecutiveFails = 0
	}

	return report, nil
}

// groundTruth is the JSON shape the instruct model is asked to produce.
type groundTruth struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// generateGroundTruth asks the instruct model for a fresh exercise. A pair
// is accepted only when it is new (by content hash), runs against the
// engine, and returns at least one row.
func (t *Trainer) generateGroundTruth(ctx context.Context, level Level) (string, string, engine.Result, error) {
	prompt := fmt.Sprintf(`You are a SQL Teacher.
Schema:
%s

Task: Generate 1 unique SQL query and its corresponding natural language question.
Difficulty: %s (%s).
Constraint: The SQL MUST be valid DuckDB syntax and return data (not empty).

Output Format JSON ONLY:
{
  "question": "...",
  "sql": "..."
}
`, t.schemaText, level.Name, level.Guidance)

	var lastErr error
	for range generateRetries {
		if err := ctx.Err(); err != nil {
			return "", "", engine.Result{}, err
		}

		content, err := t.gateway.CompleteJSON(ctx, llm.Request{
			Model:    t.model,
			Messages: llm.UserMessage(prompt),
		})
		if err != nil {
			lastErr = err
			continue
		}

		var gt groundTruth
		if err := json.Unmarshal([]byte(content), &gt); err != nil {
			lastErr = sageerr.Wrap(err, sageerr.CodeTrainerGenerateInvalid, "parsing ground truth")
			continue
		}
		if gt.Question == "" || gt.SQL == "" {
			lastErr = sageerr.New(sageerr.CodeTrainerGenerateInvalid, "ground truth missing question or sql")
			continue
		}

		hash := contentHash(gt.Question, gt.SQL)
		if _, dup := t.seen[hash]; dup {
			lastErr = sageerr.New(sageerr.CodeTrainerGenerateInvalid, "duplicate exercise")
			continue
		}

		truth, err := t.executor.Query(ctx, gt.SQL)
		if err != nil {
			lastErr = err
			continue
		}
		if len(truth.Rows) == 0 {
			lastErr = sageerr.New(sageerr.CodeTrainerGenerateInvalid, "ground truth query returned no rows")
			continue
		}

		t.seen[hash] = struct{}{}
		return gt.Question, gt.SQL, truth, nil
	}

	if lastErr == nil {
		lastErr = sageerr.New(sageerr.CodeTrainerGenerateInvalid, "ground truth generation exhausted retries")
	}
	return "", "", engine.Result{}, lastErr
}

func contentHash(question, sqlText string) string {
	sum := sha256.Sum256([]byte(question + sqlText))
	return hex.EncodeToString(sum[:])
}

// resultsMatch compares two results ignoring row order. Column names are
// not compared; students routinely alias differently without being wrong.
func resultsMatch(a, b engine.Result) bool {
	if len(a.Rows) != len(b.Rows) {
		return false
	}
	if len(a.Rows) > 0 && len(a.Rows[0]) != len(b.Rows[0]) {
		return false
	}

	return strings.Join(normalizeRows(a), "\n") == strings.Join(normalizeRows(b), "\n")
}

func normalizeRows(r engine.Result) []string {
	rows := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		rows = append(rows, strings.Join(cells, "\x1f"))
	}
	sort.Strings(rows)
	return rows
}
