// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SQLSage Contributors

package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	sageerr "github.com/sqlsage-dev/sqlsage/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Store persists the two knowledge collections. Each collection is a vec0
// virtual table for the embeddings plus a payload table keyed by the same id.
// Adds are single transactions, so concurrent writers (miner workers and the
// synthesis path) only ever observe whole records.
type Store struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// Open opens (or creates) the knowledge database at dbPath. The embedding
// dimensionality is fixed at first creation and persisted; reopening with a
// different dimension fails loudly rather than corrupting the index.
func Open(dbPath string, dimensions int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dimensions <= 0 {
		return nil, sageerr.Errorf(sageerr.CodeKnowledgeOpenFailure, "dimensions must be positive, got %d", dimensions)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeOpenFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeOpenFailure, "pinging sqlite db")
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dimensions: dimensions, logger: logger}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	const metaDDL = `
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeOpenFailure, "creating store_meta table")
	}

	// Persist the calibrated dimension on first open; verify it afterwards.
	var stored string
	err := db.QueryRow(`SELECT value FROM store_meta WHERE key = 'dimensions'`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec(`INSERT INTO store_meta(key, value) VALUES ('dimensions', ?)`,
			strconv.Itoa(dimensions)); err != nil {
			return sageerr.Wrap(err, sageerr.CodeKnowledgeOpenFailure, "recording dimensions")
		}
	case err != nil:
		return sageerr.Wrap(err, sageerr.CodeKnowledgeOpenFailure, "reading stored dimensions")
	default:
		if stored != strconv.Itoa(dimensions) {
			return sageerr.New(sageerr.CodeKnowledgeDimensionMismatch,
				fmt.Sprintf("store was created with %s dimensions, embedder now reports %d", stored, dimensions))
		}
	}

	ddls := []string{
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS learned_vec USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`, dimensions),
		`CREATE TABLE IF NOT EXISTS learned_examples (
	id             TEXT PRIMARY KEY,
	prompt         TEXT NOT NULL,
	sql_text       TEXT NOT NULL,
	success_weight REAL NOT NULL DEFAULT 1.0,
	created        TEXT NOT NULL
)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS docs_vec USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`, dimensions),
		`CREATE TABLE IF NOT EXISTS doc_snippets (
	id      TEXT PRIMARY KEY,
	text    TEXT NOT NULL,
	source  TEXT NOT NULL,
	created TEXT NOT NULL
)`,
	}
	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return sageerr.Wrap(err, sageerr.CodeKnowledgeOpenFailure, "creating collection tables")
		}
	}

	return nil
}

// Dimensions returns the fixed embedding dimensionality of this store.
func (s *Store) Dimensions() int {
	return s.dimensions
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) checkDimension(vec []float32) error {
	if len(vec) != s.dimensions {
		return sageerr.New(sageerr.CodeKnowledgeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, store requires %d", len(vec), s.dimensions))
	}
	return nil
}

// AddLearned appends a learned example with its prompt embedding. A zero ID
// is assigned; a zero SuccessWeight defaults to 1.0.
func (s *Store) AddLearned(ctx context.Context, ex LearnedExample, embedding []float32) error {
	if err := s.checkDimension(embedding); err != nil {
		return err
	}
	if ex.ID == "" {
		ex.ID = uuid.NewString()
	}
	if ex.SuccessWeight == 0 {
		ex.SuccessWeight = 1.0
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "serializing embedding",
			sageerr.FieldCollection("learned"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "beginning transaction",
			sageerr.FieldCollection("learned"))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO learned_vec(id, embedding) VALUES (?, ?)`, ex.ID, blob); err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "inserting embedding",
			sageerr.FieldCollection("learned"))
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO learned_examples(id, prompt, sql_text, success_weight, created) VALUES (?, ?, ?, ?, ?)`,
		ex.ID, ex.Prompt, ex.SQL, ex.SuccessWeight, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "inserting payload",
			sageerr.FieldCollection("learned"))
	}

	if err := tx.Commit(); err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "committing add",
			sageerr.FieldCollection("learned"))
	}

	s.logger.Debug("learned new query", "id", ex.ID, "prompt_len", len(ex.Prompt))
	return nil
}

// AddDoc appends a documentation snippet with its text embedding.
func (s *Store) AddDoc(ctx context.Context, d DocSnippet, embedding []float32) error {
	if err := s.checkDimension(embedding); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "serializing embedding",
			sageerr.FieldCollection("docs"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "beginning transaction",
			sageerr.FieldCollection("docs"))
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO docs_vec(id, embedding) VALUES (?, ?)`, d.ID, blob); err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "inserting embedding",
			sageerr.FieldCollection("docs"))
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO doc_snippets(id, text, source, created) VALUES (?, ?, ?, ?)`,
		d.ID, d.Text, d.Source, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "inserting payload",
			sageerr.FieldCollection("docs"))
	}

	if err := tx.Commit(); err != nil {
		return sageerr.Wrap(err, sageerr.CodeKnowledgeAddFailure, "committing add",
			sageerr.FieldCollection("docs"))
	}

	s.logger.Debug("stored doc snippet", "id", d.ID, "source", d.Source)
	return nil
}

// SearchLearned returns the k nearest learned examples, closest first.
// An empty collection yields an empty slice, not an error.
func (s *Store) SearchLearned(ctx context.Context, query []float32, k int) ([]LearnedExample, error) {
	if err := s.checkDimension(query); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "serializing query vector",
			sageerr.FieldCollection("learned"))
	}

	const q = `SELECT v.id, v.distance, p.prompt, p.sql_text, p.success_weight
FROM learned_vec v
JOIN learned_examples p ON p.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "searching learned examples",
			sageerr.FieldCollection("learned"))
	}
	defer func() { _ = rows.Close() }()

	var out []LearnedExample
	for rows.Next() {
		var ex LearnedExample
		if err := rows.Scan(&ex.ID, &ex.Distance, &ex.Prompt, &ex.SQL, &ex.SuccessWeight); err != nil {
			return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "scanning learned result",
				sageerr.FieldCollection("learned"))
		}
		out = append(out, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "iterating learned results",
			sageerr.FieldCollection("learned"))
	}

	return out, nil
}

// SearchDocs returns the k nearest doc snippets, closest first.
func (s *Store) SearchDocs(ctx context.Context, query []float32, k int) ([]DocSnippet, error) {
	if err := s.checkDimension(query); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "serializing query vector",
			sageerr.FieldCollection("docs"))
	}

	const q = `SELECT v.id, v.distance, p.text, p.source
FROM docs_vec v
JOIN doc_snippets p ON p.id = v.id
WHERE v.embedding MATCH ? AND k = ?
ORDER BY v.distance`

	rows, err := s.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "searching doc snippets",
			sageerr.FieldCollection("docs"))
	}
	defer func() { _ = rows.Close() }()

	var out []DocSnippet
	for rows.Next() {
		var d DocSnippet
		if err := rows.Scan(&d.ID, &d.Distance, &d.Text, &d.Source); err != nil {
			return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "scanning doc result",
				sageerr.FieldCollection("docs"))
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "iterating doc results",
			sageerr.FieldCollection("docs"))
	}

	return out, nil
}

// Counts returns the number of learned examples and doc snippets.
func (s *Store) Counts(ctx context.Context) (learned, docs int, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM learned_examples`).Scan(&learned); err != nil {
		return 0, 0, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "counting learned examples")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM doc_snippets`).Scan(&docs); err != nil {
		return 0, 0, sageerr.Wrap(err, sageerr.CodeKnowledgeSearchFailure, "counting doc snippets")
	}
	return learned, docs, nil
}
