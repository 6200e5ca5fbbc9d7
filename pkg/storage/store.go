// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package storage persists snapshots in an embedded SQLite database
// and publishes the current snapshot to readers through an atomic
// pointer. Readers never block on ingestion: they hold whatever
// snapshot was current when their query started.
package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/pke/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	revision   TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	created_at TEXT NOT NULL,
	report     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	revision    TEXT NOT NULL,
	id          TEXT NOT NULL,
	kind        TEXT NOT NULL,
	source_path TEXT NOT NULL,
	start_line  INTEGER NOT NULL,
	end_line    INTEGER NOT NULL,
	start_byte  INTEGER NOT NULL,
	end_byte    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	signature   TEXT NOT NULL,
	docstring   TEXT NOT NULL,
	content     TEXT NOT NULL,
	parent_id   TEXT NOT NULL,
	language    TEXT NOT NULL,
	PRIMARY KEY (revision, id)
);

CREATE TABLE IF NOT EXISTS edges (
	revision    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	source_id   TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	target_name TEXT NOT NULL,
	confidence  REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edges_revision ON edges (revision);

CREATE TABLE IF NOT EXISTS embeddings (
	revision     TEXT NOT NULL,
	chunk_id     TEXT NOT NULL,
	model_id     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	vector       BLOB NOT NULL,
	PRIMARY KEY (revision, chunk_id)
);
`

// Store is the snapshot store. One store serves many concurrent
// readers and at most one writer (the ingestion pipeline).
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	current atomic.Pointer[model.Snapshot]

	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the snapshot database at path and loads the
// latest committed snapshot into memory.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	// SQLite allows one writer; funneling everything through a single
	// connection avoids SQLITE_BUSY under the pipeline's write burst.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.loadCurrent(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Current returns the snapshot visible to readers, or nil before the
// first commit.
func (s *Store) Current() *model.Snapshot {
	return s.current.Load()
}

// Commit persists the snapshot and swaps it in as current. Older
// revisions are dropped in the same transaction, so the database only
// ever holds the snapshot readers can see. Re-committing the current
// revision is a no-op.
func (s *Store) Commit(ctx context.Context, snap *model.Snapshot) error {
	if cur := s.current.Load(); cur != nil && cur.Revision == snap.Revision {
		s.logger.Info("storage.commit.unchanged", "revision", snap.Revision)
		s.current.Store(snap)
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.insertSnapshot(ctx, tx, snap); err != nil {
		return err
	}

	for _, table := range []string{"snapshots", "chunks", "edges", "embeddings"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE revision != ?", table), snap.Revision); err != nil {
			return fmt.Errorf("prune old revisions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	s.current.Store(snap)
	s.logger.Info("storage.commit.done",
		"revision", snap.Revision,
		"chunks", len(snap.Chunks),
		"edges", len(snap.Edges),
		"embeddings", len(snap.Embeddings),
	)
	return nil
}

func (s *Store) insertSnapshot(ctx context.Context, tx *sql.Tx, snap *model.Snapshot) error {
	report, err := json.Marshal(snap.Report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshots (revision, source, created_at, report) VALUES (?, ?, ?, ?)",
		snap.Revision, snap.Source, snap.CreatedAt.Format(time.RFC3339Nano), string(report)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	chunkStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks
		(revision, id, kind, source_path, start_line, end_line, start_byte, end_byte,
		 name, signature, docstring, content, parent_id, language)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer func() { _ = chunkStmt.Close() }()
	for _, id := range snap.ChunkIDs() {
		c := snap.Chunks[id]
		if _, err := chunkStmt.ExecContext(ctx,
			snap.Revision, c.ID, string(c.Kind), c.SourcePath,
			c.Span.StartLine, c.Span.EndLine, c.Span.StartByte, c.Span.EndByte,
			c.Name, c.Signature, c.Docstring, c.Content, c.ParentID, c.Language); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO edges (revision, kind, source_id, target_id, target_name, confidence) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer func() { _ = edgeStmt.Close() }()
	for _, e := range snap.Edges {
		if _, err := edgeStmt.ExecContext(ctx,
			snap.Revision, string(e.Kind), e.SourceID, e.TargetID, e.TargetName, e.Confidence); err != nil {
			return fmt.Errorf("insert edge: %w", err)
		}
	}

	embStmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO embeddings
		(revision, chunk_id, model_id, content_hash, created_at, vector) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare embedding insert: %w", err)
	}
	defer func() { _ = embStmt.Close() }()
	for _, id := range snap.ChunkIDs() {
		rec, ok := snap.Embeddings[id]
		if !ok {
			continue
		}
		if _, err := embStmt.ExecContext(ctx,
			snap.Revision, rec.ChunkID, rec.ModelID, rec.ContentHash,
			rec.CreatedAt.Format(time.RFC3339Nano), encodeVector(rec.Vector)); err != nil {
			return fmt.Errorf("insert embedding %s: %w", rec.ChunkID, err)
		}
	}
	return nil
}

// loadCurrent restores the latest committed snapshot from disk.
func (s *Store) loadCurrent(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx,
		"SELECT revision, source, created_at, report FROM snapshots ORDER BY created_at DESC LIMIT 1")

	var revision, source, createdAt, reportJSON string
	if err := row.Scan(&revision, &source, &createdAt, &reportJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("load snapshot row: %w", err)
	}

	snap := &model.Snapshot{
		Revision:   revision,
		Source:     source,
		Chunks:     make(map[string]*model.Chunk),
		Embeddings: make(map[string]model.EmbeddingRecord),
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		snap.CreatedAt = ts
	}
	if err := json.Unmarshal([]byte(reportJSON), &snap.Report); err != nil {
		return fmt.Errorf("unmarshal report: %w", err)
	}

	if err := s.loadChunks(ctx, snap); err != nil {
		return err
	}
	if err := s.loadEdges(ctx, snap); err != nil {
		return err
	}
	if err := s.loadEmbeddings(ctx, snap); err != nil {
		return err
	}

	snap.Finalize()
	s.current.Store(snap)
	s.logger.Info("storage.load.done", "revision", revision, "chunks", len(snap.Chunks))
	return nil
}

func (s *Store) loadChunks(ctx context.Context, snap *model.Snapshot) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, source_path, start_line, end_line,
		start_byte, end_byte, name, signature, docstring, content, parent_id, language
		FROM chunks WHERE revision = ?`, snap.Revision)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c model.Chunk
		var kind string
		if err := rows.Scan(&c.ID, &kind, &c.SourcePath,
			&c.Span.StartLine, &c.Span.EndLine, &c.Span.StartByte, &c.Span.EndByte,
			&c.Name, &c.Signature, &c.Docstring, &c.Content, &c.ParentID, &c.Language); err != nil {
			return fmt.Errorf("scan chunk: %w", err)
		}
		c.Kind = model.ChunkKind(kind)
		snap.Chunks[c.ID] = &c
	}
	return rows.Err()
}

func (s *Store) loadEdges(ctx context.Context, snap *model.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, source_id, target_id, target_name, confidence FROM edges WHERE revision = ?", snap.Revision)
	if err != nil {
		return fmt.Errorf("load edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var e model.Edge
		var kind string
		if err := rows.Scan(&kind, &e.SourceID, &e.TargetID, &e.TargetName, &e.Confidence); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		e.Kind = model.EdgeKind(kind)
		snap.Edges = append(snap.Edges, e)
	}
	return rows.Err()
}

func (s *Store) loadEmbeddings(ctx context.Context, snap *model.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT chunk_id, model_id, content_hash, created_at, vector FROM embeddings WHERE revision = ?", snap.Revision)
	if err != nil {
		return fmt.Errorf("load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var rec model.EmbeddingRecord
		var createdAt string
		var blob []byte
		if err := rows.Scan(&rec.ChunkID, &rec.ModelID, &rec.ContentHash, &createdAt, &blob); err != nil {
			return fmt.Errorf("scan embedding: %w", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		rec.Vector = decodeVector(blob)
		snap.Embeddings[rec.ChunkID] = rec
	}
	return rows.Err()
}

// Close releases the database. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// encodeVector packs a float32 vector as little-endian bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}
