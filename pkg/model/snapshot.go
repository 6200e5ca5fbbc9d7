// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"
)

// EmbeddingRecord associates a chunk with its vector for one model.
// At most one current record exists per (chunk, model) pair.
type EmbeddingRecord struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	ModelID string    `json:"model_id"`

	// ContentHash of the embedded text. Re-ingestion of a chunk with an
	// unchanged content hash reuses the record instead of re-embedding.
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunReport aggregates the outcome of one ingestion run. It is always
// populated, including on partial success.
type RunReport struct {
	FilesSeen         int `json:"files_seen"`
	FilesProcessed    int `json:"files_processed"`
	FilesSkipped      int `json:"files_skipped"`
	ChunksProduced    int `json:"chunks_produced"`
	EdgesProduced     int `json:"edges_produced"`
	EdgesResolved     int `json:"edges_resolved"`
	EmbeddingsComputed int `json:"embeddings_computed"`
	EmbeddingsReused   int `json:"embeddings_reused"`
	EmbeddingsMissing  int `json:"embeddings_missing"`

	// SkipReasons maps a reason ("parse_error", "unsupported_language",
	// "too_large") to the number of files skipped for it.
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`

	ParseDuration time.Duration `json:"parse_duration"`
	EmbedDuration time.Duration `json:"embed_duration"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Snapshot is one complete, atomically visible version of all chunks,
// edges and embeddings for a corpus. Snapshots are immutable once
// committed; a new ingestion run replaces the current snapshot with a
// single pointer swap and never mutates a snapshot readers may hold.
type Snapshot struct {
	// Revision is a content-derived identifier: the hash of the sorted
	// chunk ID set. Re-ingesting an unchanged corpus yields the same
	// revision.
	Revision string `json:"revision"`

	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`

	Chunks     map[string]*Chunk          `json:"chunks"`
	Edges      []Edge                     `json:"edges"`
	Embeddings map[string]EmbeddingRecord `json:"embeddings"`

	Report RunReport `json:"report"`

	// outgoing/incoming index Edges by endpoint for one-hop expansion.
	// Built once by Finalize; read-only afterwards.
	outgoing map[string][]int
	incoming map[string][]int
}

// NewSnapshot builds a snapshot over the given chunk set and computes
// its revision. Call Finalize after attaching edges and embeddings.
func NewSnapshot(source string, chunks []*Chunk) *Snapshot {
	byID := make(map[string]*Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}
	return &Snapshot{
		Revision:   ComputeRevision(chunks),
		Source:     source,
		CreatedAt:  time.Now().UTC(),
		Chunks:     byID,
		Embeddings: make(map[string]EmbeddingRecord),
	}
}

// ComputeRevision derives the snapshot revision from the sorted chunk
// ID set. Chunk IDs already hash path, span and content, so any textual
// change in the corpus changes the revision.
func ComputeRevision(chunks []*Chunk) string {
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{'\n'})
	}
	return "rev:" + hex.EncodeToString(h.Sum(nil))[:32]
}

// Finalize builds the adjacency index over Edges. It must be called
// before the snapshot is published to readers; the snapshot is treated
// as immutable from then on.
func (s *Snapshot) Finalize() {
	s.outgoing = make(map[string][]int)
	s.incoming = make(map[string][]int)
	for i, e := range s.Edges {
		s.outgoing[e.SourceID] = append(s.outgoing[e.SourceID], i)
		if e.TargetID != "" {
			s.incoming[e.TargetID] = append(s.incoming[e.TargetID], i)
		}
	}
}

// Outgoing returns the edges leaving the given chunk.
func (s *Snapshot) Outgoing(chunkID string) []Edge {
	return s.edgesAt(s.outgoing[chunkID])
}

// Incoming returns the resolved edges arriving at the given chunk.
func (s *Snapshot) Incoming(chunkID string) []Edge {
	return s.edgesAt(s.incoming[chunkID])
}

func (s *Snapshot) edgesAt(idx []int) []Edge {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = s.Edges[j]
	}
	return out
}

// ChunkIDs returns all chunk IDs in ascending order.
func (s *Snapshot) ChunkIDs() []string {
	ids := make([]string, 0, len(s.Chunks))
	for id := range s.Chunks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EmbeddingsByContentHash indexes the snapshot's embedding records by
// (content hash, model) for reuse during the next ingestion run.
func (s *Snapshot) EmbeddingsByContentHash(modelID string) map[string]EmbeddingRecord {
	out := make(map[string]EmbeddingRecord)
	for _, rec := range s.Embeddings {
		if rec.ModelID == modelID {
			out[rec.ContentHash] = rec
		}
	}
	return out
}
