// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package index defines the vector index contract the retrieval engine
// depends on, plus two implementations: an in-memory brute-force index
// used as the reference for tests, and a Qdrant-backed index for
// production deployments.
//
// Scores are similarities: higher means closer. All implementations
// break score ties by chunk ID ascending so queries are deterministic.
package index

import (
	"context"

	"github.com/kraklabs/pke/pkg/model"
)

// Metadata travels with each vector and supports query-time filtering.
type Metadata struct {
	Kind       model.ChunkKind `json:"kind"`
	SourcePath string          `json:"source_path"`
	Language   string          `json:"language"`
}

// Filter restricts a query to matching metadata. Zero-value fields
// match everything.
type Filter struct {
	Kinds []model.ChunkKind
}

// Matches reports whether the metadata passes the filter.
func (f *Filter) Matches(meta Metadata) bool {
	if f == nil || len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if k == meta.Kind {
			return true
		}
	}
	return false
}

// Hit is one nearest-neighbor match.
type Hit struct {
	ChunkID string
	Score   float64
}

// Index stores (chunk ID, vector, metadata) triples and answers
// nearest-neighbor queries. Implementations must be safe for concurrent
// readers; the ingestion orchestrator is the only writer.
type Index interface {
	// Upsert inserts or replaces the vector for a chunk.
	Upsert(ctx context.Context, chunkID string, vector []float32, meta Metadata) error

	// Query returns up to k hits ordered by similarity descending,
	// ties broken by chunk ID ascending.
	Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error)

	// Delete removes a chunk's vector. Deleting an absent chunk is not
	// an error.
	Delete(ctx context.Context, chunkID string) error
}
