// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package model

// MatchedBy records which retrieval signal produced a result.
type MatchedBy string

const (
	MatchedByVector MatchedBy = "vector"
	MatchedByGraph  MatchedBy = "graph"
	MatchedByBoth   MatchedBy = "both"
)

// RetrievalResult is one ranked answer from the retrieval engine.
type RetrievalResult struct {
	Chunk *Chunk `json:"chunk"`

	// Score is the blended ranking score:
	// alpha*vector_similarity + beta*graph_boost.
	Score float64 `json:"score"`

	// VectorScore is the raw similarity from the vector index, 0 when
	// the chunk was found only through graph expansion.
	VectorScore float64 `json:"vector_score"`

	// GraphBoost is the fusion contribution from graph expansion.
	GraphBoost float64 `json:"graph_boost"`

	MatchedBy MatchedBy `json:"matched_by"`

	// Related holds one-hop neighbor chunks collected as auxiliary
	// context. Empty when graph expansion is disabled.
	Related []*Chunk `json:"related,omitempty"`
}

// QueryOptions tunes a single retrieval call.
type QueryOptions struct {
	// KindFilter restricts results to the given chunk kinds. Empty
	// means all kinds.
	KindFilter []ChunkKind `json:"kind_filter,omitempty"`

	// MinScore drops results whose blended score falls below it.
	MinScore float64 `json:"min_score,omitempty"`

	// ExpandGraph enables one-hop graph expansion. Latency-sensitive
	// callers disable it to skip step 3 entirely.
	ExpandGraph bool `json:"expand_graph"`
}

// DefaultQueryOptions returns the options used when the caller passes nil.
func DefaultQueryOptions() *QueryOptions {
	return &QueryOptions{ExpandGraph: true}
}

// AllowsKind reports whether the options admit the given chunk kind.
func (o *QueryOptions) AllowsKind(kind ChunkKind) bool {
	if len(o.KindFilter) == 0 {
		return true
	}
	for _, k := range o.KindFilter {
		if k == kind {
			return true
		}
	}
	return false
}

// RetrievalResponse is the full answer to one query.
type RetrievalResponse struct {
	Results []RetrievalResult `json:"results"`

	// Partial is set when the engine returned before all steps
	// completed, typically because the caller's deadline expired.
	Partial bool `json:"partial"`

	// PartialReason explains why the response is partial.
	PartialReason string `json:"partial_reason,omitempty"`

	// Revision identifies the snapshot the query ran against.
	Revision string `json:"revision"`
}
