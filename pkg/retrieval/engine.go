// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package retrieval answers natural-language queries against the
// current snapshot by fusing vector similarity with knowledge graph
// proximity.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kraklabs/pke/pkg/index"
	"github.com/kraklabs/pke/pkg/ingestion"
	"github.com/kraklabs/pke/pkg/model"
)

// SnapshotSource provides the snapshot queries run against.
type SnapshotSource interface {
	Current() *model.Snapshot
}

// Config tunes the fusion ranking.
type Config struct {
	// Alpha weighs vector similarity, Beta weighs graph boost in the
	// blended score.
	Alpha float64
	Beta  float64

	// ExpandFactor widens the initial vector search to k*ExpandFactor
	// seeds so graph expansion has material to work with.
	ExpandFactor int

	// MaxRelated bounds the neighbor chunks attached to each result.
	MaxRelated int
}

// DefaultConfig returns the standard fusion weights.
func DefaultConfig() Config {
	return Config{Alpha: 0.7, Beta: 0.3, ExpandFactor: 3, MaxRelated: 4}
}

// Engine executes retrieval queries. It is safe for concurrent use;
// every query pins the snapshot that was current when it started.
type Engine struct {
	source   SnapshotSource
	idx      index.Index
	embedder ingestion.EmbeddingClient
	config   Config
	logger   *slog.Logger
}

// NewEngine assembles a retrieval engine.
func NewEngine(source SnapshotSource, idx index.Index, embedder ingestion.EmbeddingClient, config Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if config.Alpha <= 0 {
		config.Alpha = def.Alpha
	}
	if config.Beta < 0 {
		config.Beta = def.Beta
	}
	if config.ExpandFactor < 1 {
		config.ExpandFactor = def.ExpandFactor
	}
	if config.MaxRelated <= 0 {
		config.MaxRelated = def.MaxRelated
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{source: source, idx: idx, embedder: embedder, config: config, logger: logger}
}

// candidate accumulates fusion state for one chunk during ranking.
type candidate struct {
	chunk       *model.Chunk
	vectorScore float64
	graphBoost  float64
	fromVector  bool
	fromGraph   bool
}

// Query returns the top k chunks for the query text. A nil opts uses
// the defaults. When the context deadline expires mid-query the engine
// returns what it has with Partial set rather than failing.
func (e *Engine) Query(ctx context.Context, query string, k int, opts *model.QueryOptions) (*model.RetrievalResponse, error) {
	start := time.Now()
	if opts == nil {
		opts = model.DefaultQueryOptions()
	}

	snap := e.source.Current()
	if snap == nil {
		return nil, model.ErrNoSnapshot
	}
	resp := &model.RetrievalResponse{Revision: snap.Revision}
	recordQuery()

	if k <= 0 {
		return resp, nil
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	m := k * e.config.ExpandFactor
	var filter *index.Filter
	if len(opts.KindFilter) > 0 {
		filter = &index.Filter{Kinds: opts.KindFilter}
	}
	hits, err := e.idx.Query(ctx, vectors[0], m, filter)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			resp.Partial = true
			resp.PartialReason = "deadline expired during vector search"
			recordPartial()
			return resp, nil
		}
		// Fail closed: an unreachable index must not masquerade as an
		// empty corpus.
		return nil, err
	}

	candidates := make(map[string]*candidate)
	var seedOrder []string
	for _, hit := range hits {
		chunk, ok := snap.Chunks[hit.ChunkID]
		if !ok {
			// Stale vector from a superseded snapshot.
			continue
		}
		candidates[hit.ChunkID] = &candidate{chunk: chunk, vectorScore: hit.Score, fromVector: true}
		seedOrder = append(seedOrder, hit.ChunkID)
	}

	if opts.ExpandGraph {
		if ctx.Err() != nil {
			resp.Partial = true
			resp.PartialReason = "deadline expired before graph expansion"
			recordPartial()
		} else {
			e.expand(snap, candidates, seedOrder)
		}
	}

	results := e.rank(candidates, opts)
	if len(results) > k {
		results = results[:k]
	}
	if opts.ExpandGraph && !resp.Partial {
		e.attachRelated(snap, results)
	}
	resp.Results = results

	recordQueryDone(len(results), time.Since(start))
	e.logger.Debug("retrieval.query.done",
		"k", k,
		"seeds", len(seedOrder),
		"results", len(results),
		"partial", resp.Partial,
		"revision", snap.Revision,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// expand walks one hop out from every seed along contains, calls and
// references edges. Import edges link whole modules and would pull in
// every file a seed's module touches, so they stay out of expansion.
// A neighbor's boost is the best (edge confidence x seed similarity)
// over all seeds that reach it.
func (e *Engine) expand(snap *model.Snapshot, candidates map[string]*candidate, seedOrder []string) {
	for _, seedID := range seedOrder {
		seed := candidates[seedID]
		if !seed.fromVector {
			continue
		}
		visit := func(edge model.Edge, neighborID string) {
			if edge.Kind == model.EdgeImports {
				return
			}
			chunk, ok := snap.Chunks[neighborID]
			if !ok {
				return
			}
			boost := edge.Confidence * seed.vectorScore
			if boost <= 0 {
				return
			}
			cand, ok := candidates[neighborID]
			if !ok {
				cand = &candidate{chunk: chunk}
				candidates[neighborID] = cand
			}
			cand.fromGraph = true
			if boost > cand.graphBoost {
				cand.graphBoost = boost
			}
		}
		for _, edge := range snap.Outgoing(seedID) {
			if edge.Resolved() {
				visit(edge, edge.TargetID)
			}
		}
		for _, edge := range snap.Incoming(seedID) {
			visit(edge, edge.SourceID)
		}
	}
}

// rank blends the signals into final scores and orders candidates.
// Ties break by chunk ID so identical queries return identical
// rankings.
func (e *Engine) rank(candidates map[string]*candidate, opts *model.QueryOptions) []model.RetrievalResult {
	results := make([]model.RetrievalResult, 0, len(candidates))
	for _, cand := range candidates {
		if !opts.AllowsKind(cand.chunk.Kind) {
			continue
		}
		score := e.config.Alpha*cand.vectorScore + e.config.Beta*cand.graphBoost
		if score < opts.MinScore {
			continue
		}
		matched := model.MatchedByVector
		switch {
		case cand.fromVector && cand.fromGraph:
			matched = model.MatchedByBoth
		case cand.fromGraph:
			matched = model.MatchedByGraph
		}
		results = append(results, model.RetrievalResult{
			Chunk:       cand.chunk,
			Score:       score,
			VectorScore: cand.vectorScore,
			GraphBoost:  cand.graphBoost,
			MatchedBy:   matched,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	return results
}

// attachRelated collects up to MaxRelated one-hop neighbors per result
// as auxiliary context, nearest confidence first.
func (e *Engine) attachRelated(snap *model.Snapshot, results []model.RetrievalResult) {
	for i := range results {
		id := results[i].Chunk.ID

		type neighbor struct {
			chunk      *model.Chunk
			confidence float64
		}
		var neighbors []neighbor
		seen := map[string]bool{id: true}
		add := func(chunkID string, confidence float64) {
			if seen[chunkID] {
				return
			}
			if chunk, ok := snap.Chunks[chunkID]; ok {
				neighbors = append(neighbors, neighbor{chunk: chunk, confidence: confidence})
				seen[chunkID] = true
			}
		}
		for _, edge := range snap.Outgoing(id) {
			if edge.Resolved() {
				add(edge.TargetID, edge.Confidence)
			}
		}
		for _, edge := range snap.Incoming(id) {
			add(edge.SourceID, edge.Confidence)
		}

		sort.Slice(neighbors, func(a, b int) bool {
			if neighbors[a].confidence != neighbors[b].confidence {
				return neighbors[a].confidence > neighbors[b].confidence
			}
			return neighbors[a].chunk.ID < neighbors[b].chunk.ID
		})
		if len(neighbors) > e.config.MaxRelated {
			neighbors = neighbors[:e.config.MaxRelated]
		}
		for _, n := range neighbors {
			results[i].Related = append(results[i].Related, n.chunk)
		}
	}
}
