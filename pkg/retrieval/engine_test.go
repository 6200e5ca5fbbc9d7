// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/pke/pkg/index"
	"github.com/kraklabs/pke/pkg/model"
)

// stubEmbedder maps known texts to fixed unit vectors.
type stubEmbedder struct {
	vectors map[string][]float32
}

func (s *stubEmbedder) ModelID() string { return "stub-embed" }

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, ok := s.vectors[t]
		if !ok {
			return nil, errors.New("unknown text: " + t)
		}
		out[i] = vec
	}
	return out, nil
}

// stubSource serves a fixed snapshot.
type stubSource struct{ snap *model.Snapshot }

func (s *stubSource) Current() *model.Snapshot { return s.snap }

var (
	vecA = []float32{1, 0, 0, 0}
	vecB = []float32{0, 1, 0, 0}
	vecC = []float32{0, 0, 1, 0}
)

// fixture returns a three-chunk corpus: function A calls C, function B
// calls A, and the vector index holds the axis vectors above.
func fixture(t *testing.T) (*stubSource, *index.Memory, *stubEmbedder) {
	t.Helper()

	snap := model.NewSnapshot("fixture", []*model.Chunk{
		{ID: "chunk:a", Kind: model.KindFunction, SourcePath: "a.py", Name: "a", Content: "body a"},
		{ID: "chunk:b", Kind: model.KindFunction, SourcePath: "b.py", Name: "b", Content: "body b"},
		{ID: "chunk:c", Kind: model.KindSection, SourcePath: "c.md", Name: "c", Content: "body c"},
	})
	snap.Edges = []model.Edge{
		{Kind: model.EdgeCalls, SourceID: "chunk:a", TargetID: "chunk:c", TargetName: "c", Confidence: 0.9},
		{Kind: model.EdgeCalls, SourceID: "chunk:b", TargetID: "chunk:a", TargetName: "a", Confidence: 0.9},
	}
	snap.Finalize()

	idx := index.NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "chunk:a", vecA, index.Metadata{Kind: "function", SourcePath: "a.py"}))
	require.NoError(t, idx.Upsert(ctx, "chunk:b", vecB, index.Metadata{Kind: "function", SourcePath: "b.py"}))
	require.NoError(t, idx.Upsert(ctx, "chunk:c", vecC, index.Metadata{Kind: "section", SourcePath: "c.md"}))

	embedder := &stubEmbedder{vectors: map[string][]float32{
		"find a":  vecA,
		"find b":  vecB,
		"find ab": {0.7071, 0.7071, 0, 0},
	}}
	return &stubSource{snap: snap}, idx, embedder
}

func newTestEngine(source SnapshotSource, idx index.Index, embedder *stubEmbedder, cfg Config) *Engine {
	return NewEngine(source, idx, embedder, cfg, nil)
}

func TestEngineVectorAndGraphFusion(t *testing.T) {
	source, idx, embedder := fixture(t)
	// ExpandFactor 1 keeps the seed set to exactly k hits.
	engine := newTestEngine(source, idx, embedder, Config{Alpha: 0.7, Beta: 0.3, ExpandFactor: 1})

	resp, err := engine.Query(context.Background(), "find a", 2, nil)
	require.NoError(t, err)
	assert.False(t, resp.Partial)
	assert.Equal(t, source.snap.Revision, resp.Revision)
	require.Len(t, resp.Results, 2)

	top := resp.Results[0]
	assert.Equal(t, "chunk:a", top.Chunk.ID)
	assert.Equal(t, model.MatchedByVector, top.MatchedBy)
	assert.InDelta(t, 1.0, top.VectorScore, 1e-5)
	assert.InDelta(t, 0.7, top.Score, 1e-5)

	// c arrives only through the a->c edge.
	second := resp.Results[1]
	assert.Equal(t, "chunk:c", second.Chunk.ID)
	assert.Equal(t, model.MatchedByGraph, second.MatchedBy)
	assert.Zero(t, second.VectorScore)
	assert.InDelta(t, 0.3*0.9, second.Score, 1e-5)
}

func TestEngineMatchedByBoth(t *testing.T) {
	source, idx, embedder := fixture(t)
	engine := newTestEngine(source, idx, embedder, Config{ExpandFactor: 3})

	resp, err := engine.Query(context.Background(), "find ab", 3, nil)
	require.NoError(t, err)

	var a *model.RetrievalResult
	for i := range resp.Results {
		if resp.Results[i].Chunk.ID == "chunk:a" {
			a = &resp.Results[i]
		}
	}
	require.NotNil(t, a)
	assert.Equal(t, model.MatchedByBoth, a.MatchedBy, "a is a seed and a neighbor of seed b")
	assert.Positive(t, a.GraphBoost)
	assert.NotEmpty(t, a.Related)
}

func TestEngineExpandGraphDisabled(t *testing.T) {
	source, idx, embedder := fixture(t)
	engine := newTestEngine(source, idx, embedder, Config{ExpandFactor: 1})

	opts := &model.QueryOptions{ExpandGraph: false}
	resp, err := engine.Query(context.Background(), "find a", 2, opts)
	require.NoError(t, err)

	for _, r := range resp.Results {
		assert.NotEqual(t, model.MatchedByGraph, r.MatchedBy)
		assert.Zero(t, r.GraphBoost)
		assert.Empty(t, r.Related)
	}
}

func TestEngineDeterministic(t *testing.T) {
	source, idx, embedder := fixture(t)
	engine := newTestEngine(source, idx, embedder, Config{})

	first, err := engine.Query(context.Background(), "find a", 3, nil)
	require.NoError(t, err)
	second, err := engine.Query(context.Background(), "find a", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEngineKindFilter(t *testing.T) {
	source, idx, embedder := fixture(t)
	engine := newTestEngine(source, idx, embedder, Config{})

	opts := &model.QueryOptions{KindFilter: []model.ChunkKind{model.KindSection}, ExpandGraph: true}
	resp, err := engine.Query(context.Background(), "find a", 5, opts)
	require.NoError(t, err)

	for _, r := range resp.Results {
		assert.Equal(t, model.KindSection, r.Chunk.Kind)
	}
}

func TestEngineMinScore(t *testing.T) {
	source, idx, embedder := fixture(t)
	engine := newTestEngine(source, idx, embedder, Config{Alpha: 0.7, Beta: 0.3})

	opts := &model.QueryOptions{MinScore: 0.5, ExpandGraph: true}
	resp, err := engine.Query(context.Background(), "find a", 5, opts)
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, "chunk:a", resp.Results[0].Chunk.ID)
}

func TestEngineZeroK(t *testing.T) {
	source, idx, embedder := fixture(t)
	engine := newTestEngine(source, idx, embedder, Config{})

	resp, err := engine.Query(context.Background(), "find a", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
	assert.Equal(t, source.snap.Revision, resp.Revision)
}

func TestEngineNoSnapshot(t *testing.T) {
	_, idx, embedder := fixture(t)
	engine := newTestEngine(&stubSource{}, idx, embedder, Config{})

	_, err := engine.Query(context.Background(), "find a", 3, nil)
	assert.ErrorIs(t, err, model.ErrNoSnapshot)
}

// downIndex simulates an unreachable vector index.
type downIndex struct{}

func (downIndex) Upsert(ctx context.Context, chunkID string, vector []float32, meta index.Metadata) error {
	return model.ErrIndexUnavailable
}

func (downIndex) Query(ctx context.Context, vector []float32, k int, filter *index.Filter) ([]index.Hit, error) {
	return nil, model.ErrIndexUnavailable
}

func (downIndex) Delete(ctx context.Context, chunkID string) error {
	return model.ErrIndexUnavailable
}

func TestEngineFailsClosedWhenIndexDown(t *testing.T) {
	source, _, embedder := fixture(t)
	engine := newTestEngine(source, downIndex{}, embedder, Config{})

	_, err := engine.Query(context.Background(), "find a", 3, nil)
	assert.ErrorIs(t, err, model.ErrIndexUnavailable)
}

func TestEngineSkipsStaleHits(t *testing.T) {
	source, idx, embedder := fixture(t)
	// A vector whose chunk no longer exists in the snapshot.
	require.NoError(t, idx.Upsert(context.Background(), "chunk:gone", vecB, index.Metadata{Kind: "function"}))
	delete(source.snap.Chunks, "chunk:b")

	engine := newTestEngine(source, idx, embedder, Config{})
	resp, err := engine.Query(context.Background(), "find b", 5, nil)
	require.NoError(t, err)

	for _, r := range resp.Results {
		assert.NotEqual(t, "chunk:gone", r.Chunk.ID)
		assert.NotEqual(t, "chunk:b", r.Chunk.ID)
	}
}

// timedOutIndex reports a deadline expiry from the search call itself.
type timedOutIndex struct{}

func (timedOutIndex) Upsert(ctx context.Context, chunkID string, vector []float32, meta index.Metadata) error {
	return nil
}

func (timedOutIndex) Query(ctx context.Context, vector []float32, k int, filter *index.Filter) ([]index.Hit, error) {
	return nil, fmt.Errorf("search: %w", context.DeadlineExceeded)
}

func (timedOutIndex) Delete(ctx context.Context, chunkID string) error {
	return nil
}

func TestEnginePartialOnSearchDeadline(t *testing.T) {
	source, _, embedder := fixture(t)
	engine := newTestEngine(source, timedOutIndex{}, embedder, Config{})

	resp, err := engine.Query(context.Background(), "find a", 3, nil)
	require.NoError(t, err)

	assert.True(t, resp.Partial)
	assert.NotEmpty(t, resp.PartialReason)
	assert.Empty(t, resp.Results)
	assert.Equal(t, source.snap.Revision, resp.Revision)
}

func TestEngineExpansionSkipsImportEdges(t *testing.T) {
	snap := model.NewSnapshot("fixture", []*model.Chunk{
		{ID: "chunk:a", Kind: model.KindFunction, SourcePath: "a.py", Name: "a", Content: "body a"},
		{ID: "chunk:m", Kind: model.KindModule, SourcePath: "m.py", Name: "m", Content: "module m"},
		{ID: "chunk:c", Kind: model.KindSection, SourcePath: "c.md", Name: "c", Content: "body c"},
	})
	snap.Edges = []model.Edge{
		{Kind: model.EdgeImports, SourceID: "chunk:a", TargetID: "chunk:m", TargetName: "m", Confidence: 0.7},
		{Kind: model.EdgeCalls, SourceID: "chunk:a", TargetID: "chunk:c", TargetName: "c", Confidence: 0.9},
	}
	snap.Finalize()

	idx := index.NewMemory()
	require.NoError(t, idx.Upsert(context.Background(), "chunk:a", vecA, index.Metadata{Kind: "function", SourcePath: "a.py"}))

	embedder := &stubEmbedder{vectors: map[string][]float32{"find a": vecA}}
	engine := newTestEngine(&stubSource{snap: snap}, idx, embedder, Config{})

	resp, err := engine.Query(context.Background(), "find a", 5, nil)
	require.NoError(t, err)

	var ids []string
	for _, r := range resp.Results {
		ids = append(ids, r.Chunk.ID)
	}
	assert.Contains(t, ids, "chunk:c", "call neighbors join the candidate set")
	assert.NotContains(t, ids, "chunk:m", "imported modules stay out of expansion")
}

// cancellingIndex cancels the query context after returning hits, as a
// deadline expiring between retrieval steps would.
type cancellingIndex struct {
	inner  *index.Memory
	cancel context.CancelFunc
}

func (c *cancellingIndex) Upsert(ctx context.Context, chunkID string, vector []float32, meta index.Metadata) error {
	return c.inner.Upsert(ctx, chunkID, vector, meta)
}

func (c *cancellingIndex) Query(ctx context.Context, vector []float32, k int, filter *index.Filter) ([]index.Hit, error) {
	hits, err := c.inner.Query(ctx, vector, k, filter)
	c.cancel()
	return hits, err
}

func (c *cancellingIndex) Delete(ctx context.Context, chunkID string) error {
	return c.inner.Delete(ctx, chunkID)
}

func TestEnginePartialOnDeadline(t *testing.T) {
	source, idx, embedder := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newTestEngine(source, &cancellingIndex{inner: idx, cancel: cancel}, embedder, Config{ExpandFactor: 1})
	resp, err := engine.Query(ctx, "find a", 2, nil)
	require.NoError(t, err)

	assert.True(t, resp.Partial)
	assert.NotEmpty(t, resp.PartialReason)
	require.NotEmpty(t, resp.Results)
	for _, r := range resp.Results {
		assert.Equal(t, model.MatchedByVector, r.MatchedBy, "partial answers carry vector matches only")
	}
}
