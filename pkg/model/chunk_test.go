// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkID_Deterministic(t *testing.T) {
	span := Span{StartLine: 1, EndLine: 3, StartByte: 0, EndByte: 42}

	id1 := ChunkID("pkg/a.py", span, "def a(): pass")
	id2 := ChunkID("pkg/a.py", span, "def a(): pass")
	assert.Equal(t, id1, id2, "identical inputs must yield identical IDs")
}

func TestChunkID_SensitiveToInputs(t *testing.T) {
	span := Span{StartLine: 1, EndLine: 3, StartByte: 0, EndByte: 42}
	base := ChunkID("pkg/a.py", span, "def a(): pass")

	assert.NotEqual(t, base, ChunkID("pkg/b.py", span, "def a(): pass"), "path must participate")
	assert.NotEqual(t, base, ChunkID("pkg/a.py", span, "def a(): return 1"), "content must participate")

	shifted := span
	shifted.StartLine = 2
	assert.NotEqual(t, base, ChunkID("pkg/a.py", shifted, "def a(): pass"), "span must participate")
}

func TestSpan_Overlaps(t *testing.T) {
	a := Span{StartByte: 0, EndByte: 10}
	b := Span{StartByte: 10, EndByte: 20}
	c := Span{StartByte: 5, EndByte: 15}

	assert.False(t, a.Overlaps(b), "adjacent spans do not overlap")
	assert.True(t, a.Overlaps(c))
	assert.True(t, c.Overlaps(b))
}

func TestSpan_Contains(t *testing.T) {
	outer := Span{StartByte: 0, EndByte: 100}
	inner := Span{StartByte: 10, EndByte: 50}

	assert.True(t, outer.Contains(inner))
	assert.False(t, inner.Contains(outer))
	assert.True(t, outer.Contains(outer), "a span contains itself")
}

func TestComputeRevision_IgnoresOrder(t *testing.T) {
	a := &Chunk{ID: "chunk:aaa"}
	b := &Chunk{ID: "chunk:bbb"}

	r1 := ComputeRevision([]*Chunk{a, b})
	r2 := ComputeRevision([]*Chunk{b, a})
	assert.Equal(t, r1, r2, "revision must not depend on chunk order")

	r3 := ComputeRevision([]*Chunk{a})
	assert.NotEqual(t, r1, r3)
}

func TestSnapshot_Adjacency(t *testing.T) {
	chunks := []*Chunk{
		{ID: "chunk:a"}, {ID: "chunk:b"}, {ID: "chunk:c"},
	}
	snap := NewSnapshot("test", chunks)
	snap.Edges = []Edge{
		{Kind: EdgeCalls, SourceID: "chunk:a", TargetID: "chunk:b", Confidence: 0.9},
		{Kind: EdgeCalls, SourceID: "chunk:a", TargetName: "unknown", Confidence: 0.4},
		{Kind: EdgeContains, SourceID: "chunk:b", TargetID: "chunk:c", Confidence: 1.0},
	}
	snap.Finalize()

	out := snap.Outgoing("chunk:a")
	assert.Len(t, out, 2, "unresolved edges still appear in outgoing")

	in := snap.Incoming("chunk:c")
	assert.Len(t, in, 1)
	assert.Equal(t, EdgeContains, in[0].Kind)

	assert.Empty(t, snap.Incoming("chunk:a"))
}

func TestSnapshot_EmbeddingsByContentHash(t *testing.T) {
	a := &Chunk{ID: "chunk:a", Content: "def a(): pass"}
	b := &Chunk{ID: "chunk:b", Content: "def b(): pass"}
	snap := NewSnapshot("test", []*Chunk{a, b})
	snap.Embeddings["chunk:a"] = EmbeddingRecord{
		ChunkID: "chunk:a", ModelID: "m1", ContentHash: ContentHash(a.Content),
	}
	snap.Embeddings["chunk:b"] = EmbeddingRecord{
		ChunkID: "chunk:b", ModelID: "m2", ContentHash: ContentHash(b.Content),
	}

	byHash := snap.EmbeddingsByContentHash("m1")
	assert.Len(t, byHash, 1, "only records for the requested model qualify")
	_, ok := byHash[ContentHash(a.Content)]
	assert.True(t, ok)
}

func TestQueryOptions_AllowsKind(t *testing.T) {
	opts := &QueryOptions{}
	assert.True(t, opts.AllowsKind(KindFunction), "empty filter admits everything")

	opts.KindFilter = []ChunkKind{KindClass, KindSection}
	assert.True(t, opts.AllowsKind(KindSection))
	assert.False(t, opts.AllowsKind(KindFunction))
}
