// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/pke/pkg/model"
)

func TestMemory_UpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	require.NoError(t, idx.Upsert(ctx, "chunk:a", []float32{1, 0, 0}, Metadata{Kind: model.KindFunction}))
	require.NoError(t, idx.Upsert(ctx, "chunk:b", []float32{0, 1, 0}, Metadata{Kind: model.KindClass}))
	require.NoError(t, idx.Upsert(ctx, "chunk:c", []float32{0.9, 0.1, 0}, Metadata{Kind: model.KindFunction}))

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "chunk:a", hits[0].ChunkID)
	assert.Equal(t, "chunk:c", hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemory_QueryTieBreakByID(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	// Identical vectors produce identical scores; order must fall back
	// to chunk ID ascending.
	require.NoError(t, idx.Upsert(ctx, "chunk:zzz", []float32{1, 0}, Metadata{}))
	require.NoError(t, idx.Upsert(ctx, "chunk:aaa", []float32{1, 0}, Metadata{}))
	require.NoError(t, idx.Upsert(ctx, "chunk:mmm", []float32{1, 0}, Metadata{}))

	hits, err := idx.Query(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "chunk:aaa", hits[0].ChunkID)
	assert.Equal(t, "chunk:mmm", hits[1].ChunkID)
	assert.Equal(t, "chunk:zzz", hits[2].ChunkID)
}

func TestMemory_KindFilter(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	require.NoError(t, idx.Upsert(ctx, "chunk:fn", []float32{1, 0}, Metadata{Kind: model.KindFunction}))
	require.NoError(t, idx.Upsert(ctx, "chunk:cls", []float32{1, 0}, Metadata{Kind: model.KindClass}))

	hits, err := idx.Query(ctx, []float32{1, 0}, 10, &Filter{Kinds: []model.ChunkKind{model.KindClass}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk:cls", hits[0].ChunkID)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	require.NoError(t, idx.Upsert(ctx, "chunk:a", []float32{1, 0}, Metadata{}))
	require.NoError(t, idx.Delete(ctx, "chunk:a"))
	require.NoError(t, idx.Delete(ctx, "chunk:a"), "deleting an absent chunk is not an error")

	hits, err := idx.Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemory_KZero(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.Upsert(ctx, "chunk:a", []float32{1}, Metadata{}))

	hits, err := idx.Query(ctx, []float32{1}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, hits, "k=0 returns empty, not an error")
}

func TestMemory_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	require.NoError(t, idx.Upsert(ctx, "chunk:a", []float32{1, 0, 0}, Metadata{}))
	err := idx.Upsert(ctx, "chunk:b", []float32{1, 0}, Metadata{})
	assert.Error(t, err)
}
