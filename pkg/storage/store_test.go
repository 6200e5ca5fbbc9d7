// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/pke/pkg/model"
)

func testSnapshot(t *testing.T) *model.Snapshot {
	t.Helper()
	chunks := []*model.Chunk{
		{
			ID: "chunk:aaa", Kind: model.KindModule, SourcePath: "a.py",
			Span: model.Span{StartLine: 1, EndLine: 5, StartByte: 0, EndByte: 80},
			Name: "a", Content: "def f():\n    pass\n", Language: "python",
		},
		{
			ID: "chunk:bbb", Kind: model.KindFunction, SourcePath: "a.py",
			Span: model.Span{StartLine: 1, EndLine: 2, StartByte: 0, EndByte: 18},
			Name: "f", Signature: "def f()", Content: "def f():\n    pass",
			ParentID: "chunk:aaa", Language: "python",
		},
	}
	snap := model.NewSnapshot("a-corpus", chunks)
	snap.Edges = []model.Edge{
		{Kind: model.EdgeContains, SourceID: "chunk:aaa", TargetID: "chunk:bbb", Confidence: 1.0},
		{Kind: model.EdgeCalls, SourceID: "chunk:bbb", TargetName: "missing"},
	}
	snap.Embeddings = map[string]model.EmbeddingRecord{
		"chunk:bbb": {
			ChunkID: "chunk:bbb", Vector: []float32{0.5, -0.25, 1.0}, ModelID: "mock-embed",
			ContentHash: model.ContentHash("def f():\n    pass"), CreatedAt: time.Now().UTC(),
		},
	}
	snap.Report = model.RunReport{FilesSeen: 1, FilesProcessed: 1, ChunksProduced: 2}
	snap.Finalize()
	return snap
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreCommitAndCurrent(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "pke.db"))
	assert.Nil(t, s.Current())

	snap := testSnapshot(t)
	require.NoError(t, s.Commit(context.Background(), snap))

	cur := s.Current()
	require.NotNil(t, cur)
	assert.Equal(t, snap.Revision, cur.Revision)
	assert.Len(t, cur.Chunks, 2)
}

func TestStoreReloadsAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pke.db")
	snap := testSnapshot(t)

	s := openStore(t, path)
	require.NoError(t, s.Commit(context.Background(), snap))
	require.NoError(t, s.Close())

	reopened := openStore(t, path)
	cur := reopened.Current()
	require.NotNil(t, cur)
	assert.Equal(t, snap.Revision, cur.Revision)
	assert.Equal(t, "a-corpus", cur.Source)
	assert.Equal(t, 1, cur.Report.FilesProcessed)

	f := cur.Chunks["chunk:bbb"]
	require.NotNil(t, f)
	assert.Equal(t, model.KindFunction, f.Kind)
	assert.Equal(t, "def f()", f.Signature)
	assert.Equal(t, "chunk:aaa", f.ParentID)
	assert.Equal(t, model.Span{StartLine: 1, EndLine: 2, StartByte: 0, EndByte: 18}, f.Span)

	require.Len(t, cur.Edges, 2)
	rec := cur.Embeddings["chunk:bbb"]
	assert.Equal(t, []float32{0.5, -0.25, 1.0}, rec.Vector)
	assert.Equal(t, "mock-embed", rec.ModelID)

	// Adjacency survives the round trip.
	out := cur.Outgoing("chunk:aaa")
	require.Len(t, out, 1)
	assert.Equal(t, "chunk:bbb", out[0].TargetID)
}

func TestStoreKeepsOnlyLatestRevision(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "pke.db"))

	first := testSnapshot(t)
	require.NoError(t, s.Commit(context.Background(), first))

	second := model.NewSnapshot("a-corpus", []*model.Chunk{
		{ID: "chunk:ccc", Kind: model.KindModule, SourcePath: "b.py", Name: "b", Content: "y = 2\n",
			Span: model.Span{StartLine: 1, EndLine: 1, StartByte: 0, EndByte: 6}},
	})
	second.Finalize()
	require.NoError(t, s.Commit(context.Background(), second))

	var snapshots, chunks int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&snapshots))
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&chunks))
	assert.Equal(t, 1, snapshots)
	assert.Equal(t, 1, chunks)
	assert.Equal(t, second.Revision, s.Current().Revision)
}

func TestStoreCommitUnchangedRevision(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "pke.db"))

	snap := testSnapshot(t)
	require.NoError(t, s.Commit(context.Background(), snap))
	again := testSnapshot(t)
	require.NoError(t, s.Commit(context.Background(), again))
	assert.Equal(t, snap.Revision, s.Current().Revision)
}

func TestStoreCloseIdempotent(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "pke.db"))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0, 1, -1, 0.333, 1e-9}
	assert.Equal(t, vec, decodeVector(encodeVector(vec)))
	assert.Empty(t, decodeVector(nil))
}
