// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/pke/internal/config"
	"github.com/kraklabs/pke/pkg/index"
	"github.com/kraklabs/pke/pkg/model"
)

func TestInitProjectCreatesConfigAndDatabase(t *testing.T) {
	root := t.TempDir()

	info, err := InitProject(ProjectConfig{ProjectID: "demo", ProjectRoot: root}, nil)
	require.NoError(t, err)
	assert.Equal(t, "demo", info.ProjectID)
	assert.True(t, info.Created)

	_, err = os.Stat(config.Path(root))
	require.NoError(t, err)
	_, err = os.Stat(config.DataPath(root))
	require.NoError(t, err)
}

func TestInitProjectIdempotent(t *testing.T) {
	root := t.TempDir()

	_, err := InitProject(ProjectConfig{ProjectRoot: root}, nil)
	require.NoError(t, err)

	// Second init must not overwrite the existing config.
	cfg, err := config.Load(config.Path(root))
	require.NoError(t, err)
	cfg.Embedding.Provider = "openai"
	require.NoError(t, config.Save(config.Path(root), cfg))

	info, err := InitProject(ProjectConfig{ProjectRoot: root}, nil)
	require.NoError(t, err)
	assert.False(t, info.Created)

	reloaded, err := config.Load(config.Path(root))
	require.NoError(t, err)
	assert.Equal(t, "openai", reloaded.Embedding.Provider)
}

func TestOpenProjectRequiresInit(t *testing.T) {
	_, err := OpenProject(context.Background(), t.TempDir(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pke init")
}

func TestOpenProjectLoadsConfig(t *testing.T) {
	root := t.TempDir()
	_, err := InitProject(ProjectConfig{ProjectID: "demo", ProjectRoot: root}, nil)
	require.NoError(t, err)

	project, err := OpenProject(context.Background(), root, nil)
	require.NoError(t, err)
	defer func() { _ = project.Close() }()

	assert.Equal(t, "demo", project.Config.ProjectID)
	assert.Nil(t, project.Store.Current())
}

func TestBuildEmbedder(t *testing.T) {
	cfg := config.Default("p", "/tmp/p")

	mock, err := BuildEmbedder(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "mock-embed", mock.ModelID())

	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKeyEnv = "PKE_TEST_MISSING_KEY"
	_, err = BuildEmbedder(cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PKE_TEST_MISSING_KEY")

	t.Setenv("PKE_TEST_MISSING_KEY", "sk-test")
	client, err := BuildEmbedder(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", client.ModelID())
}

func TestBuildIndexMemory(t *testing.T) {
	cfg := config.Default("p", "/tmp/p")
	idx, err := BuildIndex(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := idx.(*index.Memory)
	assert.True(t, ok)
}

func TestRehydrateIndex(t *testing.T) {
	root := t.TempDir()
	_, err := InitProject(ProjectConfig{ProjectID: "demo", ProjectRoot: root}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	project, err := OpenProject(ctx, root, nil)
	require.NoError(t, err)
	defer func() { _ = project.Close() }()

	chunk := &model.Chunk{
		ID:         "chunk:r1",
		Kind:       model.KindFunction,
		Name:       "f",
		Language:   "python",
		SourcePath: "a.py",
		Content:    "def f(): pass",
	}
	snap := model.NewSnapshot("dir:"+root, []*model.Chunk{chunk})
	snap.Embeddings[chunk.ID] = model.EmbeddingRecord{
		ChunkID:     chunk.ID,
		Vector:      []float32{1, 0, 0},
		ModelID:     "mock-embed",
		ContentHash: model.ContentHash(chunk.Content),
		CreatedAt:   time.Now().UTC(),
	}
	snap.Finalize()
	require.NoError(t, project.Store.Commit(ctx, snap))

	idx := index.NewMemory()
	require.NoError(t, project.RehydrateIndex(ctx, idx))
	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Query(ctx, []float32{1, 0, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk:r1", hits[0].ChunkID)
}
