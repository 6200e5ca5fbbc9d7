// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("myproject", "/tmp/myproject")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "myproject", cfg.ProjectID)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, "memory", cfg.Index.Backend)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := Default("demo", root)
	cfg.Source.ExcludeGlobs = []string{"*.generated.py"}
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.Model = "text-embedding-3-large"

	path := Path(root)
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.ProjectID, loaded.ProjectID)
	assert.Equal(t, cfg.Source.ExcludeGlobs, loaded.Source.ExcludeGlobs)
	assert.Equal(t, "openai", loaded.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", loaded.Embedding.Model)
	assert.Equal(t, 0.7, loaded.Retrieval.Alpha)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRejectsInvalid(t *testing.T) {
	root := t.TempDir()
	path := Path(root)
	require.NoError(t, os.MkdirAll(Dir(root), 0o755))

	cases := map[string]string{
		"missing project id": "source:\n  root: .\nembedding:\n  provider: mock\nindex:\n  backend: memory\n",
		"bad provider":       "project_id: p\nsource:\n  root: .\nembedding:\n  provider: cohere\nindex:\n  backend: memory\n",
		"bad backend":        "project_id: p\nsource:\n  root: .\nembedding:\n  provider: mock\nindex:\n  backend: faiss\n",
		"qdrant without url": "project_id: p\nsource:\n  root: .\nembedding:\n  provider: mock\nindex:\n  backend: qdrant\n",
		"not yaml":           "{{{",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("/repo", ".pke", "project.yaml"), Path("/repo"))
	assert.Equal(t, filepath.Join("/repo", ".pke", "snapshot.db"), DataPath("/repo"))
}
