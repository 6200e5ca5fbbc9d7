// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/pke/pkg/model"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDirSourceWalks(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "x = 1\n")
	writeFile(t, root, "docs/readme.md", "# Hi\n")
	writeFile(t, root, "data.json", "{}")
	writeFile(t, root, ".git/config", "noise")
	writeFile(t, root, "vendor/dep.go", "package dep\n")

	src := NewDirSource(root, nil, 0, nil)
	files, err := src.Files(context.Background())
	require.NoError(t, err)

	paths := make(map[string]string)
	for _, f := range files {
		paths[f.Path] = f.Language
	}
	assert.Equal(t, map[string]string{
		"main.py":        "python",
		"docs/readme.md": "markdown",
	}, paths)
	assert.Equal(t, 1, src.SkipReasons["unsupported_language"])
}

func TestDirSourceExcludeGlobs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.py", "x = 1\n")
	writeFile(t, root, "skip_test.py", "x = 1\n")

	src := NewDirSource(root, []string{"*_test.py"}, 0, nil)
	files, err := src.Files(context.Background())
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "keep.py", files[0].Path)
	assert.Equal(t, 1, src.SkipReasons["excluded"])
}

func TestDirSourceMaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.py", "x = 1\n")
	writeFile(t, root, "big.py", "# "+string(make([]byte, 4096))+"\n")

	src := NewDirSource(root, nil, 100, nil)
	files, err := src.Files(context.Background())
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "small.py", files[0].Path)
	assert.Equal(t, 1, src.SkipReasons["too_large"])
}

func TestDirSourceUnreachable(t *testing.T) {
	src := NewDirSource(filepath.Join(t.TempDir(), "nope"), nil, 0, nil)
	_, err := src.Files(context.Background())
	require.Error(t, err)

	var ingErr *model.IngestionError
	require.True(t, errors.As(err, &ingErr))
	assert.Equal(t, "corpus unreachable", ingErr.Reason)
}

func TestGitSourceRejectsInvalidURL(t *testing.T) {
	for _, url := range []string{
		"https://example.com/repo.git; rm -rf /",
		"not a url",
		"javascript:alert(1)",
	} {
		src := NewGitSource(url, nil)
		_, err := src.Files(context.Background())
		require.Error(t, err, url)

		var ingErr *model.IngestionError
		require.True(t, errors.As(err, &ingErr))
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage("a/b.py"))
	assert.Equal(t, "go", DetectLanguage("main.go"))
	assert.Equal(t, "markdown", DetectLanguage("README.MD"))
	assert.Equal(t, "", DetectLanguage("image.png"))
}
