// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/pke/pkg/model"
)

// CorpusFile is one readable unit yielded by a corpus source.
type CorpusFile struct {
	// Path is relative to the corpus root, slash-separated.
	Path     string
	Content  []byte
	Language string
}

// CorpusSource abstracts where a corpus comes from: a local folder, a
// cloned git repository, or anything else that can enumerate files.
// Network and auth concerns live entirely behind this interface.
type CorpusSource interface {
	// Name identifies the source in snapshots and logs.
	Name() string

	// Files enumerates the corpus. An error here is a whole-run
	// failure (the corpus is unreachable).
	Files(ctx context.Context) ([]CorpusFile, error)
}

// languageByExt routes files to chunkers. Files with other extensions
// are skipped and counted.
var languageByExt = map[string]string{
	".py":       "python",
	".go":       "go",
	".md":       "markdown",
	".markdown": "markdown",
}

// DetectLanguage returns the language key for a file path, or "" when
// the extension is not recognized.
func DetectLanguage(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// DirSource walks a local directory tree.
type DirSource struct {
	Root string

	// ExcludeGlobs are matched against the relative slash path; any
	// match skips the file.
	ExcludeGlobs []string

	// MaxFileSize skips files larger than this many bytes. Zero means
	// no limit.
	MaxFileSize int64

	// SkipReasons counts skipped files by reason after Files runs.
	SkipReasons map[string]int

	Logger *slog.Logger
}

// NewDirSource creates a source over a local directory.
func NewDirSource(root string, excludeGlobs []string, maxFileSize int64, logger *slog.Logger) *DirSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirSource{
		Root:         root,
		ExcludeGlobs: excludeGlobs,
		MaxFileSize:  maxFileSize,
		Logger:       logger,
	}
}

// Name returns the directory path.
func (s *DirSource) Name() string { return s.Root }

// Files walks the tree, skipping hidden directories and common
// dependency folders, and reads each supported file.
func (s *DirSource) Files(ctx context.Context) ([]CorpusFile, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, &model.IngestionError{Source: s.Root, Reason: "resolve path", Err: err}
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, &model.IngestionError{Source: s.Root, Reason: "corpus unreachable", Err: err}
	}
	if !info.IsDir() {
		return nil, &model.IngestionError{Source: s.Root, Reason: "not a directory"}
	}

	s.SkipReasons = make(map[string]int)
	var files []CorpusFile

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "__pycache__") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if s.excluded(rel) {
			s.SkipReasons["excluded"]++
			return nil
		}

		lang := DetectLanguage(rel)
		if lang == "" {
			s.SkipReasons["unsupported_language"]++
			return nil
		}

		if s.MaxFileSize > 0 {
			if fi, err := d.Info(); err == nil && fi.Size() > s.MaxFileSize {
				s.SkipReasons["too_large"]++
				s.Logger.Warn("source.file.too_large", "path", rel, "size", fi.Size())
				return nil
			}
		}

		content, err := os.ReadFile(path)
		if err != nil {
			s.SkipReasons["unreadable"]++
			s.Logger.Warn("source.file.unreadable", "path", rel, "err", err)
			return nil
		}

		files = append(files, CorpusFile{Path: rel, Content: content, Language: lang})
		return nil
	})
	if walkErr != nil {
		return nil, &model.IngestionError{Source: s.Root, Reason: "walk corpus", Err: walkErr}
	}

	return files, nil
}

func (s *DirSource) excluded(rel string) bool {
	for _, glob := range s.ExcludeGlobs {
		if ok, _ := filepath.Match(glob, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(glob, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

var (
	// validGitURLPattern matches https, ssh and file git URLs.
	validGitURLPattern = regexp.MustCompile(`^(https?://|git@|ssh://|file://)[\w.\-@:/%]+$`)

	// dangerousCharsPattern matches characters usable for command
	// injection through the clone URL.
	dangerousCharsPattern = regexp.MustCompile(`[;&|$` + "`" + `\n\r\\]`)
)

// GitSource clones a repository into a temporary directory and walks
// it like a DirSource. Close removes the clone.
type GitSource struct {
	URL    string
	Logger *slog.Logger

	dir *DirSource
	tmp string
}

// NewGitSource creates a source that clones the given git URL.
func NewGitSource(url string, logger *slog.Logger) *GitSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSource{URL: url, Logger: logger}
}

// Name returns the clone URL.
func (s *GitSource) Name() string { return s.URL }

// Files clones the repository (shallow) and enumerates it.
func (s *GitSource) Files(ctx context.Context) ([]CorpusFile, error) {
	if !validGitURLPattern.MatchString(s.URL) || dangerousCharsPattern.MatchString(s.URL) {
		return nil, &model.IngestionError{Source: s.URL, Reason: "invalid git url"}
	}

	tmp, err := os.MkdirTemp("", "pke-clone-*")
	if err != nil {
		return nil, &model.IngestionError{Source: s.URL, Reason: "create temp dir", Err: err}
	}
	s.tmp = tmp

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--single-branch", s.URL, tmp)
	if out, err := cmd.CombinedOutput(); err != nil {
		_ = os.RemoveAll(tmp)
		s.tmp = ""
		return nil, &model.IngestionError{
			Source: s.URL,
			Reason: fmt.Sprintf("clone failed: %s", strings.TrimSpace(string(out))),
			Err:    err,
		}
	}

	s.Logger.Info("source.git.cloned", "url", s.URL, "dir", tmp)
	s.dir = NewDirSource(tmp, nil, 0, s.Logger)
	return s.dir.Files(ctx)
}

// SkipReasons exposes the skip counts from the underlying walk.
func (s *GitSource) SkipReasons() map[string]int {
	if s.dir == nil {
		return nil
	}
	return s.dir.SkipReasons
}

// Close removes the temporary clone.
func (s *GitSource) Close() error {
	if s.tmp == "" {
		return nil
	}
	err := os.RemoveAll(s.tmp)
	s.tmp = ""
	return err
}
