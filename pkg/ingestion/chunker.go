// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package ingestion implements the PKE ingestion pipeline: code-aware
// and document chunkers, corpus sources, the embedding client, the
// knowledge graph builder and the orchestrator that drives them into
// an atomically committed snapshot.
package ingestion

import (
	"log/slog"

	"github.com/kraklabs/pke/pkg/model"
)

// ParseResult is the output of chunking one source file: the chunk
// forest in source order plus the raw call/import references found in
// it. References are unresolved at this stage; the graph builder turns
// them into edges once the whole corpus is chunked.
type ParseResult struct {
	Chunks []*model.Chunk
	Refs   []model.RawReference
}

// Chunker parses one file format or language into semantic chunks.
// Implementations must be deterministic: identical input text always
// yields identical chunk IDs and spans. They must return a
// *model.ParseError when the source is not syntactically valid for the
// declared language.
type Chunker interface {
	// Language returns the language key this chunker handles.
	Language() string

	// Parse decomposes source into an ordered chunk forest rooted at
	// one module (or document-level section) chunk.
	Parse(path string, source []byte) (*ParseResult, error)
}

// Registry selects a chunker by detected language. Polymorphic
// chunk handling (code vs prose) goes through this single interface
// rather than any inheritance of chunk types.
type Registry struct {
	chunkers map[string]Chunker
	logger   *slog.Logger
}

// NewRegistry creates an empty chunker registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		chunkers: make(map[string]Chunker),
		logger:   logger,
	}
}

// DefaultRegistry returns a registry with all built-in chunkers:
// Python (the reference language for the chunker contract), Go and
// Markdown.
func DefaultRegistry(logger *slog.Logger) *Registry {
	r := NewRegistry(logger)
	r.Register(NewPythonChunker())
	r.Register(NewGoChunker())
	r.Register(NewMarkdownChunker())
	return r
}

// Register adds a chunker, replacing any previous one for the same
// language key.
func (r *Registry) Register(c Chunker) {
	r.chunkers[c.Language()] = c
}

// For returns the chunker registered for the language, or nil when the
// language is unsupported.
func (r *Registry) For(language string) Chunker {
	return r.chunkers[language]
}

// Languages returns the registered language keys.
func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.chunkers))
	for lang := range r.chunkers {
		out = append(out, lang)
	}
	return out
}
