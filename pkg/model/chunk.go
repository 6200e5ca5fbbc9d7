// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package model defines the core data types shared across the PKE
// ingestion and retrieval subsystems: chunks, edges, embedding records,
// snapshots and retrieval results.
//
// A Chunk is the atomic retrievable unit. Chunks form a forest per source
// file: one module (or document-level section) chunk at the root, with
// classes, functions, methods and subsections nested below it via ParentID.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChunkKind classifies a chunk by the syntactic construct it covers.
type ChunkKind string

const (
	// KindModule is the root chunk of a source file.
	KindModule ChunkKind = "module"

	// KindClass covers a class, struct or interface definition.
	KindClass ChunkKind = "class"

	// KindFunction covers a free function definition.
	KindFunction ChunkKind = "function"

	// KindMethod covers a function defined inside a class.
	KindMethod ChunkKind = "method"

	// KindSection covers a prose document section.
	KindSection ChunkKind = "section"
)

// Span locates a chunk inside its source file.
// Lines are 1-indexed and inclusive. StartByte is inclusive, EndByte
// exclusive, so content == source[StartByte:EndByte] byte-for-byte.
type Span struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
}

// Contains reports whether s fully encloses other.
func (s Span) Contains(other Span) bool {
	return s.StartByte <= other.StartByte && other.EndByte <= s.EndByte
}

// Overlaps reports whether s and other share any bytes.
func (s Span) Overlaps(other Span) bool {
	return s.StartByte < other.EndByte && other.StartByte < s.EndByte
}

// Chunk is the atomic retrievable unit of code or prose.
type Chunk struct {
	// ID is a stable hash of source path, span and content. Identical
	// input text always yields identical IDs, which makes incremental
	// diffing possible.
	ID string `json:"id"`

	Kind       ChunkKind `json:"kind"`
	SourcePath string    `json:"source_path"`
	Span       Span      `json:"span"`

	// Name is the declared identifier (function name, class name,
	// heading text) or the file base name for module chunks.
	Name string `json:"name"`

	// Signature is the parameter list and return annotation as written
	// in the source. Empty for chunks without one.
	Signature string `json:"signature,omitempty"`

	// Docstring is the documentation text attached to the definition,
	// when the language has a convention for it.
	Docstring string `json:"docstring,omitempty"`

	// Content is the verbatim source text of the span.
	Content string `json:"content"`

	// ParentID is the enclosing chunk's ID, empty for the file root.
	// Parent links form a forest: no cycles, one root per file.
	ParentID string `json:"parent_id,omitempty"`

	Language string `json:"language"`
}

// ChunkID computes the stable chunk identifier from the source path,
// span and verbatim content. The ID is a pure function of its inputs:
// changing one character inside a chunk changes that chunk's ID but not
// its siblings'.
func ChunkID(sourcePath string, span Span, content string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%d|%d|", sourcePath, span.StartLine, span.EndLine, span.StartByte, span.EndByte)
	h.Write([]byte(content))
	return "chunk:" + hex.EncodeToString(h.Sum(nil))
}

// ContentHash hashes only the chunk content. Embedding reuse is keyed on
// this hash so a chunk that merely moved inside its file keeps its
// embedding.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
