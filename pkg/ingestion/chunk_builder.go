// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"bytes"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/pke/pkg/model"
)

// chunkBuilder accumulates the chunk forest for one file. Chunk IDs are
// computed at append time from path, span and verbatim content, so the
// builder never mutates a chunk after adding it.
type chunkBuilder struct {
	path     string
	language string
	source   []byte
	chunks   []*model.Chunk
}

func newChunkBuilder(path, language string, source []byte) *chunkBuilder {
	return &chunkBuilder{path: path, language: language, source: source}
}

// add appends a chunk covering span. Content is the exact byte slice of
// the span, so locating the span in the original text reproduces the
// content field byte-for-byte.
func (b *chunkBuilder) add(kind model.ChunkKind, name string, span model.Span, parentID string) *model.Chunk {
	content := string(b.source[span.StartByte:span.EndByte])
	c := &model.Chunk{
		ID:         model.ChunkID(b.path, span, content),
		Kind:       kind,
		SourcePath: b.path,
		Span:       span,
		Name:       name,
		Content:    content,
		ParentID:   parentID,
		Language:   b.language,
	}
	b.chunks = append(b.chunks, c)
	return c
}

// addModule appends the file root chunk spanning the entire source.
func (b *chunkBuilder) addModule() *model.Chunk {
	name := strings.TrimSuffix(filepath.Base(b.path), filepath.Ext(b.path))
	span := model.Span{
		StartLine: 1,
		EndLine:   lineCount(b.source),
		StartByte: 0,
		EndByte:   len(b.source),
	}
	return b.add(model.KindModule, name, span, "")
}

func (b *chunkBuilder) text(n *sitter.Node) string {
	return string(b.source[n.StartByte():n.EndByte()])
}

// nodeSpan converts a tree-sitter node extent to a Span. Tree-sitter
// end points land on column 0 of the next row when a node ends with a
// newline; the end line is pulled back so it names the last line that
// actually holds content.
func nodeSpan(n *sitter.Node) model.Span {
	startLine := int(n.StartPoint().Row) + 1
	endLine := int(n.EndPoint().Row) + 1
	if n.EndPoint().Column == 0 && n.EndByte() > n.StartByte() {
		endLine--
	}
	return model.Span{
		StartLine: startLine,
		EndLine:   endLine,
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
	}
}

// spanBetween covers two nodes, from the start of first to the end of
// last. Used to fold doc comments and decorators into a definition's
// extent.
func spanBetween(first, last *sitter.Node) model.Span {
	return model.Span{
		StartLine: int(first.StartPoint().Row) + 1,
		EndLine:   nodeSpan(last).EndLine,
		StartByte: int(first.StartByte()),
		EndByte:   int(last.EndByte()),
	}
}

func lineCount(source []byte) int {
	if len(source) == 0 {
		return 1
	}
	n := bytes.Count(source, []byte{'\n'})
	if source[len(source)-1] != '\n' {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}
