// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kraklabs/pke/pkg/model"
)

// MarkdownChunker splits prose documents into section chunks along
// heading markers. Sections nest by heading level (h1 → h2 → h3), so
// documents obey the same forest invariant as code: one root chunk per
// file with sections below it. A document without headings yields the
// root section alone, spanning the whole document.
type MarkdownChunker struct{}

// NewMarkdownChunker creates a Markdown chunker.
func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{}
}

// Language returns "markdown".
func (c *MarkdownChunker) Language() string { return "markdown" }

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*$`)

type headingMark struct {
	level     int
	title     string
	line      int // 1-indexed
	startByte int
}

// Parse splits the document on heading markers. Headings inside fenced
// code blocks do not start sections.
func (c *MarkdownChunker) Parse(path string, source []byte) (*ParseResult, error) {
	text := string(source)
	headings := scanHeadings(text)

	b := newChunkBuilder(path, "markdown", source)

	rootName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, h := range headings {
		if h.level == 1 {
			rootName = h.title
			break
		}
	}

	rootSpan := model.Span{
		StartLine: 1,
		EndLine:   lineCount(source),
		StartByte: 0,
		EndByte:   len(source),
	}
	root := b.add(model.KindSection, rootName, rootSpan, "")

	// Open sections by level; index 0 is the document root.
	type openSection struct {
		level int
		chunk *model.Chunk
	}
	stack := []openSection{{level: 0, chunk: root}}

	for i, h := range headings {
		// A section runs until the next heading of its own level or
		// shallower, or the end of the document.
		endByte := len(source)
		endLine := rootSpan.EndLine
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				endByte = next.startByte
				endLine = next.line - 1
				break
			}
		}

		for len(stack) > 1 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].chunk

		span := model.Span{
			StartLine: h.line,
			EndLine:   endLine,
			StartByte: h.startByte,
			EndByte:   endByte,
		}
		chunk := b.add(model.KindSection, h.title, span, parent.ID)
		stack = append(stack, openSection{level: h.level, chunk: chunk})
	}

	return &ParseResult{Chunks: b.chunks}, nil
}

func scanHeadings(text string) []headingMark {
	var headings []headingMark
	inFence := false
	offset := 0
	line := 0

	for _, raw := range strings.SplitAfter(text, "\n") {
		line++
		trimmed := strings.TrimRight(raw, "\n")

		stripped := strings.TrimSpace(trimmed)
		if strings.HasPrefix(stripped, "```") || strings.HasPrefix(stripped, "~~~") {
			inFence = !inFence
		} else if !inFence {
			if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
				headings = append(headings, headingMark{
					level:     len(m[1]),
					title:     m[2],
					line:      line,
					startByte: offset,
				})
			}
		}

		offset += len(raw)
	}
	return headings
}
