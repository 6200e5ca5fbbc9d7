// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/kraklabs/pke/pkg/model"
)

// TestJSONRetrievalResponse verifies agent-facing query output: pretty
// indentation, snake_case fields from the model tags, trailing newline.
func TestJSONRetrievalResponse(t *testing.T) {
	var buf bytes.Buffer

	resp := &model.RetrievalResponse{
		Revision: "rev:9f2c",
		Results: []model.RetrievalResult{{
			Chunk: &model.Chunk{
				ID:         "chunk:abc",
				Kind:       model.KindFunction,
				SourcePath: "pkg/auth/token.go",
				Name:       "Verify",
				Content:    "func Verify() {}",
				Language:   "go",
			},
			Score:       0.82,
			VectorScore: 0.82,
			MatchedBy:   model.MatchedByVector,
		}},
	}

	if err := JSONTo(&buf, resp); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		`"revision": "rev:9f2c"`,
		`"source_path": "pkg/auth/token.go"`,
		`"matched_by": "vector"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in output: %s", want, out)
		}
	}
	if !strings.Contains(out, "  \"results\"") {
		t.Errorf("expected 2-space indentation, got: %s", out)
	}
	if !strings.HasSuffix(out, "}\n") {
		t.Errorf("expected trailing newline, got: %q", out)
	}
}

// TestJSONOmitsEmptyResultFields verifies optional result fields stay
// out of the payload so agents never see empty related/partial noise.
func TestJSONOmitsEmptyResultFields(t *testing.T) {
	var buf bytes.Buffer

	resp := &model.RetrievalResponse{Revision: "rev:9f2c"}
	if err := JSONTo(&buf, resp); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	out := buf.String()
	if strings.Contains(out, "partial_reason") {
		t.Errorf("partial_reason should be omitted when empty, got: %s", out)
	}
	if !strings.Contains(out, `"partial": false`) {
		t.Errorf("partial flag must always be present, got: %s", out)
	}
}

// TestJSONCompactRunReport verifies compact mode for streamed ingestion
// reports: one line, no indentation, values intact.
func TestJSONCompactRunReport(t *testing.T) {
	var buf bytes.Buffer

	report := &model.RunReport{
		FilesSeen:      3,
		FilesProcessed: 2,
		FilesSkipped:   1,
		ChunksProduced: 14,
	}
	if err := JSONCompactTo(&buf, report); err != nil {
		t.Fatalf("JSONCompactTo failed: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Errorf("compact output should be a single line, got: %q", out)
	}
	if !strings.Contains(out, `"chunks_produced":14`) {
		t.Errorf("missing chunks_produced in compact output, got: %s", out)
	}
	if strings.Contains(out, "  ") {
		t.Errorf("compact output should not be indented, got: %s", out)
	}
}

// TestJSONErrorShape verifies --json error output parses back into the
// documented {error} object on stderr.
func TestJSONErrorShape(t *testing.T) {
	var buf bytes.Buffer

	if encErr := JSONErrorTo(&buf, model.ErrNoSnapshot); encErr != nil {
		t.Fatalf("JSONErrorTo failed: %v", encErr)
	}

	var decoded ErrorJSON
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("error output is not valid JSON: %v", err)
	}
	if decoded.Error != model.ErrNoSnapshot.Error() {
		t.Errorf("error field = %q, want %q", decoded.Error, model.ErrNoSnapshot.Error())
	}
	if strings.Contains(buf.String(), `"code"`) {
		t.Errorf("code should be omitted when unset, got: %s", buf.String())
	}
}

// TestJSONEscapesChunkContent verifies source text with quotes and tabs
// survives encoding, since chunk content is raw code.
func TestJSONEscapesChunkContent(t *testing.T) {
	var buf bytes.Buffer

	chunk := &model.Chunk{
		ID:      "chunk:raw",
		Content: "\tfmt.Println(\"hi\")",
	}
	if err := JSONTo(&buf, chunk); err != nil {
		t.Fatalf("JSONTo failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `\"hi\"`) {
		t.Errorf("expected escaped quotes, got: %s", out)
	}
	if !strings.Contains(out, `\t`) {
		t.Errorf("expected escaped tab, got: %s", out)
	}
}
