// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"testing"

	"github.com/kraklabs/pke/pkg/model"
)

func TestParseKinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []model.ChunkKind
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "function", want: []model.ChunkKind{model.KindFunction}},
		{
			name:  "multiple with spaces",
			input: "function, class ,section",
			want:  []model.ChunkKind{model.KindFunction, model.KindClass, model.KindSection},
		},
		{name: "trailing comma", input: "function,", want: []model.ChunkKind{model.KindFunction}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseKinds(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseKinds(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseKinds(%q)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPickEmbedWorkers(t *testing.T) {
	if got := pickEmbedWorkers(8, 4); got != 8 {
		t.Errorf("flag should win: got %d", got)
	}
	if got := pickEmbedWorkers(0, 4); got != 4 {
		t.Errorf("config should apply when flag unset: got %d", got)
	}
}
