// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ui

import (
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func withColor(t *testing.T, enabled bool) {
	t.Helper()
	original := color.NoColor
	color.NoColor = !enabled
	t.Cleanup(func() { color.NoColor = original })
}

func TestInitColorsTogglesGlobalState(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	InitColors(true)
	if !color.NoColor {
		t.Error("InitColors(true) should disable colors")
	}
	InitColors(false)
	if color.NoColor {
		t.Error("InitColors(false) should enable colors")
	}
}

func TestInlineHelpersPlain(t *testing.T) {
	withColor(t, false)

	if got := Label("Revision:"); got != "Revision:" {
		t.Errorf("Label() = %q, want plain text with colors off", got)
	}
	if got := DimText(".pke/snapshot.db"); got != ".pke/snapshot.db" {
		t.Errorf("DimText() = %q, want plain text with colors off", got)
	}
	if got := CountText(1284); got != "1284" {
		t.Errorf("CountText() = %q, want %q", got, "1284")
	}
	if got := CountText(0); got != "0" {
		t.Errorf("CountText(0) = %q, want %q", got, "0")
	}
}

func TestInlineHelpersColored(t *testing.T) {
	withColor(t, true)

	label := Label("Chunks:")
	if !strings.Contains(label, "\x1b[") {
		t.Errorf("Label() should carry ANSI escapes when colors are on, got: %q", label)
	}
	if !strings.Contains(label, "Chunks:") {
		t.Errorf("Label() lost its text, got: %q", label)
	}

	count := CountText(42)
	if !strings.Contains(count, "42") {
		t.Errorf("CountText() lost its value, got: %q", count)
	}
}

// Status lines compose Label and CountText inline; the plain rendering
// is what piped `pke status` output looks like.
func TestStatusLineComposition(t *testing.T) {
	withColor(t, false)

	line := fmt.Sprintf("  %s %s", Label("Edges:"), CountText(973))
	if line != "  Edges: 973" {
		t.Errorf("status line = %q, want %q", line, "  Edges: 973")
	}
}

func TestMessageHelpersDoNotPanic(t *testing.T) {
	withColor(t, false)

	Success("committed snapshot rev:9f2c")
	Successf("indexed %d files in %s", 42, "1.2s")
	Warning("3 chunks have no embedding")
	Warningf("skipped %d oversized files", 2)
	Error("embedding API unreachable")
	Errorf("parse failed for %s", "broken.py")
	Info("rehydrating vector index")
	Infof("using %s backend", "memory")
	Header("PKE Snapshot Status")
	SubHeader("Sources:")
}
