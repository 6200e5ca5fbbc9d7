// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kraklabs/pke/pkg/model"
)

func TestUserErrorMessageWrapsCause(t *testing.T) {
	locked := stderrors.New("database is locked")
	err := NewDatabaseError(
		"Cannot open the snapshot database",
		"Another pke process holds the write lock on snapshot.db",
		"Close other pke processes and retry",
		locked,
	)

	got := err.Error()
	if !strings.Contains(got, "Cannot open the snapshot database") {
		t.Errorf("Error() missing message, got: %s", got)
	}
	if !strings.Contains(got, "database is locked") {
		t.Errorf("Error() missing wrapped cause, got: %s", got)
	}
}

func TestUserErrorMessageWithoutCause(t *testing.T) {
	err := NewInputError(
		"Invalid chunk kind",
		"Kind must be one of module, class, function, method, section",
		"Use --kinds function,method",
	)
	if got := err.Error(); got != "Invalid chunk kind" {
		t.Errorf("Error() = %q, want bare message when nothing is wrapped", got)
	}
}

func TestUserErrorUnwrapsToDomainError(t *testing.T) {
	// The chain `pke query` produces when no ingestion run committed yet.
	err := NewDatabaseError(
		"Nothing to query",
		"No ingestion run has committed a snapshot",
		"Run 'pke index' first",
		fmt.Errorf("load current revision: %w", model.ErrNoSnapshot),
	)

	if !stderrors.Is(err, model.ErrNoSnapshot) {
		t.Errorf("expected errors.Is to reach model.ErrNoSnapshot through %v", err)
	}

	var ue *UserError
	if !stderrors.As(error(err), &ue) {
		t.Fatalf("expected errors.As to recover *UserError from %v", err)
	}
	if ue.ExitCode != ExitDatabase {
		t.Errorf("ExitCode = %d, want %d", ue.ExitCode, ExitDatabase)
	}
}

func TestExitCodesByCategory(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want int
	}{
		{"config", NewConfigError("Cannot load project configuration", ".pke/project.yaml is missing", "Run 'pke init'", nil), ExitConfig},
		{"database", NewDatabaseError("Cannot open the snapshot database", "", "", nil), ExitDatabase},
		{"network", NewNetworkError("Cannot reach the embedding API", "connection refused", "Check the base_url in .pke/project.yaml", nil), ExitNetwork},
		{"input", NewInputError("Missing query text", "pke query requires at least one argument", "Run 'pke query <text>'"), ExitInput},
		{"permission", NewPermissionError("Cannot write to .pke/", "permission denied", "Fix directory ownership", nil), ExitPermission},
		{"notfound", NewNotFoundError("Project not found", "No .pke directory here", "Run 'pke init' first"), ExitNotFound},
		{"internal", NewInternalError("Chunk forest is inconsistent", "parent id points at a missing chunk", "Please report this at github.com/kraklabs/pke/issues", nil), ExitInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.ExitCode != tt.want {
				t.Errorf("ExitCode = %d, want %d", tt.err.ExitCode, tt.want)
			}
		})
	}
}

func TestFormatPlainSections(t *testing.T) {
	err := NewNetworkError(
		"Cannot reach the embedding API",
		"POST /v1/embeddings timed out after 30s",
		"Check your network connection or raise --timeout",
		nil,
	)

	out := err.Format(true)
	wantLines := []string{
		"Error: Cannot reach the embedding API",
		"Cause: POST /v1/embeddings timed out after 30s",
		"Fix:   Check your network connection or raise --timeout",
	}
	for _, line := range wantLines {
		if !strings.Contains(out, line) {
			t.Errorf("Format(true) missing %q in:\n%s", line, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("Format(true) must not emit ANSI escapes, got: %q", out)
	}
}

func TestFormatOmitsEmptySections(t *testing.T) {
	err := NewDatabaseError("Cannot open the snapshot database", "", "", nil)

	out := err.Format(true)
	if strings.Contains(out, "Cause:") {
		t.Errorf("empty cause should be omitted, got:\n%s", out)
	}
	if strings.Contains(out, "Fix:") {
		t.Errorf("empty fix should be omitted, got:\n%s", out)
	}
}

func TestFormatHonorsNoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	err := NewConfigError("Cannot load project configuration", "bad yaml", "Fix .pke/project.yaml", nil)
	if out := err.Format(false); strings.Contains(out, "\x1b[") {
		t.Errorf("NO_COLOR should suppress ANSI escapes, got: %q", out)
	}
}

func TestToJSONCarriesStructure(t *testing.T) {
	err := NewNetworkError(
		"Cannot reach Qdrant",
		"connection refused at localhost:6333",
		"Start Qdrant or switch index.backend to memory",
		nil,
	)

	j := err.ToJSON()
	if j.Error != "Cannot reach Qdrant" {
		t.Errorf("Error = %q", j.Error)
	}
	if j.Cause != "connection refused at localhost:6333" {
		t.Errorf("Cause = %q", j.Cause)
	}
	if j.Fix != "Start Qdrant or switch index.backend to memory" {
		t.Errorf("Fix = %q", j.Fix)
	}
	if j.ExitCode != ExitNetwork {
		t.Errorf("ExitCode = %d, want %d", j.ExitCode, ExitNetwork)
	}
}

func TestInputAndNotFoundLeaveNothingWrapped(t *testing.T) {
	input := NewInputError("Invalid --k", "k must be positive", "Pass --k 5")
	if input.Unwrap() != nil {
		t.Errorf("input errors should not wrap, got %v", input.Unwrap())
	}

	nf := NewNotFoundError("Project not found", "No .pke directory here", "Run 'pke init' first")
	if nf.Unwrap() != nil {
		t.Errorf("not found errors should not wrap, got %v", nf.Unwrap())
	}
}
