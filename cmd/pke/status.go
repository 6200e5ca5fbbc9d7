// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/pke/internal/bootstrap"
	"github.com/kraklabs/pke/internal/config"
	"github.com/kraklabs/pke/internal/output"
	"github.com/kraklabs/pke/internal/ui"
	"github.com/kraklabs/pke/pkg/model"
)

// StatusResult represents the snapshot status for JSON output.
type StatusResult struct {
	ProjectID     string    `json:"project_id"`
	DataPath      string    `json:"data_path"`
	HasSnapshot   bool      `json:"has_snapshot"`
	Revision      string    `json:"revision,omitempty"`
	Source        string    `json:"source,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	Chunks        int       `json:"chunks"`
	Edges         int       `json:"edges"`
	ResolvedEdges int       `json:"resolved_edges"`
	Embeddings    int       `json:"embeddings"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, displaying current
// snapshot statistics.
//
// It opens the local snapshot database and counts chunks, edges and
// embeddings in the committed snapshot. This helps users verify that
// ingestion completed successfully and understand the scope of their
// indexed corpus.
//
// Flags:
//   - --json: Output results as JSON (default: false)
//
// Examples:
//
//	pke status           Display formatted status
//	pke status --json    Output as JSON for programmatic use
func runStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pke status [options]

Shows current snapshot status.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	result := &StatusResult{
		DataPath:  config.DataPath(globals.Root),
		Timestamp: time.Now(),
	}

	ctx := context.Background()
	project, err := bootstrap.OpenProject(ctx, globals.Root, slog.Default())
	if err != nil {
		result.Error = err.Error()
		if *jsonOutput {
			_ = output.JSON(result)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
	defer func() { _ = project.Close() }()

	result.ProjectID = project.Config.ProjectID

	snap := project.Store.Current()
	if snap == nil {
		result.HasSnapshot = false
		if *jsonOutput {
			_ = output.JSON(result)
		} else {
			fmt.Printf("Project '%s' has no snapshot yet.\n", project.Config.ProjectID)
			fmt.Println("Run 'pke index' to ingest the corpus.")
		}
		return
	}

	result.HasSnapshot = true
	result.Revision = snap.Revision
	result.Source = snap.Source
	result.CreatedAt = snap.CreatedAt
	result.Chunks = len(snap.Chunks)
	result.Edges = len(snap.Edges)
	result.ResolvedEdges = countResolved(snap.Edges)
	result.Embeddings = len(snap.Embeddings)

	if *jsonOutput {
		_ = output.JSON(result)
		return
	}
	printStatus(result)
}

// countResolved counts edges with a known target chunk.
func countResolved(edges []model.Edge) int {
	n := 0
	for _, e := range edges {
		if e.Resolved() {
			n++
		}
	}
	return n
}

// printStatus prints the status result as formatted text to stdout.
//
// Displays snapshot information and entity counts in a human-readable
// format. This is the default output when --json is not specified.
func printStatus(result *StatusResult) {
	ui.Header("PKE Snapshot Status")
	fmt.Printf("Project ID:    %s\n", result.ProjectID)
	fmt.Printf("Data Path:     %s\n", result.DataPath)
	fmt.Printf("Revision:      %s\n", result.Revision)
	fmt.Printf("Source:        %s\n", result.Source)
	fmt.Printf("Created:       %s\n", result.CreatedAt.Format(time.RFC3339))
	fmt.Println()

	fmt.Println("Entities:")
	fmt.Printf("  Chunks:        %s\n", ui.CountText(result.Chunks))
	fmt.Printf("  Edges:         %s (%d resolved)\n", ui.CountText(result.Edges), result.ResolvedEdges)
	fmt.Printf("  Embeddings:    %s\n", ui.CountText(result.Embeddings))

	if result.Error != "" {
		fmt.Println()
		ui.Warningf("%s", result.Error)
	}
}
