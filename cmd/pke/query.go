// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/pke/internal/bootstrap"
	"github.com/kraklabs/pke/internal/output"
	"github.com/kraklabs/pke/internal/ui"
	"github.com/kraklabs/pke/pkg/model"
	"github.com/kraklabs/pke/pkg/retrieval"
)

// runQuery executes the 'query' CLI command, retrieving chunks for a
// natural-language query.
//
// It embeds the query text, searches the vector index, expands one hop
// through the knowledge graph and prints the fusion-ranked results as
// either a formatted table (default) or JSON for programmatic use.
//
// Flags:
//   - --k: Number of results (default: 5)
//   - --kinds: Comma-separated chunk kinds to keep (function,class,section,...)
//   - --min-score: Drop results scoring below this (default: 0)
//   - --no-expand: Skip graph expansion (vector-only search)
//   - --json: Output results as JSON (default: false)
//   - --timeout: Query timeout duration (default: 30s)
//
// Examples:
//
//	pke query "parse python imports"
//	pke query "retry backoff" --k 10 --json
//	pke query "install steps" --kinds section
func runQuery(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	k := fs.Int("k", 5, "Number of results")
	kinds := fs.String("kinds", "", "Comma-separated chunk kinds to keep")
	minScore := fs.Float64("min-score", 0, "Drop results scoring below this")
	noExpand := fs.Bool("no-expand", false, "Skip graph expansion (vector-only search)")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pke query [options] <text>

Retrieves the chunks most relevant to a natural-language query.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Blended vector + graph retrieval
  pke query "how are embeddings retried"

  # Vector-only, more results
  pke query "snapshot commit" --k 10 --no-expand

  # Only documentation sections, as JSON
  pke query "install steps" --kinds section --json

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: query text required\n")
		fs.Usage()
		os.Exit(1)
	}
	queryText := strings.Join(fs.Args(), " ")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	project, err := bootstrap.OpenProject(ctx, globals.Root, slog.Default())
	if err != nil {
		fatalQueryError(err, *jsonOutput)
	}
	defer func() { _ = project.Close() }()

	embedder, err := bootstrap.BuildEmbedder(project.Config, slog.Default())
	if err != nil {
		fatalQueryError(err, *jsonOutput)
	}

	idx, err := bootstrap.BuildIndex(ctx, project.Config)
	if err != nil {
		fatalQueryError(err, *jsonOutput)
	}
	if err := project.RehydrateIndex(ctx, idx); err != nil {
		fatalQueryError(err, *jsonOutput)
	}

	engine := retrieval.NewEngine(project.Store, idx, embedder, retrieval.Config{
		Alpha:        project.Config.Retrieval.Alpha,
		Beta:         project.Config.Retrieval.Beta,
		ExpandFactor: project.Config.Retrieval.ExpandFactor,
		MaxRelated:   project.Config.Retrieval.MaxRelated,
	}, slog.Default())

	opts := &model.QueryOptions{
		KindFilter:  parseKinds(*kinds),
		MinScore:    *minScore,
		ExpandGraph: !*noExpand,
	}

	resp, err := engine.Query(ctx, queryText, *k, opts)
	if err != nil {
		if err == model.ErrNoSnapshot {
			err = fmt.Errorf("no snapshot yet. Run 'pke index' first")
		}
		fatalQueryError(err, *jsonOutput)
	}

	if *jsonOutput {
		_ = output.JSON(resp)
		return
	}
	printQueryResponse(resp)
}

// parseKinds converts a comma-separated kind list to ChunkKinds.
func parseKinds(s string) []model.ChunkKind {
	if s == "" {
		return nil
	}
	var kinds []model.ChunkKind
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			kinds = append(kinds, model.ChunkKind(part))
		}
	}
	return kinds
}

// fatalQueryError reports a query failure and exits non-zero.
func fatalQueryError(err error, jsonOutput bool) {
	if jsonOutput {
		_ = output.JSONError(err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

// printQueryResponse prints results as a formatted table to stdout.
//
// Uses tab-aligned columns for readability. This is the default output
// format when --json is not specified.
func printQueryResponse(resp *model.RetrievalResponse) {
	if resp.Partial {
		ui.Warningf("partial results: %s", resp.PartialReason)
	}
	if len(resp.Results) == 0 {
		fmt.Println("No results")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tMATCHED\tKIND\tNAME\tLOCATION")
	_, _ = fmt.Fprintln(w, "---\t---\t---\t---\t---")
	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s:%d\n",
			r.Score, r.MatchedBy, r.Chunk.Kind, r.Chunk.Name,
			r.Chunk.SourcePath, r.Chunk.Span.StartLine)
	}
	_ = w.Flush()

	for _, r := range resp.Results {
		if len(r.Related) == 0 {
			continue
		}
		names := make([]string, 0, len(r.Related))
		for _, rel := range r.Related {
			names = append(names, rel.Name)
		}
		fmt.Printf("\n%s related: %s\n", ui.Label(r.Chunk.Name), strings.Join(names, ", "))
	}

	fmt.Printf("\n%d results from %s\n", len(resp.Results), resp.Revision)
}
