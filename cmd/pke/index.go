// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/pke/internal/bootstrap"
	"github.com/kraklabs/pke/internal/config"
	"github.com/kraklabs/pke/internal/output"
	"github.com/kraklabs/pke/internal/ui"
	"github.com/kraklabs/pke/pkg/ingestion"
	"github.com/kraklabs/pke/pkg/model"
)

// runIndex executes the 'index' CLI command, ingesting the configured
// corpus into a new snapshot.
//
// It walks the corpus, chunks each file with Tree-sitter, generates
// embeddings, builds the knowledge graph, syncs the vector index and
// commits the snapshot atomically. Readers keep seeing the previous
// snapshot until the commit lands.
//
// Flags:
//   - --source: Override the corpus root from project.yaml
//   - --git: Ingest a remote git repository instead of a directory
//   - --parse-workers: Number of parallel parse workers (default: NumCPU)
//   - --embed-workers: Number of parallel embedding workers
//   - --json: Output the run report as JSON
//   - --debug: Enable debug logging (default: false)
//   - --metrics-addr: HTTP address for Prometheus metrics (default: disabled)
//
// Examples:
//
//	pke index                         Ingest the configured corpus
//	pke index --source ./docs         Ingest a different directory
//	pke index --git https://github.com/org/repo
//	pke index --embed-workers 16      Use 16 parallel embedding workers
func runIndex(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	source := fs.String("source", "", "Corpus root (overrides project.yaml)")
	gitURL := fs.String("git", "", "Git repository URL to ingest")
	parseWorkers := fs.Int("parse-workers", 0, "Number of parallel parse workers (0 = NumCPU)")
	embedWorkers := fs.Int("embed-workers", 0, "Number of parallel embedding workers")
	jsonOutput := fs.Bool("json", false, "Output run report as JSON")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pke index [options]

Ingests the corpus using configuration from .pke/project.yaml.
Data is stored locally in <root>/.pke/snapshot.db

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Start Prometheus metrics endpoint (optional)
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	project, err := bootstrap.OpenProject(ctx, globals.Root, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = project.Close() }()

	cfg := project.Config

	embedder, err := bootstrap.BuildEmbedder(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	idx, err := bootstrap.BuildIndex(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The memory backend starts empty, so stale-vector deletion after
	// this run needs the previous snapshot's vectors loaded first.
	if err := project.RehydrateIndex(ctx, idx); err != nil {
		logger.Warn("index.rehydrate.error", "err", err)
	}

	corpusSource, cleanup := buildSource(cfg, project.Root, *source, *gitURL, logger)
	defer cleanup()

	pipeline := ingestion.NewPipeline(
		ingestion.DefaultRegistry(logger),
		embedder,
		idx,
		project.Store,
		ingestion.PipelineConfig{
			ParseWorkers:   *parseWorkers,
			EmbedBatchSize: cfg.Embedding.BatchSize,
			EmbedWorkers:   pickEmbedWorkers(*embedWorkers, cfg.Embedding.Workers),
		},
		logger,
	)

	progress := NewProgressConfig(globals, *jsonOutput)
	bar := NewProgressBar(progress, -1, "indexing")

	report, err := pipeline.Run(ctx, corpusSource)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: ingestion failed: %v\n", err)
		os.Exit(1)
	}

	snap := project.Store.Current()
	if *jsonOutput {
		_ = output.JSON(map[string]any{
			"revision": snap.Revision,
			"source":   snap.Source,
			"report":   report,
		})
		return
	}
	printRunReport(snap, report)
}

// buildSource picks the corpus source for this run. A --git URL wins
// over --source, which wins over project.yaml. The returned cleanup
// removes any temporary clone.
func buildSource(cfg *config.Config, projectRoot, sourceOverride, gitURL string, logger *slog.Logger) (ingestion.CorpusSource, func()) {
	if gitURL != "" {
		git := ingestion.NewGitSource(gitURL, logger)
		return git, func() { _ = git.Close() }
	}

	root := cfg.Source.Root
	if sourceOverride != "" {
		root = sourceOverride
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(projectRoot, root)
	}
	dir := ingestion.NewDirSource(root, cfg.Source.ExcludeGlobs, cfg.Source.MaxFileSizeBytes, logger)
	return dir, func() {}
}

// pickEmbedWorkers resolves the worker count from the flag and config,
// in that order.
func pickEmbedWorkers(flagVal, cfgVal int) int {
	if flagVal > 0 {
		return flagVal
	}
	return cfgVal
}

// timeRound is the display precision for durations.
const timeRound = time.Millisecond

// printRunReport prints a human-readable ingestion summary.
func printRunReport(snap *model.Snapshot, report *model.RunReport) {
	ui.Successf("Snapshot %s committed", snap.Revision)
	fmt.Println()
	fmt.Printf("Files:       %d seen, %d processed, %d skipped\n",
		report.FilesSeen, report.FilesProcessed, report.FilesSkipped)
	fmt.Printf("Chunks:      %d\n", report.ChunksProduced)
	fmt.Printf("Edges:       %d (%d resolved)\n", report.EdgesProduced, report.EdgesResolved)
	fmt.Printf("Embeddings:  %d computed, %d reused, %d missing\n",
		report.EmbeddingsComputed, report.EmbeddingsReused, report.EmbeddingsMissing)
	fmt.Printf("Duration:    %s (parse %s, embed %s)\n",
		report.TotalDuration.Round(timeRound),
		report.ParseDuration.Round(timeRound),
		report.EmbedDuration.Round(timeRound))

	if len(report.SkipReasons) > 0 {
		fmt.Println("\nSkipped files:")
		reasons := make([]string, 0, len(report.SkipReasons))
		for reason := range report.SkipReasons {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)
		for _, reason := range reasons {
			fmt.Printf("  %-22s %d\n", reason, report.SkipReasons[reason])
		}
	}
	if report.EmbeddingsMissing > 0 {
		ui.Warningf("%d chunks have no embedding; re-run 'pke index' to retry", report.EmbeddingsMissing)
	}
}
