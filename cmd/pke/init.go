// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/pke/internal/bootstrap"
	"github.com/kraklabs/pke/internal/config"
	"github.com/kraklabs/pke/internal/ui"
)

// runInit executes the 'init' CLI command, creating a .pke/project.yaml
// configuration file and the snapshot database.
//
// Flags:
//   - --force: Overwrite existing configuration (default: false)
//   - --project-id: Project identifier (default: directory name)
//   - --source: Corpus root to ingest (default: .)
//   - --embedding-provider: Embedding provider (openai, mock)
//   - --index-backend: Vector index backend (memory, qdrant)
//   - --qdrant-url: Qdrant HTTP endpoint (implies --index-backend qdrant)
//
// Examples:
//
//	pke init                               Use all defaults
//	pke init --embedding-provider openai   Embed with OpenAI
//	pke init --qdrant-url http://localhost:6333
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing configuration")
	projectID := fs.String("project-id", "", "Project identifier")
	source := fs.String("source", "", "Corpus root to ingest")
	embeddingProvider := fs.String("embedding-provider", "", "Embedding provider (openai, mock)")
	indexBackend := fs.String("index-backend", "", "Vector index backend (memory, qdrant)")
	qdrantURL := fs.String("qdrant-url", "", "Qdrant HTTP endpoint (implies --index-backend qdrant)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pke init [options]

Creates .pke/project.yaml configuration and the snapshot database.

Examples:
  pke init                               # Use all defaults
  pke init --embedding-provider openai   # Embed with OpenAI
  pke init --qdrant-url http://localhost:6333

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	root, err := filepath.Abs(globals.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot resolve project root: %v\n", err)
		os.Exit(1)
	}

	configPath := config.Path(root)
	if _, err := os.Stat(configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists. Use --force to overwrite.\n", configPath)
		os.Exit(1)
	}

	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{
		ProjectID:   *projectID,
		ProjectRoot: root,
		Force:       *force,
	}, slog.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Apply flag overrides on top of the generated defaults.
	if *source != "" || *embeddingProvider != "" || *indexBackend != "" || *qdrantURL != "" {
		cfg, err := config.Load(info.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *source != "" {
			cfg.Source.Root = *source
		}
		if *embeddingProvider != "" {
			cfg.Embedding.Provider = *embeddingProvider
		}
		if *indexBackend != "" {
			cfg.Index.Backend = *indexBackend
		}
		if *qdrantURL != "" {
			cfg.Index.Backend = "qdrant"
			cfg.Index.QdrantURL = *qdrantURL
		}
		if err := config.Save(info.ConfigPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	ui.Successf("Project %s initialized", info.ProjectID)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit .pke/project.yaml if needed")
	fmt.Println("  2. Ingest your corpus:  pke index")
	fmt.Println("  3. Query it:            pke query \"your question\"")
}
