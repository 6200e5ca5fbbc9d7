// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package main implements the PKE CLI for ingesting corpora and querying
// the Personal Knowledge Engine.
//
// Usage:
//
//	pke init                      Create .pke/project.yaml configuration
//	pke index                     Ingest the configured corpus
//	pke status [--json]           Show current snapshot status
//	pke query <text> [--json]     Retrieve chunks for a natural-language query
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/pke/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags holds flags shared by every command.
type GlobalFlags struct {
	// Root is the project root holding the .pke directory.
	Root string

	// Quiet suppresses progress output.
	Quiet bool

	// NoColor disables colored output.
	NoColor bool
}

// main is the entry point for the PKE CLI.
//
// It parses global flags and dispatches to command handlers.
//
// Global flags:
//   - --version: Display version information and exit
//   - --root: Project root directory (default: current directory)
//   - --no-color: Disable colored output
//   - -q, --quiet: Suppress progress output
//
// Commands:
//   - init: Create .pke/project.yaml configuration
//   - index: Ingest the configured corpus into a new snapshot
//   - status: Show current snapshot status
//   - query: Retrieve chunks for a natural-language query
//   - reset: Delete the local snapshot database (destructive!)
//   - install-hook: Install git post-commit hook for auto-ingestion
func main() {
	var (
		showVersion bool
		globals     GlobalFlags
	)
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.StringVar(&globals.Root, "root", ".", "Project root directory")
	flag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Suppress progress output")
	flag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `PKE - Personal Knowledge Engine

PKE ingests a corpus of source and documentation files into an
atomically versioned snapshot, builds a knowledge graph over it, and
answers natural-language queries with fusion-ranked chunks that blend
vector similarity with graph proximity.

Usage:
  pke <command> [options]

Commands:
  init          Create .pke/project.yaml configuration
  index         Ingest the configured corpus into a new snapshot
  status        Show current snapshot status
  query         Retrieve chunks for a natural-language query
  reset         Delete the local snapshot database (destructive!)
  install-hook  Install git post-commit hook for auto-ingestion
  completion    Generate shell completion script (bash|zsh|fish)

Global Options:
  --root        Project root directory (default: .)
  --no-color    Disable colored output
  -q, --quiet   Suppress progress output
  --version     Show version and exit

Examples:
  pke init                           Create default configuration
  pke index                          Ingest the configured corpus
  pke index --source ./docs          Ingest a different corpus root
  pke status                         Show snapshot status
  pke status --json                  Output as JSON
  pke query "parse python imports"   Retrieve relevant chunks
  pke query "retry backoff" --k 10 --json

Getting Started:
  1. Initialize configuration:  pke init
  2. Ingest your corpus:        pke index
  3. Check snapshot status:     pke status
  4. Query the knowledge base:  pke query "how is X done"

Data Storage:
  Data is stored locally in <root>/.pke/snapshot.db

Environment Variables:
  OPENAI_API_KEY   API key for the openai embedding provider
                   (name configurable via embedding.api_key_env)

For detailed command help: pke <command> --help

`)
	}

	flag.Parse()

	ui.InitColors(globals.NoColor)

	if showVersion {
		fmt.Printf("pke version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "index":
		runIndex(cmdArgs, globals)
	case "status":
		runStatus(cmdArgs, globals)
	case "query":
		runQuery(cmdArgs, globals)
	case "reset":
		runReset(cmdArgs, globals)
	case "install-hook":
		runInstallHook(cmdArgs, globals)
	case "completion":
		runCompletion(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
