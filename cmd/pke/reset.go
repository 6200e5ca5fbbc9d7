// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/pke/internal/config"
)

func runReset(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	confirm := fs.Bool("yes", false, "Confirm the reset (required)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pke reset [options]

Deletes the local snapshot database, clearing all ingested data.
The project.yaml configuration is kept.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if !*confirm {
		fmt.Fprintf(os.Stderr, "Error: you must pass --yes to confirm the reset\n")
		fmt.Fprintf(os.Stderr, "This will delete the snapshot database for the project.\n")
		os.Exit(1)
	}

	dataPath := config.DataPath(globals.Root)
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "No snapshot database found at %s\n", dataPath)
		os.Exit(0)
	}

	fmt.Printf("Resetting project (deleting %s)...\n", dataPath)

	if err := os.Remove(dataPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to delete snapshot database: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Done. Run 'pke index' to rebuild the snapshot.")
}
