// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package bootstrap handles PKE project initialization and wiring.
//
// This internal package provides the initialization logic for PKE
// projects. It creates the .pke directory with a project.yaml and a
// SQLite snapshot database, and it builds the embedding client and
// vector index the CLI commands need from the loaded configuration.
//
// # Initialization Workflow
//
// A typical workflow for setting up a new PKE project:
//
//	// Initialize the project (creates .pke/ and the snapshot database)
//	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{
//	    ProjectID:   "myproject",
//	    ProjectRoot: "/path/to/repo",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Project initialized at: %s\n", info.DataDir)
//
//	// Later, open the project for queries
//	project, err := bootstrap.OpenProject(ctx, "/path/to/repo", logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer project.Close()
//
// # Idempotency
//
// InitProject is idempotent: calling it multiple times on the same
// project is safe and will not corrupt existing data. This makes it
// suitable for scripts and automated workflows.
package bootstrap
