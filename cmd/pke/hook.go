// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"
)

const postCommitHookContent = `#!/bin/sh
# PKE auto-index hook - re-ingests the corpus after each commit
# Installed by: pke install-hook
# Remove with: pke install-hook --remove

pke index -q 2>/dev/null &
`

// hookMarker identifies a hook written by us.
const hookMarker = "PKE auto-index hook"

// runInstallHook executes the 'install-hook' CLI command, managing git
// post-commit hooks.
//
// It installs or removes a git post-commit hook that re-ingests the
// corpus after each commit. The hook runs in the background; since the
// snapshot revision is content-derived, an unchanged corpus commits the
// same revision and reuses all embeddings.
//
// Flags:
//   - --force: Overwrite existing hook (default: false)
//   - --remove: Remove the hook instead of installing (default: false)
//
// Examples:
//
//	pke install-hook           Install the post-commit hook
//	pke install-hook --force   Overwrite existing hook
//	pke install-hook --remove  Remove the hook
func runInstallHook(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("install-hook", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite existing hook")
	remove := fs.Bool("remove", false, "Remove the hook instead of installing")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pke install-hook [options]

Installs a git post-commit hook that re-ingests the corpus after each
commit. Re-ingesting an unchanged corpus is cheap: the snapshot
revision is content-derived and all embeddings are reused.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	gitDir, err := findGitDir(globals.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	hookPath := filepath.Join(gitDir, "hooks", "post-commit")

	if *remove {
		if err := removeHook(hookPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Git hook removed successfully.")
		return
	}

	if err := installHook(hookPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Git hook installed: %s\n", hookPath)
}

// findGitDir finds the .git directory by walking up from start.
//
// It searches parent directories until it finds a .git directory or
// reaches the filesystem root. Worktrees, where .git is a file holding
// a "gitdir:" pointer, are followed.
func findGitDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() {
				return gitPath, nil
			}
			content, err := os.ReadFile(gitPath)
			if err != nil {
				return "", fmt.Errorf("cannot read .git file: %w", err)
			}
			var gitdir string
			if _, err := fmt.Sscanf(string(content), "gitdir: %s", &gitdir); err == nil {
				if filepath.IsAbs(gitdir) {
					return gitdir, nil
				}
				return filepath.Join(dir, gitdir), nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("not a git repository (or any of the parent directories)")
}

// installHook writes the post-commit hook to the specified path.
//
// If the hook file already exists and force is false, only a hook we
// wrote ourselves is silently kept; any other hook is an error.
func installHook(hookPath string, force bool) error {
	hookDir := filepath.Dir(hookPath)
	if err := os.MkdirAll(hookDir, 0o755); err != nil {
		return fmt.Errorf("cannot create hooks directory: %w", err)
	}

	if _, err := os.Stat(hookPath); err == nil {
		if !force {
			content, err := os.ReadFile(hookPath)
			if err == nil && strings.Contains(string(content), hookMarker) {
				fmt.Println("PKE hook already installed. Use --force to reinstall.")
				return nil
			}
			return fmt.Errorf("hook already exists at %s\nUse --force to overwrite", hookPath)
		}
	}

	if err := os.WriteFile(hookPath, []byte(postCommitHookContent), 0o755); err != nil {
		return fmt.Errorf("cannot write hook: %w", err)
	}

	return nil
}

// removeHook removes the post-commit hook if it is one we installed.
// Hooks without our marker are left untouched.
func removeHook(hookPath string) error {
	content, err := os.ReadFile(hookPath)
	if os.IsNotExist(err) {
		fmt.Println("No hook installed.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read hook: %w", err)
	}

	if !strings.Contains(string(content), hookMarker) {
		return fmt.Errorf("existing hook at %s was not installed by pke, not removing", hookPath)
	}

	if err := os.Remove(hookPath); err != nil {
		return fmt.Errorf("cannot remove hook: %w", err)
	}
	return nil
}
