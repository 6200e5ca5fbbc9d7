// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/pke/internal/errors"
)

// bashCompletionTemplate is the bash completion script for PKE.
//
// It provides command and flag completion for bash shells using the
// bash completion framework.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for PKE (Personal Knowledge Engine)
# Installation:
#   source <(pke completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(pke completion bash)' >> ~/.bashrc

_pke_completion() {
    local cur prev commands
    commands="init index status query reset install-hook completion"

    # Current word being completed
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    # Global flags
    if [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--version --root --quiet --no-color" -- ${cur}) )
        return 0
    fi

    # First argument: complete commands
    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    # Command-specific flag completion
    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        init)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force --project-id --source --embedding-provider --index-backend --qdrant-url" -- ${cur}) )
            fi
            ;;
        index)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--source --git --parse-workers --embed-workers --json --debug --metrics-addr" -- ${cur}) )
            fi
            ;;
        status)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        query)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--k --kinds --min-score --no-expand --json --timeout" -- ${cur}) )
            fi
            ;;
        reset)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--yes" -- ${cur}) )
            fi
            ;;
        install-hook)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--force --remove" -- ${cur}) )
            fi
            ;;
        completion)
            # Complete shell names for completion command
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _pke_completion pke
`

// zshCompletionTemplate is the zsh completion script for PKE.
//
// It provides command and flag completion for zsh shells using the
// zsh completion system.
const zshCompletionTemplate = `#compdef pke

# Zsh completion script for PKE (Personal Knowledge Engine)
# Installation:
#   1. Ensure compinit is loaded (add to ~/.zshrc if not present):
#      autoload -U compinit; compinit
#   2. Save this script to a directory in your fpath:
#      pke completion zsh > "${fpath[1]}/_pke"
#   3. Reload completions:
#      rm -f ~/.zcompdump; compinit

_pke() {
    local -a commands
    commands=(
        'init:Create .pke/project.yaml configuration'
        'index:Ingest the configured corpus'
        'status:Show current snapshot status'
        'query:Retrieve chunks for a natural-language query'
        'reset:Delete the local snapshot database'
        'install-hook:Install git post-commit hook'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--root[Project root directory]:directory:_files -/' \
        '--quiet[Suppress progress output]' \
        '--no-color[Disable colored output]' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                init)
                    _arguments \
                        '--force[Overwrite existing configuration]' \
                        '--project-id[Project identifier]:id:' \
                        '--source[Corpus root to ingest]:directory:_files -/' \
                        '--embedding-provider[Embedding provider]:provider:(openai mock)' \
                        '--index-backend[Vector index backend]:backend:(memory qdrant)' \
                        '--qdrant-url[Qdrant HTTP endpoint]:url:'
                    ;;
                index)
                    _arguments \
                        '--source[Corpus root (overrides project.yaml)]:directory:_files -/' \
                        '--git[Git repository URL to ingest]:url:' \
                        '--parse-workers[Number of parse workers]:workers:' \
                        '--embed-workers[Number of embedding workers]:workers:' \
                        '--json[Output run report as JSON]' \
                        '--debug[Enable debug logging]' \
                        '--metrics-addr[Prometheus metrics address]:address:'
                    ;;
                status)
                    _arguments \
                        '--json[Output as JSON]'
                    ;;
                query)
                    _arguments \
                        '--k[Number of results]:count:' \
                        '--kinds[Chunk kinds to keep]:kinds:' \
                        '--min-score[Minimum blended score]:score:' \
                        '--no-expand[Skip graph expansion]' \
                        '--json[Output as JSON]' \
                        '--timeout[Query timeout]:duration:' \
                        '1:query text:'
                    ;;
                reset)
                    _arguments \
                        '--yes[Skip confirmation prompt]'
                    ;;
                install-hook)
                    _arguments \
                        '--force[Overwrite existing hook]' \
                        '--remove[Remove the hook]'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_pke
`

// fishCompletionTemplate is the fish completion script for PKE.
//
// It provides command and flag completion for fish shells using the
// fish completion system.
const fishCompletionTemplate = `# Fish completion script for PKE (Personal Knowledge Engine)
# Installation:
#   1. Load completions for current session:
#      pke completion fish | source
#   2. Install permanently:
#      pke completion fish > ~/.config/fish/completions/pke.fish

# Commands
complete -c pke -f -n "__fish_use_subcommand" -a "init" -d "Create .pke/project.yaml configuration"
complete -c pke -f -n "__fish_use_subcommand" -a "index" -d "Ingest the configured corpus"
complete -c pke -f -n "__fish_use_subcommand" -a "status" -d "Show current snapshot status"
complete -c pke -f -n "__fish_use_subcommand" -a "query" -d "Retrieve chunks for a natural-language query"
complete -c pke -f -n "__fish_use_subcommand" -a "reset" -d "Delete the local snapshot database (destructive!)"
complete -c pke -f -n "__fish_use_subcommand" -a "install-hook" -d "Install git post-commit hook"
complete -c pke -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

# Global flags
complete -c pke -l version -d "Show version and exit"
complete -c pke -l root -d "Project root directory" -r
complete -c pke -l quiet -s q -d "Suppress progress output"
complete -c pke -l no-color -d "Disable colored output"

# init command flags
complete -c pke -n "__fish_seen_subcommand_from init" -l force -d "Overwrite existing configuration"
complete -c pke -n "__fish_seen_subcommand_from init" -l project-id -d "Project identifier" -r
complete -c pke -n "__fish_seen_subcommand_from init" -l source -d "Corpus root to ingest" -r
complete -c pke -n "__fish_seen_subcommand_from init" -l embedding-provider -d "Embedding provider (openai, mock)" -r
complete -c pke -n "__fish_seen_subcommand_from init" -l index-backend -d "Vector index backend (memory, qdrant)" -r
complete -c pke -n "__fish_seen_subcommand_from init" -l qdrant-url -d "Qdrant HTTP endpoint" -r

# index command flags
complete -c pke -n "__fish_seen_subcommand_from index" -l source -d "Corpus root (overrides project.yaml)" -r
complete -c pke -n "__fish_seen_subcommand_from index" -l git -d "Git repository URL to ingest" -r
complete -c pke -n "__fish_seen_subcommand_from index" -l parse-workers -d "Number of parse workers" -r
complete -c pke -n "__fish_seen_subcommand_from index" -l embed-workers -d "Number of embedding workers" -r
complete -c pke -n "__fish_seen_subcommand_from index" -l json -d "Output run report as JSON"
complete -c pke -n "__fish_seen_subcommand_from index" -l debug -d "Enable debug logging"
complete -c pke -n "__fish_seen_subcommand_from index" -l metrics-addr -d "Prometheus metrics address" -r

# status command flags
complete -c pke -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"

# query command flags
complete -c pke -n "__fish_seen_subcommand_from query" -l k -d "Number of results" -r
complete -c pke -n "__fish_seen_subcommand_from query" -l kinds -d "Chunk kinds to keep" -r
complete -c pke -n "__fish_seen_subcommand_from query" -l min-score -d "Minimum blended score" -r
complete -c pke -n "__fish_seen_subcommand_from query" -l no-expand -d "Skip graph expansion"
complete -c pke -n "__fish_seen_subcommand_from query" -l json -d "Output as JSON"
complete -c pke -n "__fish_seen_subcommand_from query" -l timeout -d "Query timeout" -r

# reset command flags
complete -c pke -n "__fish_seen_subcommand_from reset" -l yes -d "Skip confirmation prompt"

# install-hook command flags
complete -c pke -n "__fish_seen_subcommand_from install-hook" -l force -d "Overwrite existing hook"
complete -c pke -n "__fish_seen_subcommand_from install-hook" -l remove -d "Remove the hook"

# completion command arguments
complete -c pke -n "__fish_seen_subcommand_from completion" -f -a "bash" -d "Generate bash completion script"
complete -c pke -n "__fish_seen_subcommand_from completion" -f -a "zsh" -d "Generate zsh completion script"
complete -c pke -n "__fish_seen_subcommand_from completion" -f -a "fish" -d "Generate fish completion script"
`

// runCompletion executes the 'completion' CLI command, generating
// shell-specific completion scripts for bash, zsh, or fish shells.
//
// The completion command outputs a shell-specific script to stdout that
// can be sourced to enable tab completion for PKE commands and flags.
//
// Usage:
//
//	pke completion [bash|zsh|fish]
//
// Examples:
//
//	pke completion bash                     Output bash completion script
//	source <(pke completion bash)           Load bash completions in current shell
//	pke completion zsh > "${fpath[1]}/_pke" Install zsh completions permanently
//	pke completion fish | source            Load fish completions in current shell
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: pke completion <shell>

Description:
  Generate shell completion scripts for bash, zsh, or fish.

  Shell completions allow you to use Tab to autocomplete commands,
  flags, and arguments.

Arguments:
  shell    Shell type: bash, zsh, or fish (required)

Examples:
  # Load bash completions in current shell
  source <(pke completion bash)

  # Install bash completions permanently (Linux)
  pke completion bash > /etc/bash_completion.d/pke

  # Install zsh completions (macOS with Homebrew)
  pke completion zsh > $(brew --prefix)/share/zsh/site-functions/_pke

  # Install fish completions
  pke completion fish > ~/.config/fish/completions/pke.fish

Notes:
  After installing completions, restart your shell or source your rc file.

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		errors.FatalError(errors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'pke completion bash', 'pke completion zsh', or 'pke completion fish'",
		), false)
	}

	switch fs.Arg(0) {
	case "bash":
		fmt.Print(bashCompletionTemplate)
	case "zsh":
		fmt.Print(zshCompletionTemplate)
	case "fish":
		fmt.Print(fishCompletionTemplate)
	default:
		errors.FatalError(errors.NewInputError(
			fmt.Sprintf("Unsupported shell: %s", fs.Arg(0)),
			"Completion scripts are available for bash, zsh and fish",
			"Run 'pke completion bash', 'pke completion zsh', or 'pke completion fish'",
		), false)
	}
}
