package main

import (
	"fmt"
	"log"
	"os"

	"github.com/hpungsan/rxscripts/internal/config"
	"github.com/hpungsan/rxscripts/internal/db"
	"github.com/hpungsan/rxscripts/internal/mcp"
	"github.com/hpungsan/rxscripts/internal/ops"
	"github.com/hpungsan/rxscripts/internal/script"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"extract": true, "save": true, "show": true, "search": true,
	"inject": true, "list": true, "history": true,
	"serve": true, "tiles": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
           _____           _       _
  _ ____  / ____|___ _ __ (_)_ __ | |_ ___
 | '__\ \/ /___ \/ __| '__|| | '_ \| __/ __|
 | |   >  < ___) | (__| |  | | |_) | |_\__ \
 |_|  /_/\_\____/\___|_|  |_| .__/ \__|___/
                            |_|
  RPG Maker XP Scripts.rxdata toolkit

  Usage: rxscripts <command> [options]
         rxscripts --help

  MCP server mode requires piped input.`)
}

// loadDeps resolves configuration (defaults, ~/.rxscripts, repo .rxscripts,
// .env and RXSCRIPTS_* variables) and opens the run journal.
func loadDeps() (ops.Deps, func(), error) {
	config.LoadEnv()

	baseDir, err := config.BaseDir()
	if err != nil {
		return ops.Deps{}, nil, fmt.Errorf("could not determine home directory: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ops.Deps{}, nil, fmt.Errorf("could not determine working directory: %w", err)
	}

	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return ops.Deps{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return ops.Deps{}, nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ops.Deps{}, nil, fmt.Errorf("invalid config: %w", err)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Printf("warning: unknown tools in disabled_tools: %v", unknown)
	}

	cache, err := script.NewCache(cfg.CacheSize)
	if err != nil {
		return ops.Deps{}, nil, fmt.Errorf("invalid cache_size: %w", err)
	}

	deps := ops.Deps{Config: cfg, Cache: cache, Logger: log.Default()}
	cleanup := func() {}

	// The journal is optional; operations run without it.
	if !cfg.DisableJournal {
		database, err := db.Init(baseDir)
		if err != nil {
			log.Printf("warning: run journal unavailable: %v", err)
		} else {
			deps.DB = database
			cleanup = func() { database.Close() }
		}
	}

	return deps, cleanup, nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("rxscripts: ")

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before config and journal setup
	if isHelpOrVersion() {
		app := newCLIApp(ops.Deps{})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	deps, cleanup, err := loadDeps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(deps)
		err := app.Run(os.Args)
		cleanup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		cleanup()
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'rxscripts --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	err = mcp.Run(deps, Version)
	cleanup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
