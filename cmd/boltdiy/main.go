package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Ojasdixit/boltdiy/internal/config"
	"github.com/Ojasdixit/boltdiy/internal/db"
	"github.com/Ojasdixit/boltdiy/internal/identity"
	"github.com/Ojasdixit/boltdiy/internal/mcp"
	"github.com/Ojasdixit/boltdiy/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"save": true, "load": true, "code-list": true, "autosave": true,
	"code-export": true, "code-import": true,
	"session-create": true, "session-list": true,
	"sandbox-create": true, "sandbox-ensure": true, "sandbox-active": true,
	"sandbox-list": true, "sandbox-deactivate": true, "sandbox-sweep": true,
	"serve": true, "help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return cliCommands[arg] || isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	switch args[1] {
	case "--help", "-h", "--version", "-v", "help":
		return true
	}
	return false
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a short usage note when run interactively without args.
func printBanner() {
	fmt.Println(`
  boltdiy: code autosave and preview sandboxes

  Usage: boltdiy <command> [options]
         boltdiy --help

  Set BOLTDIY_USER to your user id.
  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// --help/--version need no database
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	}

	if len(os.Args) >= 2 && !isCLIMode(os.Args) && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'boltdiy --help' for usage.\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fatal("could not determine home directory: %v", err)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("ignoring unknown disabled_tools", "tools", unknown)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	facade := ops.New(database, cfg, ops.WithLogger(logger))
	provider := identity.Env{}

	if isCLIMode(os.Args) {
		app := newCLIApp(&deps{facade: facade, identity: provider, logger: logger})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintln(os.Stderr, err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// MCP server mode (default)
	if err := mcp.Run(facade, provider, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}
