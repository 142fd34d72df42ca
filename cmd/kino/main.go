package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/kino/internal/config"
	"github.com/hpungsan/kino/internal/db"
	"github.com/hpungsan/kino/internal/logging"
	"github.com/hpungsan/kino/internal/mcp"
	"github.com/hpungsan/kino/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// launchMode is what a kino invocation does before any database is opened.
type launchMode int

const (
	launchMCP     launchMode = iota // piped stdin, no command: serve MCP over stdio
	launchBanner                    // bare "kino" at a terminal
	launchInfo                      // help or version; needs no database
	launchCLI                       // a known subcommand
	launchUnknown                   // an unknown word typed at a terminal
)

var infoFlags = []string{"help", "--help", "-h", "--version", "-v"}

// modeFor picks the launch mode from the arguments after the program name.
// An unknown argument with piped stdin still starts the MCP server, since some
// MCP hosts pass their own flags.
func modeFor(args []string, commands []*cli.Command, tty bool) launchMode {
	if len(args) == 0 {
		if tty {
			return launchBanner
		}
		return launchMCP
	}
	first := args[0]
	if slices.Contains(infoFlags, first) {
		return launchInfo
	}
	for _, c := range commands {
		if c.Name == first || slices.Contains(c.Aliases, first) {
			return launchCLI
		}
	}
	if tty {
		return launchUnknown
	}
	return launchMCP
}

// isTerminal reports whether stdin is a character device rather than a pipe.
func isTerminal() bool {
	stat, err := os.Stdin.Stat()
	return err == nil && stat.Mode()&os.ModeCharDevice != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   _  _____ _  _  ___
  | |/ /_ _| \| |/ _ \
  | ' < | || .' | (_) |
  |_|\_\___|_|\_|\___/

  Screenplay outlining, wiki and timeline

  Usage: kino <command> [options]
         kino --help

  MCP server mode requires piped input.`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	args := os.Args[1:]
	mode := modeFor(args, newCLIApp(nil, nil, nil).Commands, isTerminal())
	switch mode {
	case launchBanner:
		printBanner()
		return
	case launchInfo:
		if err := newCLIApp(nil, nil, nil).Run(os.Args); err != nil {
			fatal("%v", err)
		}
		return
	case launchUnknown:
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", args[0])
		fmt.Fprintf(os.Stderr, "Run 'kino --help' for usage.\n")
		os.Exit(1)
	}

	logger, err := logging.New(isVerbose())
	if err != nil {
		fatal("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	baseDir, err := ops.BaseDir()
	if err != nil {
		fatal("could not determine base directory: %v", err)
	}
	cfg, err := loadConfig(baseDir)
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("unknown types in disabled_types", zap.Strings("types", unknown))
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fatal("failed to initialize database: %v", err)
	}
	db.ConfigurePool(database, cfg)
	logger.Debug("database ready", zap.String("dir", baseDir))

	if mode == launchCLI {
		err = newCLIApp(database, cfg, logger).Run(os.Args)
	} else {
		logger.Debug("starting MCP server", zap.String("version", Version))
		err = mcp.Run(database, cfg, logger, Version)
	}
	database.Close()
	if err != nil {
		if mode == launchMCP {
			logger.Error("mcp server stopped", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig layers ~/.kino/config.json, the nearest repo .kino/config.json,
// then KINO_* values from ./.env and the environment.
func loadConfig(baseDir string) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return nil, err
	}
	return config.LoadEnv(cfg, filepath.Join(cwd, ".env"))
}

func isVerbose() bool {
	switch strings.ToLower(os.Getenv("KINO_VERBOSE")) {
	case "1", "true", "yes":
		return true
	}
	return false
}
