package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/db"
	"github.com/participadf/ouvidoria/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// EnvHome overrides the data directory when --home is not given.
const EnvHome = "OUVIDORIA_HOME"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"new": true, "validate": true, "review": true, "submit": true,
	"draft": true, "track": true, "record": true, "serve-mock": true,
	"help": true,
}

// commandArg returns the first argument that is not a global flag.
func commandArg(args []string) string {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--home":
			i++ // skip value
		case strings.HasPrefix(arg, "--home="), arg == "--verbose":
		default:
			return arg
		}
	}
	return ""
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	arg := commandArg(args)
	if arg == "" {
		return false // No command → MCP server
	}
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	switch commandArg(args) {
	case "--help", "-h", "--version", "-v", "help":
		return true
	}
	return false
}

// homeDir resolves the data directory: --home, then $OUVIDORIA_HOME, then ~/.ouvidoria.
func homeDir(args []string) (string, error) {
	for i := 1; i < len(args); i++ {
		if v, ok := strings.CutPrefix(args[i], "--home="); ok {
			return v, nil
		}
		if args[i] == "--home" && i+1 < len(args) {
			return args[i+1], nil
		}
		if cliCommands[args[i]] {
			break
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHome)); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ouvidoria"), nil
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  ouvidoria: canal de manifestações

  Usage: ouvidoria <command> [options]
         ouvidoria --help

  MCP server mode requires piped input.`)
}

func main() {
	logLevel := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		app := newCLIApp(nil, nil, logLevel)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	baseDir, err := homeDir(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		slog.Warn("unknown tools in disabled_tools", "tools", unknown)
	}

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	if isCLIMode(os.Args) {
		app := newCLIApp(database, cfg, logLevel)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			database.Close()
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if commandArg(os.Args) != "" && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", commandArg(os.Args))
		fmt.Fprintf(os.Stderr, "Run 'ouvidoria --help' for usage.\n")
		database.Close()
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		database.Close()
		os.Exit(1)
	}
}
