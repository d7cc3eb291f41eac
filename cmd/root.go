// Package cmd implements the plotdesk CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmfenton/plotdesk/internal/app"
	"github.com/dmfenton/plotdesk/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	User    string
	DBPath  string
	Listen  string
	Format  string
	Out     string
	Timeout string
	Rate    float64
	Quiet   bool
	Verbose bool
	Debug   bool
}

// rootCmd is the base command. Running `plotdesk` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "plotdesk",
	Short: "plotdesk - selection state and plot history for earth-science data visualization",
	Long: `plotdesk is the backend core of a browser-based data-visualization tool.
It tracks which scientific variables, spatial area, and date range are
selected, derives validity boundaries and plot-readiness from them, and
persists a per-user history of generated plots.

Quick start:
  plotdesk config init              # create a config.json
  plotdesk serve                    # expose the core to the browser UI
  plotdesk history list --user u1   # inspect the local history store`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config and constructs the dependency container.
// Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := config.Load(config.Flags{
		User:   globalFlags.User,
		DBPath: globalFlags.DBPath,
		Listen: globalFlags.Listen,
	})
	if err != nil {
		return nil, err
	}

	// Apply CLI flag overrides
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Timeout != "" {
		if d, err2 := time.ParseDuration(globalFlags.Timeout); err2 == nil {
			cfg.Timeout = d
		}
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}

	if cfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	return app.New(cfg), nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.User, "user", "",
		"user id for history operations (overrides env PLOTDESK_USER and config.json)")
	pf.StringVar(&globalFlags.DBPath, "db", "",
		"path to the history database (overrides env PLOTDESK_DB_PATH)")
	pf.StringVar(&globalFlags.Listen, "listen", "",
		"serve address (overrides env PLOTDESK_LISTEN, default 127.0.0.1:8585)")
	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max catalog requests and thumbnail patches per second (default: 5.0)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests and responses")
}
