package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mehditeymorian/quota"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "quota",
	Short: "Per-key budget enforcement over a shared store",
	Long: `Quota enforces per-key budgets over fixed refresh windows. Counters live in
a shared store (Redis or a SQLite file) and are updated with optimistic
compare-and-swap, so any number of processes can spend against them at once.

Budgets are read from a YAML file:

  prefix: quota
  events:
    read:  {budget: 2, window: 1s}
    write: {budget: 5, window: 1s}`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", envOr("QUOTA_CONFIG", "budgets.yaml"), "budgets file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	switch logFormat {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", logFormat)
	}
}

func loadBudgets() (quota.File, quota.Budgets, error) {
	return quota.LoadBudgets(cfgFile)
}

func envOr(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return fallback
}
