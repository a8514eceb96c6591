package main

import (
	"context"
	"fmt"

	"github.com/mehditeymorian/quota/sqlstore"
	"github.com/spf13/cobra"
)

var sweepFlags struct {
	dbPath string
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired counters from a SQLite store",
	Long: `Expired counters are already ignored by reads and writes; sweep only
reclaims their rows. Redis expires keys on its own and needs no sweep.

Examples:
  quota sweep --db quota.db`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().StringVar(&sweepFlags.dbPath, "db", "quota.db", "sqlite database path")
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := sqlstore.Open(sqlstore.Config{DBPath: sweepFlags.dbPath})
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "swept %d expired counters from %s\n", n, sweepFlags.dbPath)
	return nil
}
