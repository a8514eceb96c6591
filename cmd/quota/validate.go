package main

import (
	"fmt"
	"slices"

	"github.com/mehditeymorian/quota"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a budgets file",
	Long: `Parse the budgets file and check every entry: budgets must be positive,
windows must be positive durations and event types may not contain ':'.

Examples:
  quota validate --config budgets.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, budgets, err := loadBudgets()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	prefix := f.Prefix
	if prefix == "" {
		prefix = quota.DefaultPrefix + " (default)"
	}
	fmt.Fprintf(out, "%s: %d event types, prefix %s\n", cfgFile, budgets.Len(), prefix)

	types := budgets.EventTypes()
	slices.Sort(types)
	for _, et := range types {
		b, _ := budgets.Lookup(et)
		fmt.Fprintf(out, "  %-16s budget=%d window=%v\n", et, b.Limit, b.Window)
	}
	return nil
}
