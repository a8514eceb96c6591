package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mehditeymorian/quota"
	"github.com/mehditeymorian/quota/sqlstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var spendFlags struct {
	backend    string
	redisAddr  string
	dbPath     string
	name       string
	event      string
	units      int64
	count      int
	maxRetries int
	timeout    time.Duration
	refresh    bool
}

var spendCmd = &cobra.Command{
	Use:   "spend",
	Short: "Spend units of a key's budget",
	Long: `Spend units of the budget of (name, event) and print the decision.

Each spend reads the counter and writes it back with compare-and-swap. A
denied spend is not an error; a store failure or exhausted retries is.

Examples:
  # One unit against Redis
  quota spend --name user1 --event read

  # Five spends of two units each against a SQLite file
  quota spend --backend sqlite --db quota.db --name user1 --event write --units 2 --count 5`,
	RunE: runSpend,
}

func init() {
	rootCmd.AddCommand(spendCmd)

	spendCmd.Flags().StringVar(&spendFlags.backend, "backend", "redis", "store backend: redis, sqlite, memory")
	spendCmd.Flags().StringVar(&spendFlags.redisAddr, "redis-addr", envOr("QUOTA_REDIS_ADDR", "localhost:6379"), "redis address")
	spendCmd.Flags().StringVar(&spendFlags.dbPath, "db", "quota.db", "sqlite database path")
	spendCmd.Flags().StringVar(&spendFlags.name, "name", "", "subject name, e.g. a user id or IP (required)")
	spendCmd.Flags().StringVar(&spendFlags.event, "event", "", "event type from the budgets file (required)")
	spendCmd.Flags().Int64Var(&spendFlags.units, "units", 1, "units to spend per call")
	spendCmd.Flags().IntVar(&spendFlags.count, "count", 1, "number of spends")
	spendCmd.Flags().IntVar(&spendFlags.maxRetries, "max-retries", quota.DefaultMaxRetries, "write attempts per spend")
	spendCmd.Flags().DurationVar(&spendFlags.timeout, "timeout", quota.DefaultStoreTimeout, "timeout per store call")
	spendCmd.Flags().BoolVar(&spendFlags.refresh, "refresh", false, "restart the window on every spend")

	spendCmd.MarkFlagRequired("name")
	spendCmd.MarkFlagRequired("event")
}

func runSpend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	f, budgets, err := loadBudgets()
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, spendFlags.backend)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := []quota.Option{
		quota.WithLogger(logger),
		quota.WithMaxRetries(spendFlags.maxRetries),
		quota.WithStoreTimeout(spendFlags.timeout),
		quota.WithRefreshOnSpend(spendFlags.refresh),
	}
	if f.Prefix != "" {
		opts = append(opts, quota.WithPrefix(f.Prefix))
	}
	l, err := quota.New(store, budgets, opts...)
	if err != nil {
		return err
	}

	key := quota.NewKey(spendFlags.name, quota.EventType(spendFlags.event))
	out := cmd.OutOrStdout()
	for i := 0; i < spendFlags.count; i++ {
		d, err := l.Spend(ctx, key, spendFlags.units)
		if err != nil {
			var cfgErr *quota.ConfigurationError
			if errors.As(err, &cfgErr) {
				return fmt.Errorf("%w (check %s)", err, cfgFile)
			}
			return err
		}
		fmt.Fprintf(out, "%s %s used=%d remaining=%d reset_after=%v attempts=%d\n",
			key, d.Outcome, d.Used, d.Remaining, d.ResetAfter.Round(time.Millisecond), d.Attempts)
	}
	return nil
}

func openStore(ctx context.Context, backend string) (quota.Store, func() error, error) {
	switch backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: spendFlags.redisAddr})
		store, err := quota.NewRedisStore(ctx, rdb)
		if err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", spendFlags.redisAddr, err)
		}
		return store, rdb.Close, nil
	case "sqlite":
		store, err := sqlstore.Open(sqlstore.Config{DBPath: spendFlags.dbPath})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		store := quota.NewMemoryStore(quota.MemoryStoreConfig{SweepInterval: -1})
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (want redis, sqlite or memory)", backend)
	}
}
