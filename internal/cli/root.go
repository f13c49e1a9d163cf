package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podlabs/podmint/internal/config"
	"github.com/podlabs/podmint/internal/epoch"
	"github.com/podlabs/podmint/internal/gate"
	"github.com/podlabs/podmint/internal/ledger"
	"github.com/podlabs/podmint/internal/orchestrator"
	"github.com/podlabs/podmint/internal/precision"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "podmint",
		Short: "podmint: gated, tiered, conservation-checked token allocation",
		Long: `podmint evaluates contributions against the two-layer gate protocol,
derives a precision tier, qualifies an epoch, and distributes metal-typed
tokens from fixed per-epoch pools with a full audit trail.

Typical flow:
  podmint init                   # schema + genesis pools + streams
  podmint evaluate sub.json      # gates + precision, no allocation
  podmint allocate sub.json      # full pipeline for one evaluation
  podmint worker                 # consume evaluations from Redis`,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(allocateCmd)
	rootCmd.AddCommand(poolCmd)
	rootCmd.AddCommand(epochCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(workerCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}

func connectDB(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w\nSet PODMINT_DATABASE_URL environment variable", err)
	}
	return pool, nil
}

func connectRedis() (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w\nSet PODMINT_REDIS_URL environment variable", err)
	}
	return redis.NewClient(opts), nil
}

func gateConfig() gate.Config {
	gc := gate.DefaultConfig()
	gc.DeltaMin = cfg.DeltaMin
	return gc
}

// buildOrchestrator wires the full pipeline over a Postgres store.
func buildOrchestrator(db *pgxpool.Pool, emitter orchestrator.Emitter) (*orchestrator.Orchestrator, *ledger.Ledger, ledger.Store) {
	store := ledger.NewPGStore(db)
	l := ledger.New(store, ledger.DefaultConfig())
	o := orchestrator.New(
		gate.NewEngine(gateConfig()),
		precision.DefaultConfig(),
		epoch.NewQualifier(epoch.DefaultConfig()),
		l,
		store,
		orchestrator.DefaultAssay,
		emitter,
		orchestrator.DefaultConfig(),
	)
	return o, l, store
}
