package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yoockh/casecoach/config"
	"github.com/yoockh/casecoach/internal/app"
	"github.com/yoockh/casecoach/internal/logger"
	"github.com/yoockh/casecoach/internal/workers"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "casecoach-worker",
		Short:        "Batch processing of recorded interview sessions",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), enqueueCmd(), processCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var workersN int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume the processing stream until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := config.LoadApp()
			if workersN > 0 {
				cfg.WorkerCount = workersN
			}
			return withPool(ctx, cfg, func(pool *workers.SessionWorkerPool) error {
				if err := pool.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&workersN, "workers", "n", 0, "consumer count (default WORKER_COUNT)")
	return cmd
}

func processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process <session_id>",
		Short: "Process one session synchronously, bypassing the stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadApp()
			return withPool(cmd.Context(), cfg, func(pool *workers.SessionWorkerPool) error {
				return pool.ProcessSession(cmd.Context(), args[0])
			})
		},
	}
}

func enqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <session_id>...",
		Short: "Queue sessions for batch processing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadApp()
			if err := config.InitRedis(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer config.RedisClient.Close()

			for _, sid := range args {
				id, err := workers.Enqueue(cmd.Context(), config.RedisClient, cfg.ProcessStream, sid)
				if err != nil {
					return fmt.Errorf("enqueue %s: %w", sid, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", sid, id)
			}
			return nil
		},
	}
}

func withPool(ctx context.Context, cfg config.App, fn func(*workers.SessionWorkerPool) error) error {
	log := logger.New()

	if err := config.InitMongo(); err != nil {
		return fmt.Errorf("mongo: %w", err)
	}
	defer config.MongoClient.Disconnect(context.Background())
	if err := config.InitPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if err := config.MigratePostgres(); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	if err := config.InitRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer config.RedisClient.Close()

	providers, err := app.NewProviders(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer providers.Close()

	stores := app.Stores{
		Mongo:    config.MongoDatabase(cfg.MongoDB),
		Postgres: config.PostgresDB,
		Redis:    config.RedisClient,
	}
	core, err := app.NewCore(cfg, log, stores, providers)
	if err != nil {
		return err
	}
	pool, events := app.NewWorkerPool(cfg, log, stores, core)
	defer events.Close()
	return fn(pool)
}
