package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/devblac/ibc-watch/internal/config"
	"github.com/devblac/ibc-watch/internal/engine"
	"github.com/devblac/ibc-watch/internal/health"
	"github.com/devblac/ibc-watch/internal/logging"
	"github.com/devblac/ibc-watch/internal/metrics"
	"github.com/devblac/ibc-watch/internal/storage"
	"github.com/spf13/cobra"
)

var (
	flagOnce      bool
	flagDryRun    bool
	flagFrom      uint64
	flagHealth    string
	flagMetrics   string
	flagLogFormat string
)

func init() {
	runCmd.Flags().BoolVar(&flagOnce, "once", false, "Process one tick and exit")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Store events and evaluate rules without sending to sinks")
	runCmd.Flags().Uint64Var(&flagFrom, "from", 0, "Start every chain from this block height, ignoring stored cursors")
	runCmd.Flags().StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	runCmd.Flags().StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
	runCmd.Flags().StringVar(&flagLogFormat, "log-format", "text", "Log format: text or json")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Follow the configured chains and route IBC events to sinks",
	RunE: func(cmd *cobra.Command, args []string) error {
		logLevel := os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			logLevel = "info"
		}
		log := logging.NewWriter(os.Stdout, logLevel, flagLogFormat)
		ctx := cmd.Context()

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		store, err := storage.Open(cfg.Global.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		var mtr *metrics.Metrics
		if flagMetrics != "" || flagHealth != "" {
			mtr = metrics.Init()
		}

		chains, err := wireChains(ctx, cfg, store, log, mtr)
		if err != nil {
			return err
		}
		defer chains.Close()

		sinks, err := buildSinks(cfg, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if flagHealth != "" {
			rpcChecker := health.NewRPCChecker(chains.heads())
			healthSrv := health.Serve(flagHealth, health.Checker{
				DBPing:  store.Ping,
				RPCPing: rpcChecker.Ping,
				Metrics: metrics.Handler(),
			})
			log.Info("health check enabled", "addr", flagHealth)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = health.Shutdown(shutdownCtx, healthSrv)
			}()
		}

		if flagMetrics != "" && flagMetrics != flagHealth {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv := &http.Server{Addr: flagMetrics, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server error", "error", err)
				}
			}()
			log.Info("metrics enabled", "addr", flagMetrics)
			defer func() { _ = srv.Close() }()
		}

		runner, err := engine.NewRunner(store, cfg.Rules, chains.enginePlugins(), sinks, engine.Options{
			Concurrency: cfg.Global.Concurrency(),
			DryRun:      flagDryRun,
			RetryDelay:  cfg.Global.Interval(),
			Logger:      log,
			Metrics:     mtr,
		})
		if err != nil {
			return err
		}

		ops, err := startOps(ctx, cfg, chains, store, flagFrom, log)
		if err != nil {
			return err
		}
		runner.Enqueue(ops...)

		if flagOnce {
			if _, err := runner.Tick(ctx); err != nil {
				mtr.Errors()
				return err
			}
			log.Info("tick complete", "dry_run", flagDryRun, "pending", runner.Pending())
			return nil
		}
		if err := runner.Run(ctx, cfg.Global.Interval()); err != nil {
			mtr.Errors()
			log.Error("run error", "error", err)
			return err
		}
		log.Info("shutting down", "pending", runner.Pending())
		return nil
	},
}
