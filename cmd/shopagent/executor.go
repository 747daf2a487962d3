package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/stackmesh/shopagent/internal/bridge"
	"github.com/stackmesh/shopagent/internal/gateway"
	"github.com/stackmesh/shopagent/internal/observability"
	"github.com/stackmesh/shopagent/internal/store"
	"github.com/stackmesh/shopagent/internal/tools"
	"github.com/stackmesh/shopagent/internal/tools/storetools"
)

func buildExecutorCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "executor",
		Short: "Run the standalone tool-executor service",
		Long: `Runs the tool-execution API on its own: GET /mcp/tools lists the
catalog, POST /mcp/execute runs a tool against the record store. A
gateway started with executor.url pointing here forwards all tool
calls instead of executing them in-process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExecutor(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to shopagent.yaml")
	return cmd
}

func runExecutor(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForExecutor(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.Config{URL: cfg.Database.URL}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	registry, err := tools.NewRegistry(storetools.All(st)...)
	if err != nil {
		return err
	}
	logger.Info("tool registry ready", "tools", registry.Names())

	b := bridge.New(registry, logger,
		bridge.WithTimeout(cfg.Executor.Timeout),
		bridge.WithMetrics(metrics),
	)
	handler := gateway.NewExecutorHandler(b, logger)
	srv := gateway.NewServer(cfg.Executor.Listen, handler.Routes())

	return serveUntilSignal(ctx, srv, logger, "executor")
}
