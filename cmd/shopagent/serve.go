package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/stackmesh/shopagent/internal/agent"
	"github.com/stackmesh/shopagent/internal/agent/providers"
	"github.com/stackmesh/shopagent/internal/bridge"
	"github.com/stackmesh/shopagent/internal/config"
	"github.com/stackmesh/shopagent/internal/gateway"
	"github.com/stackmesh/shopagent/internal/observability"
	"github.com/stackmesh/shopagent/internal/sessions"
	"github.com/stackmesh/shopagent/internal/store"
	"github.com/stackmesh/shopagent/internal/tools"
	"github.com/stackmesh/shopagent/internal/tools/storetools"
)

// systemPrompt frames the assistant for the retail domain. Product and
// customer context arrives as preloaded tool-result turns.
const systemPrompt = `You are a helpful shopping assistant for an online clothing store.
You can look up customers, list products, inspect table schemas, run read-only
queries, and apply updates through the tools provided. Prefer tools over
guessing. When a tool fails, explain the failure briefly and suggest what the
user can do next.`

func buildServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversation gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to shopagent.yaml")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateForServe(); err != nil {
		return err
	}
	logger := newLogger(cfg)
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executor, cleanup, err := buildExecutor(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer cleanup()

	apiKey, err := providers.KeyFromEnv(cfg.LLM.Provider)
	if err != nil {
		return err
	}
	provider, err := providers.New(ctx, providers.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   apiKey,
	})
	if err != nil {
		return err
	}
	logger.Info("model provider ready", "provider", provider.Name(), "model", cfg.LLM.Model)

	engine := agent.NewEngine(provider, executor, logger,
		agent.WithSystemPrompt(systemPrompt),
		agent.WithMaxToolRounds(cfg.Session.MaxToolRounds),
		agent.WithEngineMetrics(metrics),
	)
	manager := sessions.NewManager(engine, logger,
		sessions.WithProductPreload(!cfg.Session.DisableProductPreload),
		sessions.WithManagerMetrics(metrics),
	)

	handler := gateway.NewHandler(manager, logger, metrics)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort)
	srv := gateway.NewServer(addr, handler.Routes())

	return serveUntilSignal(ctx, srv, logger, "gateway")
}

// buildExecutor returns either an in-process bridge over the record
// store or a client for a remote executor, per config.
func buildExecutor(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (bridge.Executor, func(), error) {
	if cfg.Executor.URL != "" {
		remote, err := bridge.NewRemoteExecutor(ctx, cfg.Executor.URL, cfg.Executor.Timeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return remote, func() {}, nil
	}

	st, err := store.Open(ctx, store.Config{URL: cfg.Database.URL}, logger)
	if err != nil {
		return nil, nil, err
	}
	registry, err := tools.NewRegistry(storetools.All(st)...)
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	b := bridge.New(registry, logger,
		bridge.WithTimeout(cfg.Executor.Timeout),
		bridge.WithMetrics(metrics),
	)
	return b, func() { _ = st.Close() }, nil
}

func serveUntilSignal(ctx context.Context, srv *http.Server, logger *slog.Logger, name string) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info(name+" listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down " + name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return gateway.Shutdown(shutdownCtx, srv)
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
