// Command fintalkd runs the fintalk assistant server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fintalk/fintalk"
	"github.com/fintalk/fintalk/api"
	"github.com/fintalk/fintalk/config"
	"github.com/fintalk/fintalk/hooks"
	"github.com/fintalk/fintalk/leadership"
	"github.com/fintalk/fintalk/llm"
	"github.com/fintalk/fintalk/maintenance"
	"github.com/fintalk/fintalk/memory"
	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/tools"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "fintalkd",
		Short:         "Multi-agent personal finance assistant server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(newServeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "fintalkd", fintalk.Version)
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, memories, cleanup, err := openStores(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	anthropicClient := anthropic.NewClient() // reads ANTHROPIC_API_KEY
	chat := llm.NewClient(&anthropicClient, cfg.Anthropic.ChatModel, int64(cfg.Anthropic.MaxTokens))

	registry := hooks.NewRegistry()
	hooks.RegisterLogging(registry, logger)

	clientCfg := fintalk.Config{
		Store:    sessions,
		Memories: memories,
		Chat:     chat,
	}
	if cfg.Compaction.Enabled {
		clientCfg.Summary = llm.NewSummaryModel(&anthropicClient, cfg.Anthropic.SummaryModel, int64(cfg.Compaction.SummaryMaxTokens))
	}

	client, err := fintalk.NewClient(clientCfg,
		fintalk.WithLogger(logger),
		fintalk.WithAutoCompaction(cfg.Compaction.Enabled),
		fintalk.WithTailTokenBudget(cfg.Compaction.TailTokenBudget),
		fintalk.WithSummaryMaxTokens(cfg.Compaction.SummaryMaxTokens),
		fintalk.WithMemoryRecallLimit(cfg.Memory.RecallLimit),
		fintalk.WithHooks(registry),
	)
	if err != nil {
		return err
	}

	fintalk.MustRegisterTool(tools.NewUpdateProfileTool(memories))
	fintalk.MustRegisterTool(tools.NewCreateGoalTool(memories))
	fintalk.MustRegisterTool(tools.NewProjectSavingsTool())
	fintalk.RegisterDefaultAgents()

	// One instance at a time sweeps idle sessions, gated by the leader lease.
	if cfg.Compaction.Enabled {
		sweeper := maintenance.NewSweeper(sessions, client, nil, logger)
		elector := leadership.NewElector(sessions, uuid.NewString(), nil, leadership.Callbacks{
			OnBecameLeader: func(leaderCtx context.Context) {
				logger.Info().Msg("became leader, starting idle session sweeper")
				if err := sweeper.Start(leaderCtx); err != nil {
					logger.Warn().Err(err).Msg("sweeper start failed")
				}
			},
			OnLostLeadership: func(context.Context) {
				logger.Info().Msg("lost leadership, stopping idle session sweeper")
				if err := sweeper.Stop(); err != nil && !errors.Is(err, maintenance.ErrNotStarted) {
					logger.Warn().Err(err).Msg("sweeper stop failed")
				}
			},
		})
		if err := elector.Start(ctx); err != nil {
			return err
		}
		defer elector.Stop(context.Background())
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(client, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// openStores connects to PostgreSQL when a database URL is configured and
// falls back to in-memory storage otherwise.
func openStores(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (store.Store, memory.Store, func(), error) {
	if cfg.URL == "" {
		logger.Warn().Msg("no database configured, using in-memory storage")
		return store.NewMemStore(), memory.NewMemStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect database: %w", err)
	}

	sessions := store.NewPGStore(pool)
	if err := sessions.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate sessions: %w", err)
	}
	memories := memory.NewPGStore(pool)
	if err := memories.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("migrate memories: %w", err)
	}

	logger.Info().Msg("connected to database")
	return sessions, memories, pool.Close, nil
}

func newLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var out = os.Stderr
	logger := zerolog.New(out)
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen})
	}
	return logger.Level(level).With().Timestamp().Logger(), nil
}
