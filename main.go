package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"askbridge/internal/api"
	"askbridge/internal/config"
	"askbridge/internal/conversation"
	"askbridge/internal/logging"
	"askbridge/internal/service/ai"
	"askbridge/internal/service/assistant"
	"askbridge/internal/service/format"
	"askbridge/internal/service/prompt"
)

var (
	shutdownTimeout = 10 * time.Second
	// drainTimeout is how long stopped backend calls get to unwind before
	// the process exits.
	drainTimeout = 5 * time.Second
)

var (
	configPath string
	logLevel   string
	prettyLogs bool
	portFlag   int
)

var rootCmd = &cobra.Command{
	Use:           "askbridge",
	Short:         "Local bridge between design-tool plugins and AI coding CLIs",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (default $"+config.EnvConfigPath+" or ./config.yaml)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&prettyLogs, "pretty", false, "human-readable console logs")
	rootCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "override listen port")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("pretty") {
		cfg.Log.Pretty = prettyLogs
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = portFlag
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Backend calls outlive their requests but not the server.
	backends, stopBackends := context.WithCancel(context.Background())
	defer stopBackends()

	store := conversation.NewStore()
	store.StartPurger(ctx, cfg.Conversation.PurgeInterval, cfg.Conversation.TTL, logger)

	clients, err := ai.NewClients(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init chat clients: %w", err)
	}
	assistantService := assistant.NewService(
		store,
		prompt.NewRegistry(),
		ai.NewService(ai.NewRegistry(clients...)),
		format.NewStructured(),
		assistant.Options{MaxHistory: cfg.Conversation.MaxHistory, DefaultTimeout: cfg.CLI.Timeout, Lifetime: backends},
		logger,
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), logging.AccessLog(logger))
	api.NewHandler(assistantService, logger).RegisterRoutes(router)

	listener, err := listen(cfg.Server)
	if err != nil {
		return err
	}
	return run(ctx, &http.Server{Handler: router}, listener, stopBackends, cfg, logger)
}

// listen binds the address up front so a busy port is reported before
// anything else starts.
func listen(server config.ServerConfig) (net.Listener, error) {
	listener, err := net.Listen("tcp", server.Addr())
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("ポート %d が使用中です。別のポートを指定するか、既存のプロセスを停止してください。", server.Port)
		}
		return nil, fmt.Errorf("listen %s: %w", server.Addr(), err)
	}
	return listener, nil
}

// run serves until ctx ends, then shuts down. Requests still waiting on a
// backend after shutdownTimeout have their CLI processes stopped.
func run(ctx context.Context, srv *http.Server, listener net.Listener, stopBackends context.CancelFunc, cfg *config.Config, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	logger.Info().
		Str("addr", listener.Addr().String()).
		Str("codex_mode", cfg.Codex.Mode).
		Str("claude_mode", cfg.Claude.Mode).
		Msg("askbridge listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Warn().Msg("requests still waiting on backends, stopping cli processes")
	stopBackends()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if err := srv.Shutdown(drainCtx); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
