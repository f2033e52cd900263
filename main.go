package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "nebuladiary",
		Short: "NebulaDiary API server",
		Long:  "nebuladiary serves the media diary API: entry CRUD backed by Redis and a search proxy over Jikan, TVMaze and iTunes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.Flags().Int("port", 8000, "HTTP listen port")
	cmd.Flags().String("log-level", "info", "log level (trace|debug|info|warn|error)")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}

func newLogger(cfg *Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "nebuladiary",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		JSONFormat: cfg.LogJSON,
		Output:     os.Stdout,
	})
}

// openStore connects to Redis when a database URL is configured. Without
// one, or when it cannot be parsed, the store is left unavailable.
func openStore(ctx context.Context, cfg *Config, logger hclog.Logger) *RedisStore {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, entries are unavailable")
		return NewRedisStore(nil, cfg.DatabaseName)
	}
	opts, err := redis.ParseURL(cfg.DatabaseURL)
	if err != nil {
		logger.Error("invalid DATABASE_URL, entries are unavailable", "error", err)
		return NewRedisStore(nil, cfg.DatabaseName)
	}
	store := NewRedisStore(redis.NewClient(opts), cfg.DatabaseName)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		logger.Warn("could not reach redis", "addr", opts.Addr, "error", err)
	} else {
		logger.Info("connected to redis", "addr", opts.Addr, "db", opts.DB, "name", cfg.DatabaseName)
	}
	return store
}

func serve(cfg *Config) error {
	logger := newLogger(cfg)
	ctx := context.Background()

	store := openStore(ctx, cfg, logger)
	searcher := NewSearcher(SearchConfig{
		Timeout:   cfg.SearchTimeout,
		JikanURL:  cfg.JikanURL,
		TVMazeURL: cfg.TVMazeURL,
		ITunesURL: cfg.ITunesURL,
	})
	handler := NewHandler(store, searcher, logger.Named("http"), cfg.DatabaseURL != "")

	var root http.Handler = handler.Routes()
	root = recoverMiddleware(logger)(root)
	root = corsMiddleware(parseOrigins(cfg.CORSOrigins))(root)
	root = loggingMiddleware(logger)(root)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      root,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.SearchTimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server is listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("could not listen: %w", err)
	case <-quit:
	}
	logger.Info("server is shutting down")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := store.Close(); err != nil {
		logger.Warn("closing redis", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
