// Command chatstate runs the conversation state engine behind an HTTP API
// and a websocket event stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GetStream/chat-state-engine/api"
	"github.com/GetStream/chat-state-engine/chat"
	"github.com/GetStream/chat-state-engine/config"
	"github.com/GetStream/chat-state-engine/metrics"
	"github.com/GetStream/chat-state-engine/postgres"
	"github.com/GetStream/chat-state-engine/redis"
	"github.com/GetStream/chat-state-engine/roster"
	"github.com/GetStream/chat-state-engine/ws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	loc, _ := cfg.Location()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := chat.New(chat.Options{
		LocalUserID: cfg.LocalUserID,
		Location:    loc,
		Logger:      logger.With("component", "engine"),
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	collector := metrics.New(prometheus.DefaultRegisterer)
	hub := ws.NewHub(logger.With("component", "ws"))
	defer hub.Close()
	engine.Subscribe(collector)
	engine.Subscribe(hub)

	if err := loadRoster(ctx, cfg, logger, engine); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", &api.API{
		Logger:  logger.With("component", "api"),
		Engine:  engine,
		Hub:     hub,
		Metrics: collector,
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.ServerAddr, "local_user_id", cfg.LocalUserID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// loadRoster seeds the engine from Postgres, with Redis as an optional
// recent-message cache. Nothing is loaded without a Postgres DSN.
func loadRoster(ctx context.Context, cfg config.Config, logger *slog.Logger, engine *chat.Engine) error {
	if cfg.PostgresDSN == "" {
		if cfg.RedisAddr != "" {
			logger.Warn("Ignoring redis_addr without postgres_dsn")
		}
		logger.Info("No roster source configured, starting empty")
		return nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer db.Close()

	loader := &roster.Loader{
		Logger:       logger.With("component", "roster"),
		DB:           db,
		MessageLimit: cfg.RosterMessageLimit,
	}
	if cfg.RedisAddr != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer rdb.Close()
		loader.Cache = rdb
	}

	r, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load roster: %w", err)
	}
	if err := engine.OnRosterLoaded(r); err != nil {
		return fmt.Errorf("seed engine: %w", err)
	}
	return nil
}
