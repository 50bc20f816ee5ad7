// Command server runs the collaborative-editing synchronization
// service: the REST document-lifecycle API, the edit/sync/presence
// WebSocket endpoint, and the Operation Manager that sequences
// concurrent edits into one canonical history per document.
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

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/abhilashshingan/collaborative-editor/internal/api"
	"github.com/abhilashshingan/collaborative-editor/internal/config"
	"github.com/abhilashshingan/collaborative-editor/internal/presence"
	"github.com/abhilashshingan/collaborative-editor/internal/registry"
	"github.com/abhilashshingan/collaborative-editor/internal/sequencer"
	"github.com/abhilashshingan/collaborative-editor/internal/storage"
	"github.com/abhilashshingan/collaborative-editor/internal/ws"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		logger.Error("config", "error", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", "error", err)
		return 1
	}
	defer closeStore()

	hub := ws.NewHub()
	reg := registry.New()

	broadcaster, presenceSubscribe, stopPresence, err := newBroadcaster(ctx, cfg, hub, logger)
	if err != nil {
		logger.Error("open presence broadcaster", "error", err)
		return 1
	}
	if stopPresence != nil {
		defer stopPresence()
	}

	mgr := sequencer.NewManager(sequencer.ManagerConfig{
		Store:          store,
		SnapshotPolicy: storage.NewSnapshotPolicy(100),
		Broadcaster:    broadcaster,
		AckHook:        reg,
	})
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := mgr.CloseAll(shutdownCtx); err != nil {
			logger.Error("close documents", "error", err)
		}
	}()

	server := api.NewServer(api.ServerConfig{
		Manager:           mgr,
		Store:             store,
		Registry:          reg,
		Hub:               hub,
		PresenceSubscribe: presenceSubscribe,
	})

	stopCleanup := startIdleCleanup(ctx, reg, cfg.CleanupInterval, cfg.MaxIdle, logger)
	defer stopCleanup()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr(), "threads", cfg.Threads)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server error", "error", err)
			return 1
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
			return 1
		}
	}

	logger.Info("stopped")
	return 0
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, func(), error) {
	if cfg.PostgresHost == "" {
		return storage.NewMemoryStore(), func() {}, nil
	}

	store, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Database: cfg.PostgresDatabase,
	})
	if err != nil {
		return nil, nil, err
	}

	return store, func() { _ = store.Close() }, nil
}

// newBroadcaster returns the Broadcaster the sequencer fans committed
// operations out through, an optional per-document Subscribe function
// for the API server to call on first open, and a shutdown func.
func newBroadcaster(ctx context.Context, cfg config.Config, hub *ws.Hub, logger *slog.Logger) (sequencer.Broadcaster, func(context.Context, string) error, func(), error) {
	if cfg.RedisAddr == "" {
		return api.NewHubBroadcaster(hub), nil, nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("presence: connect redis: %w", err)
	}

	hubBroadcaster := api.NewHubBroadcaster(hub)
	broadcaster := presence.New(presence.Config{
		Client:    client,
		ProcessID: uuid.NewString(),
		Logger:    logger,
		Deliver:   hubBroadcaster.Broadcast,
	})

	stop := func() {
		_ = client.Close()
	}

	return broadcaster, broadcaster.Subscribe, stop, nil
}

func startIdleCleanup(ctx context.Context, reg *registry.Registry, interval, maxIdle time.Duration, logger *slog.Logger) func() {
	cleanupCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				if n := reg.CleanupIdle(maxIdle); n > 0 {
					logger.Info("reaped idle sessions", "count", n)
				}
			}
		}
	}()

	return cancel
}
