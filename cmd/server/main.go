package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firstbites/firstbites/internal/allergen"
	"github.com/firstbites/firstbites/internal/api"
	"github.com/firstbites/firstbites/internal/cache"
	"github.com/firstbites/firstbites/internal/config"
	"github.com/firstbites/firstbites/internal/feed"
	"github.com/firstbites/firstbites/internal/push"
	"github.com/firstbites/firstbites/internal/store"
	"github.com/firstbites/firstbites/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("firstbites-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"source_mode", cfg.Source.Mode,
		"snapshot_file", cfg.Cache.SnapshotFile,
		"webhooks", len(cfg.Notify.Webhooks),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defs := allergen.WithExtraKeywords(allergen.DefaultDefinitions(), cfg.Allergens.ExtraKeywords)

	var src feed.Source
	switch cfg.Source.Mode {
	case "file":
		src = feed.NewFileSource(cfg.Source.FeedFile)
	default:
		src = feed.NewClient(cfg.Source.BaseURL, cfg.Source.RealtimeURL,
			cfg.Source.Email(), cfg.Source.Password())
	}

	targets := make([]push.Target, 0, len(cfg.Notify.Webhooks))
	for _, wh := range cfg.Notify.Webhooks {
		targets = append(targets, push.Target{Type: wh.Type, URL: wh.URL()})
	}
	notifier := push.New(targets)

	c := cache.New(src, store.New(cfg.Cache.SnapshotFile), defs, cfg.Source.FetchTimeout)

	// WebSocket hub — fans out every refreshed snapshot to connected clients.
	hub := ws.New(c)
	c.SetPublisher(hub)
	c.SetNotifier(notifier)
	go hub.Run(ctx)

	// Start the cache: warm boot, then attach the feed source. An attach
	// failure is not fatal — the cache keeps serving warm data, readers see
	// it, and a restart can re-attach later.
	if err := c.Start(); err != nil {
		slog.Error("cache start failed — serving warm data only", "err", err)
	}

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(c, hub))
	httpMux.Handle("/ws/allergens", hub)
	httpMux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: httpMux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("firstbites-server shutting down")
	c.Stop()
	httpSrv.Shutdown(context.Background()) //nolint:errcheck
}
