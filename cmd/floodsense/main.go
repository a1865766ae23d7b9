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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/floodsense/internal/api"
	"github.com/mr1hm/floodsense/internal/bootstrap"
	"github.com/mr1hm/floodsense/internal/config"
	"github.com/mr1hm/floodsense/internal/geocode"
	internalgrpc "github.com/mr1hm/floodsense/internal/grpc"
	"github.com/mr1hm/floodsense/internal/livesync"
	"github.com/mr1hm/floodsense/internal/logging"
	"github.com/mr1hm/floodsense/internal/monitor"
	"github.com/mr1hm/floodsense/internal/overlay"
	"github.com/mr1hm/floodsense/internal/repository"
	"github.com/mr1hm/floodsense/internal/routing"
	"github.com/mr1hm/floodsense/internal/session"
	"github.com/mr1hm/floodsense/internal/settings"
	"github.com/mr1hm/floodsense/internal/weather"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port,
		"store", cfg.Store.Backend, "auth", cfg.Auth.Provider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		logging.Fatalf("Failed to open backends: %v", err)
	}
	defer backends.Close()

	overlays, err := overlay.Load(cfg.Overlays.Path)
	if err != nil {
		logging.Fatalf("Failed to load overlays: %v", err)
	}

	repo := repository.New(backends.Store)
	hub := livesync.NewHub(repo, backends.Publisher)
	if err := hub.Start(ctx); err != nil {
		logging.Fatalf("Failed to start live sync: %v", err)
	}

	sessions := session.NewBridge(backends.Auth, repo)
	go logAuthEvents(sessions)

	weatherClient := weather.NewClient(cfg.Weather.APIKey, cfg.Weather.BaseURL, backends.Redis, cfg.Weather.CacheTTL)

	if cfg.Monitor.Enabled && cfg.Weather.APIKey == "" {
		slog.Warn("rainfall monitor disabled, OPENWEATHER_API_KEY is not set")
		cfg.Monitor.Enabled = false
	}
	mon := monitor.NewManager(cfg, weatherClient, hub, overlays.Districts)
	mon.Start(ctx)

	var grpcServer *internalgrpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = internalgrpc.NewServer(hub, repo, sessions)
		go func() {
			grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
			if err := grpcServer.Start(grpcAddr); err != nil {
				logging.Fatalf("gRPC server error: %v", err)
			}
		}()
	}

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimit))

	handler := api.NewHandler(api.Deps{
		Hub:       hub,
		Sessions:  sessions,
		Settings:  settings.NewService(backends.Auth, repo),
		Repo:      repo,
		Navigator: routing.NewNavigator(routing.NewOSRM(cfg.Routing.OSRMURL, cfg.Routing.Timeout), overlays),
		Overlays:  overlays,
		Weather:   weatherClient,
		Geocoder:  geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent),
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	mon.Stop()
	hub.Stop() // closes live feeds and alert streams
	sessions.Close()
	if grpcServer != nil {
		grpcServer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func logAuthEvents(sessions *session.Bridge) {
	log := logging.With("auth")
	_, events := sessions.Subscribe()
	for e := range events {
		log.Info("auth state changed", "event", e.Kind, "uid", e.UID)
	}
}
