package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/api"
	"github.com/raaihank/asset-privacy/internal/config"
	"github.com/raaihank/asset-privacy/internal/logger"
	"github.com/raaihank/asset-privacy/internal/service"
	"github.com/raaihank/asset-privacy/internal/websocket"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the server at this base URL and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("privacyd %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting asset privacy daemon",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
		zap.String("funds_store", cfg.Funds.Store.Type),
		zap.String("records_store", cfg.Records.Store),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		hub    *websocket.Hub
		events service.Notifier
	)
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(websocket.HubConfig{
			BroadcastRecords:     cfg.WebSocket.Events.BroadcastRecords,
			BroadcastRegistry:    cfg.WebSocket.Events.BroadcastRegistry,
			BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
			Username:             cfg.WebSocket.Username,
			Password:             cfg.WebSocket.Password,
			AllowedOrigins:       cfg.WebSocket.AllowedOrigins,
		}, log.WithComponent("websocket").Logger)
		go hub.Run(ctx)
		events = hub
	}

	components, err := service.Build(ctx, cfg, log, events)
	if err != nil {
		log.Fatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer components.Close()

	if err := config.Watch(*configPath, func(newConfig *config.Config) {
		if newConfig.Logging.Level == log.Level().String() {
			return
		}
		if err := log.SetLevel(newConfig.Logging.Level); err != nil {
			log.Warn("Failed to apply log level", zap.Error(err))
			return
		}
		log.Info("Configuration reloaded", zap.String("log_level", newConfig.Logging.Level))
	}, func(err error) {
		log.Warn("Ignoring configuration change", zap.Error(err))
	}); err != nil {
		log.Debug("Configuration hot reload disabled", zap.Error(err))
	}

	server := api.New(cfg, components.Pipeline, hub, log)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
		}
		log.Info("Server shutdown complete")
	}
}

// performHealthCheck performs a health check against a running server
func performHealthCheck(baseURL string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
}
