// Package main provides the entry point for the go-omnik daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-omnik/internal/api"
	"github.com/resident-x/go-omnik/internal/config"
	"github.com/resident-x/go-omnik/internal/domain"
	"github.com/resident-x/go-omnik/internal/metrics"
	"github.com/resident-x/go-omnik/internal/poller"
	"github.com/resident-x/go-omnik/internal/pubsub"
	"github.com/resident-x/go-omnik/internal/storage"
)

var (
	Version = "unknown" // Default version, can be overridden by build flags
)

func main() {
	code := run()
	os.Exit(code)
}

func run() int {
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("go-omnik %s\n", Version)
		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	initLogger(cfg.LogLevel)

	log.Info().Str("version", Version).Msg("Starting go-omnik")
	cfg.Print()

	if len(cfg.Inverters) == 0 {
		log.Error().Msg("No inverters configured")
		return 1
	}

	// MQTT publisher
	var publisher domain.MessagePublisher
	if cfg.MQTT.Enabled {
		mqttPublisher := pubsub.NewMQTTPublisher(cfg)
		if err := mqttPublisher.Connect(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to connect to MQTT broker, using noop publisher")
			publisher = pubsub.NewNoopPublisher()
		} else {
			publisher = mqttPublisher
			log.Info().Msg("MQTT publisher connected successfully")
		}
	} else {
		log.Info().Msg("MQTT disabled, using noop publisher")
		publisher = pubsub.NewNoopPublisher()
	}
	defer publisher.Close()

	// Reading history storage
	var store domain.ReadingStore
	var db *storage.Database
	if cfg.Storage.Enabled {
		db, err = storage.Open(cfg.Storage.Path)
		if err != nil {
			log.Error().Err(err).Str("path", cfg.Storage.Path).Msg("Failed to open storage")
			return 1
		}
		defer db.Close()
		store = db
		log.Info().Str("path", cfg.Storage.Path).Msg("Reading storage enabled")
	}

	registry := domain.NewStatusRegistry()

	p, err := poller.New(cfg, registry, publisher, store, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create poller")
		return 1
	}
	defer p.Close()

	// Prometheus metrics over the registry snapshot
	promRegistry := prometheus.NewRegistry()
	if err := promRegistry.Register(metrics.NewCollector(registry)); err != nil {
		log.Error().Err(err).Msg("Failed to register metrics collector")
		return 1
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg, registry, store, promRegistry)
		if err := apiServer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to start HTTP API server")
			return 1
		}
	}

	go func() {
		if err := p.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Poller error")
		}
	}()

	if db != nil && cfg.Storage.RetentionDays > 0 {
		go runRetention(ctx, db, cfg.Storage.RetentionDays)
	}

	// Handle graceful shutdown
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-signalChan
	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping HTTP API server")
			return 1
		}
	}

	log.Info().Msg("Daemon stopped")
	return 0
}

// runRetention deletes stored readings past the retention window once a day.
func runRetention(ctx context.Context, db *storage.Database, retentionDays int) {
	window := time.Duration(retentionDays) * 24 * time.Hour

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	if err := db.CleanOldReadings(ctx, window); err != nil {
		log.Warn().Err(err).Msg("Failed to clean old readings")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.CleanOldReadings(ctx, window); err != nil {
				log.Warn().Err(err).Msg("Failed to clean old readings")
			}
		}
	}
}

// initLogger configures the global zerolog logger.
func initLogger(level string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}

	logLevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		fmt.Printf("Invalid log level '%s', defaulting to 'info'\n", level)
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)
	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
}
