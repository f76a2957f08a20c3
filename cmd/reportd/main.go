package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/clima-scope/internal/adapter/httpapi"
	kafkaadapter "github.com/couchcryptid/clima-scope/internal/adapter/kafka"
	"github.com/couchcryptid/clima-scope/internal/adapter/narrative"
	"github.com/couchcryptid/clima-scope/internal/adapter/renderer"
	"github.com/couchcryptid/clima-scope/internal/config"
	"github.com/couchcryptid/clima-scope/internal/domain"
	"github.com/couchcryptid/clima-scope/internal/mapstore"
	"github.com/couchcryptid/clima-scope/internal/observability"
	"github.com/couchcryptid/clima-scope/internal/pipeline"
	"github.com/couchcryptid/clima-scope/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open report store", "error", err)
		os.Exit(1)
	}

	maps, err := mapstore.Open(ctx, mapstore.Options{
		Driver: mapstore.Driver(cfg.MapStoreDriver),
		Root:   cfg.MapStoreRoot,
		S3: mapstore.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
		},
	}, logger)
	if err != nil {
		logger.Error("failed to open map store", "error", err)
		os.Exit(1)
	}

	// Collaborator services are optional; built-in fallbacks keep the
	// pipeline fully functional without them.
	var narratives domain.NarrativeGenerator
	if cfg.NarrativeURL != "" {
		narratives = narrative.NewClient(cfg.NarrativeURL, cfg.NarrativeTimeout, logger)
		logger.Info("narrative service enabled", "url", cfg.NarrativeURL, "timeout", cfg.NarrativeTimeout)
	} else {
		narratives = narrative.NewTemplateGenerator()
		logger.Info("narrative service not configured, using templates")
	}

	var docs domain.DocumentRenderer
	if cfg.RendererURL != "" {
		docs = renderer.NewClient(cfg.RendererURL, cfg.RendererTimeout, logger)
		logger.Info("renderer service enabled", "url", cfg.RendererURL, "timeout", cfg.RendererTimeout)
	} else {
		local, err := renderer.NewLocal(cfg.RendererOutputDir, logger)
		if err != nil {
			logger.Error("failed to create local renderer", "error", err)
			os.Exit(1)
		}
		docs = local
		logger.Info("renderer service not configured, rendering locally", "output_dir", cfg.RendererOutputDir)
	}

	var events domain.EventPublisher
	var publisher *kafkaadapter.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		events = publisher
		logger.Info("event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("event publishing disabled")
	}

	orch := pipeline.New(db, db, maps, narratives, docs, events, logger, metrics)

	srv := httpapi.NewServer(cfg.HTTPAddr, orch, maps, db, logger, metrics, cfg.MaxUploadBytes)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("report store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
