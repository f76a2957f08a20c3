package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DBPath string

	// Map store backend selection.
	MapStoreDriver string
	MapStoreRoot   string
	S3Endpoint     string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool

	// Kafka lifecycle events. Empty brokers disables publishing.
	KafkaBrokers     []string
	KafkaEventsTopic string

	// Narrative generation service. Empty URL falls back to templates.
	NarrativeURL     string
	NarrativeTimeout time.Duration

	// Document rendering service. Empty URL falls back to local rendering.
	RendererURL       string
	RendererTimeout   time.Duration
	RendererOutputDir string

	MaxUploadBytes int64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	narrativeTimeout, err := parseDuration("NARRATIVE_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	rendererTimeout, err := parseDuration("RENDERER_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	maxUploadBytes, err := parseMaxUploadBytes()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBPath: envOrDefault("DB_PATH", "clima-scope.db"),

		MapStoreDriver: envOrDefault("MAP_STORE_DRIVER", "fs"),
		MapStoreRoot:   envOrDefault("MAP_STORE_ROOT", "data/maps"),
		S3Endpoint:     os.Getenv("S3_ENDPOINT"),
		S3Bucket:       envOrDefault("S3_BUCKET", "clima-scope-maps"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),
		S3UseSSL:       os.Getenv("S3_USE_SSL") == "true",

		KafkaBrokers:     parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaEventsTopic: envOrDefault("KAFKA_EVENTS_TOPIC", "report-pipeline-events"),

		NarrativeURL:     os.Getenv("NARRATIVE_URL"),
		NarrativeTimeout: narrativeTimeout,

		RendererURL:       os.Getenv("RENDERER_URL"),
		RendererTimeout:   rendererTimeout,
		RendererOutputDir: envOrDefault("RENDERER_OUTPUT_DIR", "data/reports"),

		MaxUploadBytes: maxUploadBytes,
	}

	switch cfg.MapStoreDriver {
	case "fs":
		if cfg.MapStoreRoot == "" {
			return nil, errors.New("MAP_STORE_ROOT is required when MAP_STORE_DRIVER is fs")
		}
	case "s3":
		if cfg.S3Endpoint == "" {
			return nil, errors.New("S3_ENDPOINT is required when MAP_STORE_DRIVER is s3")
		}
		if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return nil, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY are required when MAP_STORE_DRIVER is s3")
		}
	default:
		return nil, fmt.Errorf("invalid MAP_STORE_DRIVER %q (want fs or s3)", cfg.MapStoreDriver)
	}

	if cfg.DBPath == "" {
		return nil, errors.New("DB_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseMaxUploadBytes() (int64, error) {
	s := os.Getenv("MAX_UPLOAD_BYTES")
	if s == "" {
		return 10 << 20, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid MAX_UPLOAD_BYTES")
	}
	return n, nil
}
