package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-flash-service/internal/dispatcher"
)

// Flash store backends.
const (
	StoreRedis     = "redis"
	StoreFirestore = "firestore"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type VapidConfig struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

// Enabled reports whether web push can be offered to pages.
func (v VapidConfig) Enabled() bool {
	return v.PublicKey != "" && v.PrivateKey != ""
}

// DispatchConfig holds the page notification timings.
type DispatchConfig struct {
	FlashDelay          time.Duration
	ErrorDelay          time.Duration
	Stagger             time.Duration
	ConsolidateFallback bool
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	// Store selects the flash store backend: "redis" or "firestore".
	Store    string
	FlashTTL time.Duration

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Vapid      VapidConfig
	Dispatch   DispatchConfig

	TopicID              string
	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Store Overrides
	if val := os.Getenv("FLASH_STORE"); val != "" {
		logger.Debug("Overriding config value", "key", "FLASH_STORE", "source", "env")
		cfg.Store = strings.ToLower(val)
	}
	if err := durationOverride("FLASH_TTL", &cfg.FlashTTL, logger); err != nil {
		return nil, err
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}

	// VAPID Overrides
	if val := os.Getenv("VAPID_PUBLIC_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PUBLIC_KEY", "source", "env")
		cfg.Vapid.PublicKey = val
	}
	if val := os.Getenv("VAPID_PRIVATE_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_PRIVATE_KEY", "source", "env")
		cfg.Vapid.PrivateKey = val
	}
	if val := os.Getenv("VAPID_SUB_EMAIL"); val != "" {
		logger.Debug("Overriding config value", "key", "VAPID_SUB_EMAIL", "source", "env")
		cfg.Vapid.SubscriberEmail = val
	}

	// Dispatch Overrides
	if err := durationOverride("FLASH_DELAY", &cfg.Dispatch.FlashDelay, logger); err != nil {
		return nil, err
	}
	if err := durationOverride("ERROR_DELAY", &cfg.Dispatch.ErrorDelay, logger); err != nil {
		return nil, err
	}
	if err := durationOverride("FLASH_STAGGER", &cfg.Dispatch.Stagger, logger); err != nil {
		return nil, err
	}
	if val := os.Getenv("CONSOLIDATE_FALLBACK"); val != "" {
		consolidate, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("invalid CONSOLIDATE_FALLBACK %q: %w", val, err)
		}
		cfg.Dispatch.ConsolidateFallback = consolidate
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Store == "" {
		cfg.Store = StoreRedis
	}
	switch cfg.Store {
	case StoreRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis.addr is required for the redis flash store (set via YAML or REDIS_ADDR env var)")
		}
	case StoreFirestore:
	default:
		return nil, fmt.Errorf("unknown flash store %q (want %q or %q)", cfg.Store, StoreRedis, StoreFirestore)
	}
	if cfg.FlashTTL <= 0 {
		cfg.FlashTTL = 24 * time.Hour
	}
	if cfg.Dispatch.FlashDelay <= 0 {
		cfg.Dispatch.FlashDelay = dispatcher.DefaultFlashDelay
	}
	if cfg.Dispatch.ErrorDelay <= 0 {
		cfg.Dispatch.ErrorDelay = dispatcher.DefaultErrorDelay
	}
	if cfg.Dispatch.Stagger <= 0 {
		cfg.Dispatch.Stagger = dispatcher.DefaultStagger
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func durationOverride(key string, dst *time.Duration, logger *slog.Logger) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, val, err)
	}
	logger.Debug("Overriding config value", "key", key, "source", "env")
	*dst = d
	return nil
}
