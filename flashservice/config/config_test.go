package config_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-flash-service/flashservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ProjectID:          "base-project",
			ListenAddr:         ":8080",
			SubscriptionID:     "base-sub",
			NumPipelineWorkers: 2,
			Store:              config.StoreRedis,
			Redis:              config.RedisConfig{Addr: "localhost:6379"},
			Vapid: config.VapidConfig{
				PublicKey:  "base-pub",
				PrivateKey: "base-priv",
			},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("FLASH_STORE", "Firestore")
		t.Setenv("FLASH_TTL", "2h")
		t.Setenv("VAPID_PUBLIC_KEY", "env-pub")
		t.Setenv("VAPID_PRIVATE_KEY", "env-priv")
		t.Setenv("VAPID_SUB_EMAIL", "env@test.com")
		t.Setenv("FLASH_DELAY", "50ms")
		t.Setenv("ERROR_DELAY", "1s")
		t.Setenv("FLASH_STAGGER", "250ms")
		t.Setenv("CONSOLIDATE_FALLBACK", "true")
		t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, config.StoreFirestore, finalCfg.Store)
		assert.Equal(t, 2*time.Hour, finalCfg.FlashTTL)

		assert.Equal(t, "env-pub", finalCfg.Vapid.PublicKey)
		assert.Equal(t, "env-priv", finalCfg.Vapid.PrivateKey)
		assert.Equal(t, "env@test.com", finalCfg.Vapid.SubscriberEmail)

		assert.Equal(t, 50*time.Millisecond, finalCfg.Dispatch.FlashDelay)
		assert.Equal(t, time.Second, finalCfg.Dispatch.ErrorDelay)
		assert.Equal(t, 250*time.Millisecond, finalCfg.Dispatch.Stagger)
		assert.True(t, finalCfg.Dispatch.ConsolidateFallback)

		assert.Equal(t, []string{"https://a.example", "https://b.example"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults applied", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ListenAddr = ""
		cfg.NumPipelineWorkers = 0

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, ":8080", finalCfg.ListenAddr)
		assert.Equal(t, 1, finalCfg.NumPipelineWorkers)
		assert.Equal(t, 24*time.Hour, finalCfg.FlashTTL)
		assert.Equal(t, 100*time.Millisecond, finalCfg.Dispatch.FlashDelay)
		assert.Equal(t, 500*time.Millisecond, finalCfg.Dispatch.ErrorDelay)
		assert.Equal(t, 300*time.Millisecond, finalCfg.Dispatch.Stagger)
		assert.False(t, finalCfg.Dispatch.ConsolidateFallback)
		assert.NotNil(t, finalCfg.PubsubConsumerConfig)
	})

	t.Run("Validation Failure - Missing ProjectID", func(t *testing.T) {
		t.Setenv("PROJECT_ID", "")
		cfg := &config.Config{SubscriptionID: "sub"}
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Redis store without address", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Redis.Addr = ""
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "redis.addr")
	})

	t.Run("Validation Failure - Unknown store", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Store = "memcached"
		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorContains(t, err, "unknown flash store")
	})

	t.Run("Validation Failure - Bad duration", func(t *testing.T) {
		t.Setenv("FLASH_STAGGER", "soon")
		_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		assert.ErrorContains(t, err, "FLASH_STAGGER")
	})
}
