package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-flash-service/flashservice/config"
	"gopkg.in/yaml.v3"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:              "yaml-project",
			ListenAddr:             ":9000",
			TopicID:                "yaml-topic",
			SubscriptionID:         "yaml-subscription",
			SubscriptionDLQTopicID: "yaml-dlq",
			Store:                  "firestore",
			FlashTTL:               time.Hour,
			NumPipelineWorkers:     5,
			CorsConfig: config.YamlCorsConfig{
				AllowedOrigins: []string{"http://yaml.com"},
				Role:           "editor",
			},
			VapidConfig: config.YamlVapidConfig{
				PublicKey:       "yaml-public-key",
				PrivateKey:      "yaml-private-key",
				SubscriberEmail: "yaml@test.com",
			},
			DispatchConfig: config.YamlDispatchConfig{
				FlashDelay:          200 * time.Millisecond,
				ErrorDelay:          time.Second,
				Stagger:             50 * time.Millisecond,
				ConsolidateFallback: true,
			},
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		// 1. Direct Field Mapping
		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, "firestore", cfg.Store)
		assert.Equal(t, time.Hour, cfg.FlashTTL)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		// 2. CORS
		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		// 3. VAPID
		assert.Equal(t, "yaml-public-key", cfg.Vapid.PublicKey)
		assert.True(t, cfg.Vapid.Enabled())

		// 4. Dispatch timings
		assert.Equal(t, 200*time.Millisecond, cfg.Dispatch.FlashDelay)
		assert.Equal(t, time.Second, cfg.Dispatch.ErrorDelay)
		assert.Equal(t, 50*time.Millisecond, cfg.Dispatch.Stagger)
		assert.True(t, cfg.Dispatch.ConsolidateFallback)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.False(t, cfg.Vapid.Enabled())
		assert.Zero(t, cfg.Dispatch.Stagger)
	})

	t.Run("Success - durations parse from YAML strings", func(t *testing.T) {
		raw := []byte(`
project_id: p
subscription_id: s
flash_ttl: 12h
dispatch:
  flash_delay: 100ms
  error_delay: 500ms
  stagger: 300ms
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		assert.Equal(t, 12*time.Hour, yamlCfg.FlashTTL)
		assert.Equal(t, 100*time.Millisecond, yamlCfg.DispatchConfig.FlashDelay)
		assert.Equal(t, 500*time.Millisecond, yamlCfg.DispatchConfig.ErrorDelay)
		assert.Equal(t, 300*time.Millisecond, yamlCfg.DispatchConfig.Stagger)
	})
}
