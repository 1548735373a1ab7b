package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Yaml file", func(t *testing.T) {
		// Given: a config file that overrides a few values
		path := filepath.Join(t.TempDir(), "config.yml")
		content := []byte("http-port: \"8080\"\nmatch:\n  min-size: 11\n  max-size: 19\nrematch:\n  ttl: \"30s\"\n")
		require.NoError(t, os.WriteFile(path, content, 0o600))

		// When: the config is loaded
		conf, err := Load(path)

		// Then: file values win and the rest are defaults
		require.NoError(t, err)
		assert.Equal(t, "8080", conf.HTTPPort)
		assert.Equal(t, 11, conf.Match.MinSize)
		assert.Equal(t, 30*time.Second, conf.Rematch.TTL)
		assert.Equal(t, DriverSQLite, conf.Database.Driver)
		assert.Equal(t, BrokerLocal, conf.Broker.Kind)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
	})

	t.Run("Missing file falls back to environment", func(t *testing.T) {
		// Given: no config file and an environment override
		t.Setenv("CACHE_KIND", CacheRedis)

		// When: the config is loaded
		conf, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

		// Then: defaults and the override are applied
		require.NoError(t, err)
		assert.Equal(t, CacheRedis, conf.Cache.Kind)
		assert.Equal(t, 3, conf.Match.MinSize)
		assert.Equal(t, 19, conf.Match.MaxSize)
		assert.Equal(t, 10*time.Minute, conf.Rematch.TTL)
		assert.Equal(t, time.Minute, conf.Rematch.SweepInterval)
	})

	t.Run("Unknown broker", func(t *testing.T) {
		// Given: an unsupported broker kind
		t.Setenv("BROKER_KIND", "kafka")

		// When: the config is loaded
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

		// Then: validation fails
		require.ErrorIs(t, err, ErrInvalidConfig)
	})
}
