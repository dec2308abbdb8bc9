package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ConfigYAML(t *testing.T) {
	path := filepath.Join("..", "..", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Database.Host)
	assert.NotZero(t, cfg.RabbitMQ.Port)
	assert.NotEmpty(t, cfg.POS.RestaurantID)
	assert.Equal(t, 5*time.Second, cfg.POS.SettleWindow)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
pos:
  restaurant_id: r1
  store: memory
  feed: none
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.POS.SettleWindow)
	assert.Equal(t, 30*time.Second, cfg.POS.LeaseTTL)
	assert.Equal(t, "migrations", cfg.POS.Migrations)
	assert.False(t, cfg.MessagingEnabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db
  port: 5432
  database: pos
pos:
  restaurant_id: r1
`)
	t.Setenv("POS_DB_HOST", "db.internal")
	t.Setenv("POS_DB_PORT", "6543")
	t.Setenv("POS_RESTAURANT_ID", "r2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "r2", cfg.POS.RestaurantID)
	assert.Equal(t, "postgres://:@db.internal:6543/pos?sslmode=disable", cfg.DatabaseURL())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing restaurant", body: "pos:\n  store: memory\n  feed: none\n"},
		{name: "unknown store", body: "pos:\n  restaurant_id: r1\n  store: sqlite\n  feed: none\n"},
		{name: "postgres feed on memory store", body: "pos:\n  restaurant_id: r1\n  store: memory\n  feed: postgres\n"},
		{name: "rabbitmq feed without broker", body: "pos:\n  restaurant_id: r1\n  store: memory\n  feed: rabbitmq\n"},
		{name: "bad yaml", body: "pos: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadEnvInt(t *testing.T) {
	path := writeConfig(t, "pos:\n  restaurant_id: r1\n  store: memory\n  feed: none\n")
	t.Setenv("POS_REDIS_DB", "zero")

	_, err := Load(path)
	assert.Error(t, err)
}
