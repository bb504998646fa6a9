package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)

	t.Setenv("PORT", "9000")
	cfg, err = loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr)

	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err = loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)

	t.Setenv("PORT", "not a port")
	_, err = loadServerConfig()
	assert.Error(t, err)
}

func TestLoadConnConfig(t *testing.T) {
	t.Setenv("IRC_MAX_RECONNECT_ATTEMPTS", "7")
	t.Setenv("IRC_MESSAGE_RATE", "1.5")
	t.Setenv("IRC_PING_INTERVAL_SECONDS", "90")

	cfg, err := loadConnConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, 1.5, cfg.MessageRate)
	assert.Equal(t, 90*time.Second, cfg.PingInterval)

	t.Setenv("IRC_MESSAGE_RATE", "fast")
	_, err = loadConnConfig()
	assert.Error(t, err)
}

func TestAssistantEnabled(t *testing.T) {
	assert.False(t, AssistantConfig{}.Enabled())
	assert.False(t, AssistantConfig{APIKey: "k"}.Enabled())
	assert.True(t, AssistantConfig{APIKey: "k", Model: "m"}.Enabled())
	assert.True(t, AssistantConfig{AccessKey: "a", SecretKey: "s", Model: "m"}.Enabled())
}

func TestLoadStoreConfigOverrides(t *testing.T) {
	t.Setenv("DEADHOP_DATA_DIR", "/tmp/dh")
	cfg, err := loadStoreConfig()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dh/servers.json", cfg.ProfilesPath)
	assert.Equal(t, "/tmp/dh/history.db", cfg.HistoryPath)

	t.Setenv("DEADHOP_PROFILES", "/etc/deadhop/servers.json")
	cfg, err = loadStoreConfig()
	require.NoError(t, err)
	assert.Equal(t, "/etc/deadhop/servers.json", cfg.ProfilesPath)
}
