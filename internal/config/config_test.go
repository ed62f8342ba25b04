package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rostercal/internal/config"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8099", cfg.Listen)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, "primary", cfg.Calendar.ID)

	// The default file was materialized with owner-only permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Listen = "0.0.0.0:9000"
	cfg.Portal.URL = "https://crew.example.com/login"
	cfg.Portal.Username = "p12345"
	cfg.Sync.Cron = "0 5 * * *"
	cfg.BasicAuth = &config.BasicAuthConfig{
		Username:     "crew",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
	}
	require.NoError(t, cfg.Save(path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, loaded.Listen)
	assert.Equal(t, cfg.Portal.URL, loaded.Portal.URL)
	assert.Equal(t, cfg.Sync.Cron, loaded.Sync.Cron)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "crew", loaded.BasicAuth.Username)
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	cfg := &config.Config{}
	cfg.Normalize()

	assert.Equal(t, "127.0.0.1:8099", cfg.Listen)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.Equal(t, 120, cfg.Portal.TimeoutSec)
	assert.Equal(t, []int{90}, cfg.Sync.ReminderMinutes)
	assert.NotEmpty(t, cfg.Sync.FlightPattern)
	assert.Equal(t, 60, cfg.Sync.JobTTLMinutes)
	assert.Nil(t, cfg.BasicAuth, "auth stays off unless configured")
}

func TestNormalizeKeepsExplicitValues(t *testing.T) {
	cfg := &config.Config{Listen: ":8080", Timezone: "Europe/Berlin"}
	cfg.Sync.ReminderMinutes = []int{}
	cfg.Normalize()

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	// An explicit empty list means "no reminders", not "use defaults".
	assert.Empty(t, cfg.Sync.ReminderMinutes)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}
