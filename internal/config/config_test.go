package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vidcast?sslmode=disable")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("SESSION_MAX_PER_USER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.MaxSessions)
	assert.Equal(t, time.Hour, cfg.SweepInterval)
	assert.Equal(t, 5*time.Second, cfg.LDAPTimeout)
	assert.Equal(t, 5*time.Second, cfg.DeviceTimeout)
	assert.Equal(t, "local", cfg.StorageBackend)
}

func TestLoadCollectsProblems(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_TTL", "forever")
	t.Setenv("STORAGE_BACKEND", "floppy")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")
	assert.Contains(t, err.Error(), "SESSION_TTL")
	assert.Contains(t, err.Error(), "floppy")
}

func TestSpacesBackendNeedsCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/vidcast")
	t.Setenv("STORAGE_BACKEND", "spaces")
	t.Setenv("SPACES_ENDPOINT", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SPACES_ENDPOINT")
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{JWTSecret: "short"}
	assert.Error(t, cfg.ValidateServer())

	cfg.JWTSecret = "a-long-enough-signing-secret"
	assert.NoError(t, cfg.ValidateServer())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}
