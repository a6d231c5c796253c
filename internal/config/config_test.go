package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/seatkeeper")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.TrustProxyHeaders, "proxy headers are ignored unless enabled")
	assert.False(t, cfg.AdminAuthEnabled())
}

func TestLoadConfig_TrustProxyHeaders(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestLoadConfig_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "postgres")

	_, err := LoadConfig()

	assert.EqualError(t, err, "DATABASE_URL is required")
}

func TestLoadConfig_MemoryDriver(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, "9090", cfg.ServerPort)
}

func TestLoadConfig_JWTSecretRequiresPasswordHash(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "")

	_, err := LoadConfig()

	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_EXPIRY", "tomorrow")

	_, err := LoadConfig()

	assert.Error(t, err)
}

func TestLoadConfig_UnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := LoadConfig()

	assert.Error(t, err)
}
