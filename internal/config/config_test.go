package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Storage.SessionDriver)
	assert.Equal(t, "memory", cfg.Storage.PresenceDriver)
	assert.Equal(t, []string{"localhost:9042"}, cfg.Cassandra.Hosts)
	assert.Equal(t, 30*time.Minute, cfg.Cleanup.MaxAge)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "cassandra")
	t.Setenv("CASSANDRA_HOSTS", "cass-1:9042, cass-2:9042")
	t.Setenv("PRESENCE_DRIVER", "redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CLEANUP_MAX_AGE", "45m")
	t.Setenv("CATEGORIES", "apple,sun")
	t.Setenv("ADMIN_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "cassandra", cfg.Storage.SessionDriver)
	assert.Equal(t, []string{"cass-1:9042", "cass-2:9042"}, cfg.Cassandra.Hosts)
	assert.Equal(t, "redis", cfg.Storage.PresenceDriver)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, 45*time.Minute, cfg.Cleanup.MaxAge)
	assert.Equal(t, []string{"apple", "sun"}, cfg.Categories)
	assert.Equal(t, "secret", cfg.AdminAPIKey)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_DRIVER")
}

func TestParseList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a,b", []string{"a", "b"}},
		{" a , ,b ", []string{"a", "b"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseList(tt.in), "input %q", tt.in)
	}
}
