package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOUSEHEALTH_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Storage.IdempotencyRetention)
	assert.Equal(t, "jwt", cfg.Auth.Mode)
	assert.Equal(t, 30*time.Second, cfg.Auth.ClockSkew)
	assert.Empty(t, cfg.AdminEmails)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HOUSEHEALTH_SERVER_ADDR", ":7000")
	t.Setenv("HOUSEHEALTH_SERVER_LOG_LEVEL", "DEBUG")
	t.Setenv("HOUSEHEALTH_SERVER_LOG_FORMAT", "text")
	t.Setenv("HOUSEHEALTH_STORAGE_BACKEND", "sqlite")
	t.Setenv("HOUSEHEALTH_STORAGE_SQLITE_PATH", "/tmp/hh.db")
	t.Setenv("HOUSEHEALTH_AUTH_MODE", "dev")
	t.Setenv("HOUSEHEALTH_AUTH_CLOCK_SKEW", "5s")
	t.Setenv("HOUSEHEALTH_ADMIN_EMAILS", "root@example.com, ops@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "text", cfg.Server.LogFormat)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/hh.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "dev", cfg.Auth.Mode)
	assert.Equal(t, 5*time.Second, cfg.Auth.ClockSkew)
	assert.Equal(t, []string{"root@example.com", "ops@example.com"}, cfg.AdminEmails)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":6000"
storage:
  backend: postgres
  database_url: postgres://hh:hh@localhost:5432/hh
auth:
  jwt_secret: "`+testSecret+`"
admin_emails:
  - admin@example.com
`), 0o600))
	t.Setenv(EnvConfigFile, path)
	t.Setenv("HOUSEHEALTH_SERVER_ADDR", ":6001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":6001", cfg.Server.Addr, "env wins over file")
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://hh:hh@localhost:5432/hh", cfg.Storage.DatabaseURL)
	assert.Equal(t, []string{"admin@example.com"}, cfg.AdminEmails)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing jwt secret", env: map[string]string{}},
		{name: "short jwt secret", env: map[string]string{"HOUSEHEALTH_AUTH_JWT_SECRET": "short"}},
		{name: "unknown backend", env: map[string]string{"HOUSEHEALTH_AUTH_MODE": "dev", "HOUSEHEALTH_STORAGE_BACKEND": "mongo"}},
		{name: "postgres without url", env: map[string]string{"HOUSEHEALTH_AUTH_MODE": "dev", "HOUSEHEALTH_STORAGE_BACKEND": "postgres"}},
		{name: "bad log level", env: map[string]string{"HOUSEHEALTH_AUTH_MODE": "dev", "HOUSEHEALTH_SERVER_LOG_LEVEL": "loud"}},
		{name: "bad admin email", env: map[string]string{"HOUSEHEALTH_AUTH_MODE": "dev", "HOUSEHEALTH_ADMIN_EMAILS": "not-an-email"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}
