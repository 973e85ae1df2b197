package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "schemas", cfg.SchemaRoot)
	assert.Equal(t, "default", cfg.DefaultConnection)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "schemakit:", cfg.Cache.Prefix)
	assert.Equal(t, 0, cfg.Cache.TTLSeconds)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/api", cfg.Server.APIPrefix)
}

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
schema_root: /etc/schemakit/docs
default_connection: primary
debug: true
connections:
  primary:
    driver: pgx
    url: postgres://localhost/app
  analytics:
    driver: pgx
    url: postgres://localhost/analytics
cache:
  enabled: true
  addr: redis:6379
  ttl_seconds: 300
server:
  port: 8080
`))
	require.NoError(t, err)

	assert.Equal(t, "/etc/schemakit/docs", cfg.SchemaRoot)
	assert.Equal(t, "primary", cfg.DefaultConnection)
	assert.True(t, cfg.Debug)
	assert.Len(t, cfg.Connections, 2)
	assert.Equal(t, "pgx", cfg.Connections["analytics"].Driver)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 300, cfg.Cache.TTLSeconds)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadRejectsIncompleteConnection(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `
connections:
  primary:
    driver: pgx
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url must not be empty")
}

func TestLoadRejectsBadPort(t *testing.T) {
	_, err := LoadFile(writeConfig(t, `
server:
  port: 99999
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
}

func TestDatabaseURLPrefersEnvForDefault(t *testing.T) {
	cfg := &Config{
		DefaultConnection: "primary",
		Connections: map[string]ConnectionConfig{
			"primary":   {Driver: "pgx", URL: "postgres://configured/app"},
			"analytics": {Driver: "pgx", URL: "postgres://configured/analytics"},
		},
	}

	t.Setenv("SCHEMAKIT_DATABASE_URL", "postgres://env/app")

	assert.Equal(t, "postgres://env/app", cfg.DatabaseURL("primary"))
	assert.Equal(t, "postgres://env/app", cfg.DatabaseURL(""))
	// Named non-default connections keep their configured URL.
	assert.Equal(t, "postgres://configured/analytics", cfg.DatabaseURL("analytics"))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schemakit.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
