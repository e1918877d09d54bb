package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 20*time.Second, cfg.Etsy.Timeout)
	assert.Equal(t, "https://api.etsy.com/v3/public/oauth/token", cfg.Etsy.TokenURL)
	assert.Contains(t, cfg.Etsy.Scopes, "transactions_r")
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	t.Setenv("ETSY_CLIENT_ID", "legacy-key")
	t.Setenv("ETSY_REDIRECT_URI", "https://example.com/api/etsy/callback")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "legacy-key", cfg.Etsy.ClientID)
	assert.Equal(t, "https://example.com/api/etsy/callback", cfg.Etsy.RedirectURI)
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("ETSY_CLIENT_ID", "legacy-key")
	t.Setenv("BACKOFFICE_ETSY_CLIENT_ID", "new-key")
	t.Setenv("BACKOFFICE_SYNC_CONCURRENCY", "3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "new-key", cfg.Etsy.ClientID)
	assert.Equal(t, 3, cfg.Sync.Concurrency)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
env: development
server:
  port: 9090
database:
  driver: sqlite
  dsn: "file:test.db"
etsy:
  client_id: file-key
  timeout: 5s
  scopes: [listings_r]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file-key", cfg.Etsy.ClientID)
	assert.Equal(t, 5*time.Second, cfg.Etsy.Timeout)
	assert.Equal(t, []string{"listings_r"}, cfg.Etsy.Scopes)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"development defaults", func(c *Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"redis without addr", func(c *Config) { c.Session.Backend = "redis" }, true},
		{"production without client id", func(c *Config) {
			c.Env = "production"
			c.JWT.SecretKey = "s"
			c.Security.TokenEncKey = "k"
			c.Etsy.RedirectURI = "https://example.com/cb"
		}, true},
		{"production complete", func(c *Config) {
			c.Env = "production"
			c.JWT.SecretKey = "s"
			c.Security.TokenEncKey = "k"
			c.Etsy.ClientID = "id"
			c.Etsy.RedirectURI = "https://example.com/cb"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
