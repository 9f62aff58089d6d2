package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testConfig = `
log_level = "DEBUG"
admins = ["root@example.org"]

[auth]
client_id = "dashboard"
provider_url = "https://accounts.example.org"
timeout_millis = 2500

[persistence]
type = "sqlite"
dsn = ":memory:"

[journal]
sync_spec = "@every 1m"
comment_page_size = 50

[[filter]]
name = "failed"
expression = 'State == "Failed"'
`

func TestReadConfiguration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := ReadConfiguration(path, GetFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, []string{"root@example.org"}, cfg.Admins)
	assert.Equal(t, "dashboard", cfg.AuthConfig.ClientId)
	assert.Equal(t, 2500*time.Millisecond, cfg.AuthConfig.Timeout())
	assert.Equal(t, "sqlite", cfg.PersistenceConfig.Type)
	assert.Equal(t, "@every 1m", cfg.JournalConfig.CronSpec())
	assert.Equal(t, 50, cfg.JournalConfig.CommentPageSize)
	if assert.Len(t, cfg.FilterConfigs, 1) {
		assert.Equal(t, "failed", cfg.FilterConfigs[0].Name)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, 5*time.Second, cfg.AuthConfig.Timeout())
	assert.Equal(t, "@every 5m", cfg.JournalConfig.CronSpec())
}
