package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 15*time.Second, cfg.Server.KeepAlive())
	assert.Equal(t, 10*time.Minute, cfg.Session.IdleTTL())
	assert.Equal(t, 2*time.Minute, cfg.Session.AttachTimeout())
	assert.Equal(t, "https://www.googleapis.com/customsearch/v1", cfg.Google.BaseURL)
	assert.Empty(t, cfg.Google.APIKeys)
	assert.Equal(t, "https://r.jina.ai", cfg.Jina.BaseURL)
	assert.Equal(t, "https://api.apollo.io/api/v1", cfg.Apollo.BaseURL)
	assert.Equal(t, "https://api.hunter.io/v2", cfg.Hunter.BaseURL)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "heuristic", cfg.Profile.Parser)
	assert.True(t, cfg.Profile.SnippetFallback)
	assert.Equal(t, 5, cfg.Email.BreakerThreshold)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.InDelta(t, 0.2, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.False(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.LookupReady())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/contacts
log:
  level: debug
  format: console
server:
  port: 9090
google:
  api_keys: [k1, k2]
  cx: engine
profile:
  parser: llm
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Google.APIKeys)
	assert.Equal(t, "engine", cfg.Google.CX)
	assert.Equal(t, "llm", cfg.Profile.Parser)
	assert.True(t, cfg.LookupReady())
	// Defaults still apply for unset values
	assert.Equal(t, 5, cfg.Email.BreakerThreshold)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	t.Setenv("CONTACT_SERVER_PORT", "7070")
	t.Setenv("CONTACT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadLegacyEnvNames(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOOGLE_API_KEYS", " key-a, key-b ,,")
	t.Setenv("GOOGLE_CX_ID", "cx-1")
	t.Setenv("APOLLO_API_KEY", "apollo-key")
	t.Setenv("HUNTER_API_KEY", "hunter-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Google.APIKeys)
	assert.Equal(t, "cx-1", cfg.Google.CX)
	assert.Equal(t, "apollo-key", cfg.Apollo.Key)
	assert.Equal(t, "hunter-key", cfg.Hunter.Key)
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOOGLE_CX_ID", "legacy")
	t.Setenv("CONTACT_GOOGLE_CX", "prefixed")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.Google.CX)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestSplitKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitKeys([]string{"a,b", " c "}))
	assert.Nil(t, splitKeys([]string{"", " , "}))
}

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 5000},
		Google:  GoogleConfig{APIKeys: []string{"k"}, CX: "cx"},
		Profile: ProfileConfig{Parser: "heuristic"},
		Store:   StoreConfig{Driver: "sqlite"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "valid serve", mode: "serve"},
		{name: "valid find", mode: "find"},
		{
			name:   "serve starts without google",
			mode:   "serve",
			mutate: func(c *Config) { c.Google = GoogleConfig{} },
		},
		{
			name:    "missing google",
			mode:    "find",
			mutate:  func(c *Config) { c.Google = GoogleConfig{} },
			wantErr: []string{"google.api_keys is required", "google.cx is required"},
		},
		{
			name:   "sessions needs no google",
			mode:   "sessions",
			mutate: func(c *Config) { c.Google = GoogleConfig{} },
		},
		{
			name:    "llm needs anthropic key",
			mode:    "find",
			mutate:  func(c *Config) { c.Profile.Parser = "llm" },
			wantErr: []string{"anthropic.key is required"},
		},
		{
			name:    "unknown parser",
			mode:    "find",
			mutate:  func(c *Config) { c.Profile.Parser = "magic" },
			wantErr: []string{"profile.parser must be heuristic or llm"},
		},
		{
			name:    "bad port",
			mode:    "serve",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: []string{"server.port must be between"},
		},
		{
			name:    "unknown driver",
			mode:    "sessions",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: []string{"store.driver must be"},
		},
		{
			name:    "postgres needs url",
			mode:    "sessions",
			mutate:  func(c *Config) { c.Store.Driver = "postgres" },
			wantErr: []string{"store.database_url is required"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate(tt.mode)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestInitLogger(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "nope"}))
}
