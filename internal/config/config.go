package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Session    SessionConfig    `yaml:"session" mapstructure:"session"`
	Google     GoogleConfig     `yaml:"google" mapstructure:"google"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Apollo     ApolloConfig     `yaml:"apollo" mapstructure:"apollo"`
	Hunter     HunterConfig     `yaml:"hunter" mapstructure:"hunter"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Profile    ProfileConfig    `yaml:"profile" mapstructure:"profile"`
	Email      EmailConfig      `yaml:"email" mapstructure:"email"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	KeepAliveSecs       int      `yaml:"keepalive_secs" mapstructure:"keepalive_secs"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// SessionConfig configures session lifetime.
type SessionConfig struct {
	IdleTTLMins         int `yaml:"idle_ttl_mins" mapstructure:"idle_ttl_mins"`
	AttachTimeoutSecs   int `yaml:"attach_timeout_secs" mapstructure:"attach_timeout_secs"`
	JanitorIntervalSecs int `yaml:"janitor_interval_secs" mapstructure:"janitor_interval_secs"`
}

// GoogleConfig configures the Custom Search lookup.
type GoogleConfig struct {
	APIKeys       []string `yaml:"api_keys" mapstructure:"api_keys"`
	CX            string   `yaml:"cx" mapstructure:"cx"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec    float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst         int      `yaml:"burst" mapstructure:"burst"`
	CacheTTLHours int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// JinaConfig holds Jina AI Reader settings. An empty key uses the anonymous tier.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ApolloConfig holds Apollo People Enrichment settings.
type ApolloConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// HunterConfig holds Hunter email finder settings.
type HunterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	HaikuModel string `yaml:"haiku_model" mapstructure:"haiku_model"`
	MaxTokens  int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ProfileConfig configures profile extraction.
type ProfileConfig struct {
	// Parser is "heuristic" or "llm".
	Parser          string `yaml:"parser" mapstructure:"parser"`
	SnippetFallback bool   `yaml:"snippet_fallback" mapstructure:"snippet_fallback"`
	CacheTTLHours   int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// EmailConfig configures the email resolver's circuit breakers.
type EmailConfig struct {
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RetryConfig configures retries of external calls.
type RetryConfig struct {
	Attempts    int `yaml:"attempts" mapstructure:"attempts"`
	BaseDelayMs int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
}

// MonitoringConfig configures session health alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinEmailHitRate      float64 `yaml:"min_email_hit_rate" mapstructure:"min_email_hit_rate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// KeepAlive returns the SSE keep-alive interval.
func (c ServerConfig) KeepAlive() time.Duration {
	return time.Duration(c.KeepAliveSecs) * time.Second
}

// IdleTTL returns how long finished sessions stay in memory.
func (c SessionConfig) IdleTTL() time.Duration {
	return time.Duration(c.IdleTTLMins) * time.Minute
}

// AttachTimeout returns how long a session waits for its first consumer.
func (c SessionConfig) AttachTimeout() time.Duration {
	return time.Duration(c.AttachTimeoutSecs) * time.Second
}

// Load reads configuration from config.yaml, environment variables and
// defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("google.api_keys", "CONTACT_GOOGLE_API_KEYS", "GOOGLE_API_KEYS")
	_ = v.BindEnv("google.cx", "CONTACT_GOOGLE_CX", "GOOGLE_CX_ID")
	_ = v.BindEnv("apollo.key", "CONTACT_APOLLO_KEY", "APOLLO_API_KEY")
	_ = v.BindEnv("hunter.key", "CONTACT_HUNTER_KEY", "HUNTER_API_KEY")
	_ = v.BindEnv("anthropic.key", "CONTACT_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("jina.key", "CONTACT_JINA_KEY", "JINA_API_KEY")

	// Defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.keepalive_secs", 15)
	v.SetDefault("server.shutdown_timeout_secs", 30)
	v.SetDefault("session.idle_ttl_mins", 10)
	v.SetDefault("session.attach_timeout_secs", 120)
	v.SetDefault("session.janitor_interval_secs", 60)
	v.SetDefault("google.api_keys", []string{})
	v.SetDefault("google.base_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("google.rate_per_sec", 1.0)
	v.SetDefault("google.burst", 2)
	v.SetDefault("google.cache_ttl_hours", 168)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("apollo.base_url", "https://api.apollo.io/api/v1")
	v.SetDefault("hunter.base_url", "https://api.hunter.io/v2")
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("profile.parser", "heuristic")
	v.SetDefault("profile.snippet_fallback", true)
	v.SetDefault("profile.cache_ttl_hours", 168)
	v.SetDefault("email.breaker_threshold", 5)
	v.SetDefault("email.breaker_cooldown_secs", 60)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contact-finder.db")
	v.SetDefault("store.max_conns", 5)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 10000)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.min_email_hit_rate", 0.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	cfg.Google.APIKeys = splitKeys(cfg.Google.APIKeys)
	return &cfg, nil
}

// splitKeys flattens comma separated entries and drops blanks.
func splitKeys(in []string) []string {
	var out []string
	for _, entry := range in {
		for _, k := range strings.Split(entry, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	// serve starts without lookup credentials and rejects searches with 503.
	if mode == "find" {
		if len(c.Google.APIKeys) == 0 {
			errs = append(errs, "google.api_keys is required")
		}
		if c.Google.CX == "" {
			errs = append(errs, "google.cx is required")
		}
	}

	switch mode {
	case "serve", "find":
		if c.Profile.Parser == "llm" && c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required when profile.parser is llm")
		}
		if c.Profile.Parser != "heuristic" && c.Profile.Parser != "llm" {
			errs = append(errs, "profile.parser must be heuristic or llm")
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, "store.driver must be sqlite, postgres or none")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// LookupReady reports whether the search provider is configured.
func (c *Config) LookupReady() bool {
	return len(c.Google.APIKeys) > 0 && c.Google.CX != ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}
