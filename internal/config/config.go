// Package config loads and validates application configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper. Secrets such as
// webhook URLs may come from a config file, environment variables
// (NYAA_DISCORD_WEBHOOK_URL and friends) or CLI flags; flags win.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Discord DiscordConfig `mapstructure:"discord"`
	Backup  BackupConfig  `mapstructure:"backup"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// HTTPConfig configures the fetch client's retry and politeness behavior.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	DelaySeconds   int    `mapstructure:"delay_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	CookiesPath    string `mapstructure:"cookies_path"`
}

// DiscordConfig holds the outbound webhook endpoints. SecretWebhookURL, when
// set, receives backup artifacts (download URL plus decryption key) instead
// of the public channel.
type DiscordConfig struct {
	WebhookURL       string `mapstructure:"webhook_url"`
	SecretWebhookURL string `mapstructure:"secret_webhook_url"`
}

// BackupConfig governs the encrypted snapshot upload.
type BackupConfig struct {
	// UploadURL is the anonymous file host endpoint.
	UploadURL string `mapstructure:"upload_url"`
	// Expiry is the requested retention class: 1h, 12h, 24h or 72h.
	Expiry string `mapstructure:"expiry"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const defaultUploadURL = "https://litterbox.catbox.moe/resources/internals/api.php"

var validExpiries = map[string]struct{}{
	"1h": {}, "12h": {}, "24h": {}, "72h": {},
}

// Load builds a Config from an optional config file and the environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NYAA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", false)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 10)
	v.SetDefault("http.delay_seconds", 1)
	v.SetDefault("http.user_agent", defaultUserAgent)
	v.SetDefault("backup.upload_url", defaultUploadURL)
	v.SetDefault("backup.expiry", "12h")
}

// Validate checks cross-field constraints that Viper cannot express.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be positive, got %d", c.HTTP.TimeoutSeconds)
	}
	if c.HTTP.MaxRetries <= 0 {
		return fmt.Errorf("http.max_retries must be positive, got %d", c.HTTP.MaxRetries)
	}
	if c.HTTP.DelaySeconds < 0 {
		return fmt.Errorf("http.delay_seconds must not be negative, got %d", c.HTTP.DelaySeconds)
	}
	if _, ok := validExpiries[c.Backup.Expiry]; !ok {
		return fmt.Errorf("backup.expiry must be one of 1h, 12h, 24h, 72h; got %q", c.Backup.Expiry)
	}
	return nil
}

// Timeout returns the HTTP client timeout as a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Delay returns the politeness delay enforced before every request.
func (c HTTPConfig) Delay() time.Duration {
	return time.Duration(c.DelaySeconds) * time.Second
}
