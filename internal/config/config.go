package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	IdentityRateLimit  int      `mapstructure:"IDENTITY_RATE_LIMIT"`
	IdentityRateWindow string   `mapstructure:"IDENTITY_RATE_WINDOW"`
	NotifyEmails       []string `mapstructure:"NOTIFY_EMAILS"`
	NotifyPhones       []string `mapstructure:"NOTIFY_PHONES"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("IDENTITY_RATE_LIMIT", 30)
	v.SetDefault("IDENTITY_RATE_WINDOW", "1m")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("IDENTITY_RATE_LIMIT")
	v.BindEnv("IDENTITY_RATE_WINDOW")
	v.BindEnv("NOTIFY_EMAILS")
	v.BindEnv("NOTIFY_PHONES")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitCSV(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.NotifyEmails = splitCSV(cfg.NotifyEmails, v.GetString("NOTIFY_EMAILS"))
	cfg.NotifyPhones = splitCSV(cfg.NotifyPhones, v.GetString("NOTIFY_PHONES"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

// splitCSV fills in slice values that Unmarshal left nil because the env var
// arrived as a comma-separated string.
func splitCSV(parsed []string, raw string) []string {
	if parsed != nil || raw == "" {
		return parsed
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RateWindow parses IDENTITY_RATE_WINDOW, falling back to one minute.
func (c *Config) RateWindow() time.Duration {
	d, err := time.ParseDuration(c.IdentityRateWindow)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.IdentityRateLimit <= 0 {
		return fmt.Errorf("IDENTITY_RATE_LIMIT must be positive, got %d", c.IdentityRateLimit)
	}
	if _, err := time.ParseDuration(c.IdentityRateWindow); err != nil {
		return fmt.Errorf("IDENTITY_RATE_WINDOW is not a valid duration: %w", err)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
