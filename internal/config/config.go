// Package config defines the configuration for the curvedesk service.
// Fields are populated from an optional TOML file and then overridden by
// CURVEDESK_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Redis       RedisConfig       `toml:"redis"`
	NATS        NATSConfig        `toml:"nats"`
	Provider    ProviderConfig    `toml:"provider"`
	Idempotency IdempotencyConfig `toml:"idempotency"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
}

// ServerConfig holds HTTP listener parameters.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	CORSOrigin  string `toml:"cors_origin"`
	ReadTimeout int    `toml:"read_header_timeout_sec"`
}

// RedisConfig holds redis connection parameters. An empty Addr disables
// redis-backed features (rate limiting, curve cache).
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// NATSConfig holds the event bus URL. Empty disables publishing.
type NATSConfig struct {
	URL     string `toml:"url"`
	Subject string `toml:"subject"`
}

// ProviderConfig holds external yield data provider parameters.
type ProviderConfig struct {
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	RefreshMin int    `toml:"refresh_minutes"`
}

// IdempotencyConfig tunes key retention.
type IdempotencyConfig struct {
	TTLHours     int `toml:"ttl_hours"`
	SweepMinutes int `toml:"sweep_minutes"`
}

// RateLimitConfig tunes the read and write token buckets.
type RateLimitConfig struct {
	ReadRPS    float64 `toml:"read_rps"`
	ReadBurst  float64 `toml:"read_burst"`
	WriteRPS   float64 `toml:"write_rps"`
	WriteBurst float64 `toml:"write_burst"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Server:      ServerConfig{Addr: ":8080", ReadTimeout: 5},
		NATS:        NATSConfig{Subject: "curvedesk.orders"},
		Provider:    ProviderConfig{RefreshMin: 60},
		Idempotency: IdempotencyConfig{TTLHours: 24, SweepMinutes: 60},
		RateLimit:   RateLimitConfig{ReadRPS: 50, ReadBurst: 100, WriteRPS: 10, WriteBurst: 20},
	}
}

// Load reads the TOML file at path when it exists, merges it on top of the
// defaults, loads a .env file if present, and applies CURVEDESK_* overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("decode config: %w", err)
			}
		}
	}

	_ = godotenv.Load()
	applyEnvOverrides(&cfg)

	return cfg, nil
}

// IdempotencyTTL returns the key retention window.
func (c Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.Idempotency.TTLHours) * time.Hour
}

// SweepInterval returns the sweeper cadence.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Idempotency.SweepMinutes) * time.Minute
}

// RefreshInterval returns how long a fetched curve stays fresh.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Provider.RefreshMin) * time.Minute
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Server.Addr, "CURVEDESK_HTTP_ADDR")
	setStr(&cfg.Server.CORSOrigin, "CURVEDESK_CORS_ORIGIN")

	setStr(&cfg.Redis.Addr, "CURVEDESK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CURVEDESK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CURVEDESK_REDIS_DB")

	setStr(&cfg.NATS.URL, "CURVEDESK_NATS_URL")
	setStr(&cfg.NATS.Subject, "CURVEDESK_NATS_SUBJECT")

	setStr(&cfg.Provider.BaseURL, "CURVEDESK_PROVIDER_BASE_URL")
	setStr(&cfg.Provider.APIKey, "CURVEDESK_PROVIDER_API_KEY")
	setStr(&cfg.Provider.APIKey, "FRED_API_KEY") // compatibility alias
	setInt(&cfg.Provider.RefreshMin, "CURVEDESK_PROVIDER_REFRESH_MINUTES")

	setInt(&cfg.Idempotency.TTLHours, "CURVEDESK_IDEMPOTENCY_TTL_HOURS")
	setInt(&cfg.Idempotency.SweepMinutes, "CURVEDESK_IDEMPOTENCY_SWEEP_MINUTES")

	setFloat64(&cfg.RateLimit.ReadRPS, "CURVEDESK_RATE_READ_RPS")
	setFloat64(&cfg.RateLimit.ReadBurst, "CURVEDESK_RATE_READ_BURST")
	setFloat64(&cfg.RateLimit.WriteRPS, "CURVEDESK_RATE_WRITE_RPS")
	setFloat64(&cfg.RateLimit.WriteBurst, "CURVEDESK_RATE_WRITE_BURST")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = parsed
		}
	}
}
