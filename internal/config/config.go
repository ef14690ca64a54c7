package config

import (
	"errors"
	"fmt"
	"time"
)

// PlaceholderJWTSecret is the shipped jwt_secret. Tokens signed with it are forgeable.
const PlaceholderJWTSecret = "change-me-in-production"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// AllowedOrigins are host patterns accepted on the WebSocket upgrade.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	MaxMessageBytes     int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MaxMessageLength    int   `mapstructure:"max_message_length" yaml:"max_message_length"`
	ClientBufferSize    int   `mapstructure:"client_buffer_size" yaml:"client_buffer_size"`
	WSMessagesPerMinute int   `mapstructure:"ws_messages_per_minute" yaml:"ws_messages_per_minute"`

	HTTPRateLimit      int           `mapstructure:"http_rate_limit" yaml:"http_rate_limit"`
	HTTPRateWindow     time.Duration `mapstructure:"http_rate_window" yaml:"http_rate_window"`
	RateLimitCacheSize int           `mapstructure:"rate_limit_cache_size" yaml:"rate_limit_cache_size"`

	DefaultPageSize int    `mapstructure:"default_page_size" yaml:"default_page_size"`
	MaxPageSize     int    `mapstructure:"max_page_size" yaml:"max_page_size"`
	DisplayTimezone string `mapstructure:"display_timezone" yaml:"display_timezone"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "squadchat.db",

		JWTSecret:   PlaceholderJWTSecret,
		JWTIssuer:   "squadchat",
		JWTAudience: "squadchat-clients",
		JWTTTL:      7 * 24 * time.Hour,

		AllowedOrigins: []string{"localhost:*", "127.0.0.1:*"},

		MaxMessageBytes:     16 * 1024,
		MaxMessageLength:    4000,
		ClientBufferSize:    64,
		WSMessagesPerMinute: 60,

		HTTPRateLimit:      100,
		HTTPRateWindow:     15 * time.Minute,
		RateLimitCacheSize: 10000,

		DefaultPageSize: 50,
		MaxPageSize:     200,
		DisplayTimezone: "UTC",
	}
}

// Location resolves DisplayTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.DisplayTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("display_timezone: %w", err)
	}
	return loc, nil
}

// UsesPlaceholderSecret reports whether jwt_secret was left at the shipped value.
func (c *Config) UsesPlaceholderSecret() bool {
	return c.JWTSecret == PlaceholderJWTSecret
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must be set"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path must be set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_secret must be set"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("jwt_ttl must be positive"))
	}
	if c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("max_message_length must be positive"))
	}
	if c.MaxMessageBytes < int64(c.MaxMessageLength) {
		errs = append(errs, errors.New("max_message_bytes must be at least max_message_length"))
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize <= 0 {
		errs = append(errs, errors.New("page sizes must be positive"))
	} else if c.DefaultPageSize > c.MaxPageSize {
		errs = append(errs, errors.New("default_page_size must not exceed max_page_size"))
	}
	if c.HTTPRateLimit < 0 || c.WSMessagesPerMinute < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.HTTPRateLimit > 0 && c.HTTPRateWindow <= 0 {
		errs = append(errs, errors.New("http_rate_window must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
