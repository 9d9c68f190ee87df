package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent portal configuration stored as config.toml
// in the .portal/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Gateway GatewayConfig `toml:"gateway"`
	Chat    ChatConfig    `toml:"chat"`
	Stream  StreamConfig  `toml:"stream"`
	Admin   AdminConfig   `toml:"admin"`
	Health  HealthConfig  `toml:"health"`
	Serve   ServeConfig   `toml:"serve"`
}

// GatewayConfig holds the connection settings for the gateway.
type GatewayConfig struct {
	// BaseURL is a full URL (scheme + host + port).
	BaseURL string `toml:"base_url,omitempty"`

	// Timeout bounds non-streaming requests, in time.ParseDuration form.
	Timeout string `toml:"timeout,omitempty"`
}

// ChatConfig holds the defaults for portal chat.
type ChatConfig struct {
	Model       string   `toml:"model,omitempty"`
	Temperature *float64 `toml:"temperature,omitempty"`
	MaxTokens   int      `toml:"max_tokens,omitempty"`
	Stream      *bool    `toml:"stream,omitempty"`

	// APIKey is a literal tenant API key.
	APIKey string `toml:"api_key,omitempty"`

	// Key names a key in the local key cache. It is used when APIKey is empty.
	Key string `toml:"key,omitempty"`
}

// StreamConfig holds stream decoding settings.
type StreamConfig struct {
	FlushOnClose bool `toml:"flush_on_close,omitempty"`
}

// AdminConfig holds the admin key list poll settings.
type AdminConfig struct {
	PollInterval    string `toml:"poll_interval,omitempty"`
	PollMaxAttempts int    `toml:"poll_max_attempts,omitempty"`
}

// HealthConfig holds the health wait settings.
type HealthConfig struct {
	PollInterval    string `toml:"poll_interval,omitempty"`
	PollMaxAttempts int    `toml:"poll_max_attempts,omitempty"`
}

// ServeConfig holds the mock gateway settings.
type ServeConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func parseDuration(key, v string) (string, error) {
	if _, err := time.ParseDuration(v); err != nil {
		return "", fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return v, nil
}

func parseInt(key, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid value for %s: must not be negative", key)
	}
	return n, nil
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"gateway.base_url": {
		get: func(c *Config) string { return c.Gateway.BaseURL },
		set: func(c *Config, v string) error { c.Gateway.BaseURL = v; return nil },
	},
	"gateway.timeout": {
		get: func(c *Config) string { return c.Gateway.Timeout },
		set: func(c *Config, v string) error {
			d, err := parseDuration("gateway.timeout", v)
			c.Gateway.Timeout = d
			return err
		},
	},
	"chat.model": {
		get: func(c *Config) string { return c.Chat.Model },
		set: func(c *Config, v string) error { c.Chat.Model = v; return nil },
	},
	"chat.temperature": {
		get: func(c *Config) string {
			if c.Chat.Temperature == nil {
				return ""
			}
			return strconv.FormatFloat(*c.Chat.Temperature, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			if v == "" {
				c.Chat.Temperature = nil
				return nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for chat.temperature: %w", err)
			}
			c.Chat.Temperature = &f
			return nil
		},
	},
	"chat.max_tokens": {
		get: func(c *Config) string { return formatInt(c.Chat.MaxTokens) },
		set: func(c *Config, v string) error {
			n, err := parseInt("chat.max_tokens", v)
			c.Chat.MaxTokens = n
			return err
		},
	},
	"chat.stream": {
		get: func(c *Config) string {
			if c.Chat.Stream == nil {
				return ""
			}
			return strconv.FormatBool(*c.Chat.Stream)
		},
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for chat.stream: %w", err)
			}
			c.Chat.Stream = &b
			return nil
		},
	},
	"chat.api_key": {
		get: func(c *Config) string { return c.Chat.APIKey },
		set: func(c *Config, v string) error { c.Chat.APIKey = v; return nil },
	},
	"chat.key": {
		get: func(c *Config) string { return c.Chat.Key },
		set: func(c *Config, v string) error { c.Chat.Key = v; return nil },
	},
	"stream.flush_on_close": {
		get: func(c *Config) string { return strconv.FormatBool(c.Stream.FlushOnClose) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for stream.flush_on_close: %w", err)
			}
			c.Stream.FlushOnClose = b
			return nil
		},
	},
	"admin.poll_interval": {
		get: func(c *Config) string { return c.Admin.PollInterval },
		set: func(c *Config, v string) error {
			d, err := parseDuration("admin.poll_interval", v)
			c.Admin.PollInterval = d
			return err
		},
	},
	"admin.poll_max_attempts": {
		get: func(c *Config) string { return formatInt(c.Admin.PollMaxAttempts) },
		set: func(c *Config, v string) error {
			n, err := parseInt("admin.poll_max_attempts", v)
			c.Admin.PollMaxAttempts = n
			return err
		},
	},
	"health.poll_interval": {
		get: func(c *Config) string { return c.Health.PollInterval },
		set: func(c *Config, v string) error {
			d, err := parseDuration("health.poll_interval", v)
			c.Health.PollInterval = d
			return err
		},
	},
	"health.poll_max_attempts": {
		get: func(c *Config) string { return formatInt(c.Health.PollMaxAttempts) },
		set: func(c *Config, v string) error {
			n, err := parseInt("health.poll_max_attempts", v)
			c.Health.PollMaxAttempts = n
			return err
		},
	},
	"serve.listen": {
		get: func(c *Config) string { return c.Serve.Listen },
		set: func(c *Config, v string) error { c.Serve.Listen = v; return nil },
	},
}

// orderedKeys is the display order of configKeys, matching the TOML layout.
var orderedKeys = []string{
	"gateway.base_url",
	"gateway.timeout",
	"chat.model",
	"chat.temperature",
	"chat.max_tokens",
	"chat.stream",
	"chat.api_key",
	"chat.key",
	"stream.flush_on_close",
	"admin.poll_interval",
	"admin.poll_max_attempts",
	"health.poll_interval",
	"health.poll_max_attempts",
	"serve.listen",
}

// secretKeys are masked by portal config list.
var secretKeys = map[string]bool{
	"chat.api_key": true,
}

// IsSecretKey reports whether the key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
