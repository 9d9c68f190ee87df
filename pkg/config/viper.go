package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/portal/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "PORTAL"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PORTAL_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (PORTAL_GATEWAY_BASE_URL, PORTAL_CHAT_API_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Gateway
	v.SetDefault("gateway.base_url", d.Gateway.BaseURL)
	v.SetDefault("gateway.timeout", d.Gateway.Timeout)

	// Chat
	v.SetDefault("chat.model", d.Chat.Model)
	v.SetDefault("chat.max_tokens", d.Chat.MaxTokens)
	v.SetDefault("chat.stream", *d.Chat.Stream)
	v.SetDefault("chat.api_key", d.Chat.APIKey)
	v.SetDefault("chat.key", d.Chat.Key)

	// Stream
	v.SetDefault("stream.flush_on_close", d.Stream.FlushOnClose)

	// Admin
	v.SetDefault("admin.poll_interval", d.Admin.PollInterval)
	v.SetDefault("admin.poll_max_attempts", d.Admin.PollMaxAttempts)

	// Health
	v.SetDefault("health.poll_interval", d.Health.PollInterval)
	v.SetDefault("health.poll_max_attempts", d.Health.PollMaxAttempts)

	// Serve
	v.SetDefault("serve.listen", d.Serve.Listen)
}
