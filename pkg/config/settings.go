package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Settings is the fully resolved, typed view of the precedence chain that
// commands consume.
type Settings struct {
	BaseURL string
	Timeout time.Duration

	Model       string
	Temperature *float64
	MaxTokens   int
	Stream      bool
	APIKey      string
	Key         string

	FlushOnClose bool

	AdminPollInterval    time.Duration
	AdminPollMaxAttempts int

	HealthPollInterval    time.Duration
	HealthPollMaxAttempts int

	Listen string
}

// SettingsFrom resolves Settings from v. Duration keys must parse with
// time.ParseDuration.
func SettingsFrom(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		BaseURL:               v.GetString("gateway.base_url"),
		Model:                 v.GetString("chat.model"),
		MaxTokens:             v.GetInt("chat.max_tokens"),
		Stream:                v.GetBool("chat.stream"),
		APIKey:                v.GetString("chat.api_key"),
		Key:                   v.GetString("chat.key"),
		FlushOnClose:          v.GetBool("stream.flush_on_close"),
		AdminPollMaxAttempts:  v.GetInt("admin.poll_max_attempts"),
		HealthPollMaxAttempts: v.GetInt("health.poll_max_attempts"),
		Listen:                v.GetString("serve.listen"),
	}

	if v.IsSet("chat.temperature") {
		t := v.GetFloat64("chat.temperature")
		s.Temperature = &t
	}

	durations := []struct {
		key    string
		target *time.Duration
	}{
		{"gateway.timeout", &s.Timeout},
		{"admin.poll_interval", &s.AdminPollInterval},
		{"health.poll_interval", &s.HealthPollInterval},
	}
	for _, d := range durations {
		raw := v.GetString(d.key)
		if raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	return s, nil
}
