package config

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = "5m"

	defaultModel = "mock-1"

	defaultPollInterval         = "1500ms"
	defaultAdminPollMaxAttempts = 20

	defaultHealthPollMaxAttempts = 40

	defaultServeListen = ":8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	stream := true
	return &Config{
		Version: CurrentV,
		Gateway: GatewayConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
		},
		Chat: ChatConfig{
			Model:  defaultModel,
			Stream: &stream,
		},
		Admin: AdminConfig{
			PollInterval:    defaultPollInterval,
			PollMaxAttempts: defaultAdminPollMaxAttempts,
		},
		Health: HealthConfig{
			PollInterval:    defaultPollInterval,
			PollMaxAttempts: defaultHealthPollMaxAttempts,
		},
		Serve: ServeConfig{
			Listen: defaultServeListen,
		},
	}
}
