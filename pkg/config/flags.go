package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --gateway
// on "portal chat", "portal keys" and "portal admin").
type Flag struct {
	// Name is the long flag name (e.g. "gateway").
	Name string

	// Shorthand is the one-letter short flag (e.g. "g"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "gateway.base_url").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling the Add*Flag helpers and
// BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagGateway      = "gateway"
	FlagTimeout      = "timeout"
	FlagModel        = "model"
	FlagTemperature  = "temperature"
	FlagMaxTokens    = "max-tokens"
	FlagAPIKey       = "api-key"
	FlagKey          = "key"
	FlagFlushOnClose = "flush-on-close"
	FlagListen       = "listen"
)

// Flags is the registry shared by every portal command.
var Flags = FlagSet{
	FlagGateway:      {Name: "gateway", Shorthand: "g", ViperKey: "gateway.base_url", Description: "Gateway base URL"},
	FlagTimeout:      {Name: "timeout", ViperKey: "gateway.timeout", Description: "Timeout for non-streaming gateway requests"},
	FlagModel:        {Name: "model", Shorthand: "m", ViperKey: "chat.model", Description: "Model to request"},
	FlagTemperature:  {Name: "temperature", ViperKey: "chat.temperature", Description: "Sampling temperature"},
	FlagMaxTokens:    {Name: "max-tokens", ViperKey: "chat.max_tokens", Description: "Maximum completion tokens (0 for the gateway default)"},
	FlagAPIKey:       {Name: "api-key", ViperKey: "chat.api_key", Description: "Tenant API key"},
	FlagKey:          {Name: "key", Shorthand: "k", ViperKey: "chat.key", Description: "Name of a cached API key to use"},
	FlagFlushOnClose: {Name: "flush-on-close", ViperKey: "stream.flush_on_close", Description: "Parse an unterminated final stream frame instead of discarding it"},
	FlagListen:       {Name: "listen", Shorthand: "l", ViperKey: "serve.listen", Description: "Address for the mock gateway to listen on"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, key string, target *int) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddFloatFlag registers a float64 flag on cmd from the given FlagSet.
func AddFloatFlag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetFloat64(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().Float64Var(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only NewDefaultConfig values.
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
