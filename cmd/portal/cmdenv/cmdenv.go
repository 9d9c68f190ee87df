// Package cmdenv resolves the shared runtime of portal commands: merged
// settings, the logger, the gateway client, the key cache and the admin
// session.
package cmdenv

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/portal/pkg/admin"
	"github.com/papercomputeco/portal/pkg/config"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/keystore"
	"github.com/papercomputeco/portal/pkg/logger"
)

// Persistent flag names defined on the root command.
const (
	FlagDebug     = "debug"
	FlagConfigDir = "config-dir"
	FlagJSONLogs  = "json-logs"
)

// Env is the resolved runtime of one command invocation.
type Env struct {
	ConfigDir string
	Debug     bool
	Viper     *viper.Viper
	Settings  *config.Settings
	Logger    *slog.Logger

	Out io.Writer
	Err io.Writer
}

// Load reads the precedence chain for cmd, binding the registry flags in
// flagKeys.
func Load(cmd *cobra.Command, flagKeys ...string) (*Env, error) {
	configDir, _ := cmd.Flags().GetString(FlagConfigDir)
	debug, _ := cmd.Flags().GetBool(FlagDebug)
	jsonLogs, _ := cmd.Flags().GetBool(FlagJSONLogs)

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	settings, err := config.SettingsFrom(v)
	if err != nil {
		return nil, err
	}

	return &Env{
		ConfigDir: configDir,
		Debug:     debug,
		Viper:     v,
		Settings:  settings,
		Logger: logger.New(
			logger.WithDebug(debug),
			logger.WithJSON(jsonLogs),
			logger.WithPretty(!jsonLogs),
			logger.WithWriter(cmd.ErrOrStderr()),
		),
		Out: cmd.OutOrStdout(),
		Err: cmd.ErrOrStderr(),
	}, nil
}

// Client returns a gateway client for the configured base URL.
func (e *Env) Client() *gateway.Client {
	return gateway.NewClient(e.Settings.BaseURL,
		gateway.WithLogger(e.Logger),
		gateway.WithTimeout(e.Settings.Timeout),
	)
}

// Store opens the key cache in the .portal/ directory.
func (e *Env) Store() (*keystore.Store, error) {
	backend, err := keystore.NewFileBackend(e.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening key cache: %w", err)
	}
	store, err := keystore.New(backend)
	if err != nil {
		return nil, fmt.Errorf("loading key cache: %w", err)
	}
	return store, nil
}

// Session opens the key cache and starts an admin session against it. A
// held admin key is verified, and recovered once if the gateway rejects it.
func (e *Env) Session(ctx context.Context) (*admin.Controller, *keystore.Store, error) {
	store, err := e.Store()
	if err != nil {
		return nil, nil, err
	}

	ctrl, err := admin.New(e.Client(), store,
		admin.WithLogger(e.Logger),
		admin.WithPollInterval(e.Settings.AdminPollInterval),
		admin.WithPollMaxAttempts(e.Settings.AdminPollMaxAttempts),
		// A command runs once against a gateway that is already up.
		admin.WithGraceWindow(0),
	)
	if err != nil {
		return nil, nil, err
	}

	if err := ctrl.Start(ctx); err != nil {
		return ctrl, store, err
	}
	return ctrl, store, nil
}

// GatewayFlags are the registry flags of every command that talks to the
// gateway.
var GatewayFlags = []string{config.FlagGateway, config.FlagTimeout}

// AddGatewayFlags registers GatewayFlags on cmd. Their values are read back
// through viper once bound.
func AddGatewayFlags(cmd *cobra.Command) {
	var baseURL, timeout string
	config.AddStringFlag(cmd, config.Flags, config.FlagGateway, &baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagTimeout, &timeout)
}
