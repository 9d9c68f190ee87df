// Package configcmder provides the config command for managing persistent
// portal configuration stored in the .portal/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/pkg/cliui"
	"github.com/papercomputeco/portal/pkg/config"
)

const configLongDesc string = `Manage persistent portal configuration.

Configuration is stored as config.toml in the .portal/ directory and provides
default values for command flags. CLI flags and PORTAL_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  gateway.base_url, gateway.timeout,
  chat.model, chat.temperature, chat.max_tokens, chat.stream,
  chat.api_key, chat.key,
  stream.flush_on_close,
  admin.poll_interval, admin.poll_max_attempts,
  health.poll_interval, health.poll_max_attempts,
  serve.listen

Use subcommands to get, set, or list configuration values:
  portal config set <key> <value>    Set a configuration value
  portal config get <key>            Get a configuration value
  portal config list                 List all configuration values

Examples:
  portal config set gateway.base_url https://gateway.example.com
  portal config set chat.model auto
  portal config get chat.model
  portal config list`

const configShortDesc string = "Manage persistent portal configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func printTarget(w io.Writer, cfger *config.Configer) {
	fmt.Fprintf(w, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
}
