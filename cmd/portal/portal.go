// Package portalcmder
package portalcmder

import (
	"github.com/spf13/cobra"

	admincmder "github.com/papercomputeco/portal/cmd/portal/admin"
	chatcmder "github.com/papercomputeco/portal/cmd/portal/chat"
	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	configcmder "github.com/papercomputeco/portal/cmd/portal/config"
	healthcmder "github.com/papercomputeco/portal/cmd/portal/health"
	keyscmder "github.com/papercomputeco/portal/cmd/portal/keys"
	servecmder "github.com/papercomputeco/portal/cmd/portal/serve"
	versioncmder "github.com/papercomputeco/portal/cmd/portal/version"
)

const portalLongDesc string = `Portal is a command line client for the chat gateway.

Chat with streamed responses, manage the admin credential and tenant API
keys, and check gateway health:
  portal chat "hello"          Send a prompt
  portal admin bootstrap       Issue the admin credential
  portal keys create alpha     Issue and cache a tenant key
  portal health                Check the gateway
  portal serve mock            Run a local mock gateway`

const portalShortDesc string = "Portal - gateway client"

func NewPortalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "portal",
		Short:        portalShortDesc,
		Long:         portalLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP(cmdenv.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool(cmdenv.FlagJSONLogs, false, "Write logs as JSON")
	cmd.PersistentFlags().String(cmdenv.FlagConfigDir, "", "Override the .portal/ config directory")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(admincmder.NewAdminCmd())
	cmd.AddCommand(keyscmder.NewKeysCmd())
	cmd.AddCommand(healthcmder.NewHealthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
