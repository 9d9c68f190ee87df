// Package keyscmder provides the keys command for issuing, listing and
// selecting tenant API keys.
package keyscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/pkg/admin"
)

const keysLongDesc string = `Issue, list and select tenant API keys.

The gateway reveals a key's plaintext only when it is issued. Keys created
here are cached in keys.toml in the .portal/ directory under their tenant
name so "portal chat --key <name>" can use them later. Keys issued
elsewhere are listed but cannot be used from here until re-issued.

Examples:
  portal keys create alpha     Issue a key and cache it as "alpha"
  portal keys list             List active keys
  portal keys list --wait      Poll until more than one key is listed
  portal keys use alpha        Make "alpha" the default chat key
  portal keys delete key_1234  Revoke a key on the gateway
  portal keys forget alpha     Drop a cached key`

const keysShortDesc string = "Manage tenant API keys"

func NewKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: keysShortDesc,
		Long:  keysLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newForgetCmd())

	return cmd
}

// validSession starts an admin session and fails unless the credential was
// accepted.
func validSession(cmd *cobra.Command) (*cmdenv.Env, *admin.Controller, error) {
	env, err := cmdenv.Load(cmd, cmdenv.GatewayFlags...)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	ctrl, _, err := env.Session(cmd.Context())
	if ctrl == nil {
		return nil, nil, err
	}

	if ctrl.State() != admin.StateValid {
		if err != nil {
			return nil, nil, err
		}
		if view := ctrl.View(); view.Err != nil {
			return nil, nil, view.Err
		}
		return nil, nil, admin.ErrNoCredential
	}
	return env, ctrl, nil
}
