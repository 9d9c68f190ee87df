package keyscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/pkg/admin"
	"github.com/papercomputeco/portal/pkg/cliui"
	"github.com/papercomputeco/portal/pkg/config"
)

func newUseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Make a cached key the default for chat",
		Long: `Make a cached key the default for chat by setting chat.key.

When an admin credential is held the key is checked against the gateway
key list first; a revoked key is refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdenv.Load(cmd, cmdenv.GatewayFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			name := args[0]
			ctrl, store, err := env.Session(cmd.Context())
			if store == nil {
				return err
			}

			if err == nil && ctrl.State() == admin.StateValid {
				if _, err := ctrl.ResolveKey(name); err != nil {
					return err
				}
			} else if _, ok := store.Get(name); !ok {
				return fmt.Errorf("no cached key named %q", name)
			}

			cfger, err := config.NewConfiger(env.ConfigDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfger.SetConfigValue("chat.key", name); err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "  %s Chat will use %s\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
			return nil
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <name>",
		Short: "Drop a key from the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			store, err := env.Store()
			if err != nil {
				return err
			}
			if err := store.Remove(args[0]); err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "  %s Forgot %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
}
