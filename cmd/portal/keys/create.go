package keyscmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/pkg/cliui"
)

func newCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Issue a tenant API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctrl, err := validSession(cmd)
			if err != nil {
				return err
			}

			created, err := ctrl.CreateKey(cmd.Context(), args[0])
			if created == nil {
				return err
			}

			fmt.Fprintf(env.Out, "\n  %s Issued key for %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(created.Tenant),
			)
			cliui.PrintSecret(env.Out, "API key:", created.APIKey, "This key is shown once.")

			// A failed cache write or refresh still issued the key.
			return err
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"revoke"},
		Short:   "Revoke an API key on the gateway",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctrl, err := validSession(cmd)
			if err != nil {
				return err
			}

			if err := ctrl.DeleteKey(cmd.Context(), args[0]); err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "  %s Revoked %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
			return nil
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}
