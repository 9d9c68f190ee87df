// Package admincmder provides the admin command for managing the admin
// credential session.
package admincmder

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/pkg/admin"
	"github.com/papercomputeco/portal/pkg/cliui"
)

const adminLongDesc string = `Manage the gateway admin credential.

The admin credential is shown exactly once when it is issued and is kept in
keys.toml in the .portal/ directory. A held credential is verified against
the gateway key list each time a command runs; if the gateway rejects it,
portal bootstraps a replacement once per session before giving up.

Examples:
  portal admin bootstrap     Issue the first admin credential
  portal admin rotate        Replace the admin credential
  portal admin status        Ask the gateway whether an admin exists
  portal admin session       Show the local session state
  portal admin login         Store an admin credential issued elsewhere
  portal admin logout        Forget the admin credential`

const adminShortDesc string = "Manage the gateway admin credential"

func NewAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: adminShortDesc,
		Long:  adminLongDesc,
	}

	cmd.AddCommand(newBootstrapCmd())
	cmd.AddCommand(newRotateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSessionCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())

	return cmd
}

// session loads the environment and starts an admin session. Start errors
// are left on the session view and only logged here, so commands that
// replace the credential can still run.
func session(cmd *cobra.Command) (*cmdenv.Env, *admin.Controller, error) {
	env, err := cmdenv.Load(cmd, cmdenv.GatewayFlags...)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	ctrl, _, err := env.Session(cmd.Context())
	if ctrl == nil {
		return nil, nil, err
	}
	if err != nil {
		env.Logger.Debug("admin session start", "error", err)
	}
	return env, ctrl, nil
}

func newBootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Issue the first admin credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, ctrl, err := session(cmd)
			if err != nil {
				return err
			}
			return issued(cmd.Context(), env, ctrl, "Bootstrapped", ctrl.Bootstrap)
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}

func newRotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the admin credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, ctrl, err := session(cmd)
			if err != nil {
				return err
			}
			return issued(cmd.Context(), env, ctrl, "Rotated", ctrl.Rotate)
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}

// issued runs a credential-issuing call and shows the plaintext once.
func issued(ctx context.Context, env *cmdenv.Env, ctrl *admin.Controller, verb string, issue func(context.Context) (string, error)) error {
	var key string
	err := cliui.Step(env.Err, verb+" admin credential", func() error {
		var err error
		key, err = issue(ctx)
		return err
	})
	if err != nil {
		return err
	}

	cliui.PrintSecret(env.Out, "Admin key:", key, "This key is shown once. It is stored in keys.toml.")

	printView(env, ctrl.View())
	return nil
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Ask the gateway whether an admin credential exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, ctrl, err := session(cmd)
			if err != nil {
				return err
			}

			status, err := ctrl.Status(cmd.Context())
			if err != nil {
				return err
			}

			initialized := "no"
			if status.AdminInitialized {
				initialized = "yes"
			}
			cliui.PrintFields(env.Out, cliui.Field{Label: "Admin initialized:", Value: initialized})
			return nil
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Show the local admin session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, ctrl, err := session(cmd)
			if err != nil {
				return err
			}
			printView(env, ctrl.View())
			return nil
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an admin credential issued elsewhere",
		Long: `Store an admin credential issued elsewhere and verify it.

The credential is read with hidden input, or from stdin when piped:
  echo $ADMIN_KEY | portal admin login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd, cmdenv.GatewayFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			key, err := cmdenv.ReadSecret(cmd.InOrStdin(), env.Err, "admin key")
			if err != nil {
				return err
			}
			if key == "" {
				return errors.New("admin key cannot be empty")
			}

			store, err := env.Store()
			if err != nil {
				return err
			}
			if err := store.SetAdminKey(key); err != nil {
				return fmt.Errorf("storing admin key: %w", err)
			}

			ctrl, _, err := env.Session(cmd.Context())
			if ctrl == nil {
				return err
			}
			printView(env, ctrl.View())
			return err
		},
	}
	cmdenv.AddGatewayFlags(cmd)
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the admin credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			store, err := env.Store()
			if err != nil {
				return err
			}
			if err := store.ClearAdminKey(); err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "  %s Admin credential removed.\n", cliui.SuccessMark)
			return nil
		},
	}
}

func printView(env *cmdenv.Env, view admin.View) {
	fields := []cliui.Field{
		{Label: "State", Value: view.State.String()},
		{Label: "Session", Value: view.SessionID},
		{Label: "Credential", Value: yesNo(view.HasCredential)},
		{Label: "Recovered", Value: yesNo(view.Recovered)},
	}
	if view.Listed {
		fields = append(fields, cliui.Field{Label: "Keys", Value: strconv.Itoa(view.KeyCount)})
	}
	cliui.PrintFields(env.Out, fields...)
	if view.Err != nil {
		fmt.Fprintf(env.Out, "  %s %s\n", cliui.FailMark, view.Err)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
