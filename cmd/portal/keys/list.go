package keyscmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/pkg/admin"
	"github.com/papercomputeco/portal/pkg/cliui"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/keystore"
	"github.com/papercomputeco/portal/pkg/utils"
)

type listCommander struct {
	all   bool
	local bool
	watch bool
	wait  bool
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmder.local {
				env, err := cmdenv.Load(cmd)
				if err != nil {
					return fmt.Errorf("loading config: %w", err)
				}
				if cmder.watch {
					return cmder.watchLocal(cmd.Context(), env)
				}
				return cmder.runLocal(env)
			}

			env, ctrl, err := validSession(cmd)
			if err != nil {
				return err
			}

			if cmder.wait {
				result := ctrl.PollKeys(cmd.Context())
				env.Logger.Debug("key poll finished", "attempts", result.Attempts, "reason", result.Reason)
				if result.Reason == admin.PollCancelled {
					return cmd.Context().Err()
				}
			}
			return cmder.run(env, ctrl)
		},
	}

	cmd.Flags().BoolVar(&cmder.all, "all", false, "Include revoked keys")
	cmd.Flags().BoolVar(&cmder.local, "local", false, "List the local key cache instead of the gateway")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "With --local, reprint the cache whenever it changes")
	cmd.Flags().BoolVar(&cmder.wait, "wait", false, "Poll until more than one key is listed")
	cmdenv.AddGatewayFlags(cmd)

	return cmd
}

func (c *listCommander) run(env *cmdenv.Env, ctrl *admin.Controller) error {
	retrievable := map[string]bool{}
	for _, opt := range ctrl.Options() {
		retrievable[opt.ID] = opt.Retrievable
	}

	var keys []gateway.APIKeyEntry
	for _, k := range ctrl.Keys() {
		if k.Active || c.all {
			keys = append(keys, k)
		}
	}

	if len(keys) == 0 {
		fmt.Fprintf(env.Out, "\n  %s No keys.\n", cliui.DimStyle.Render("●"))
		fmt.Fprintf(env.Out, "  Use 'portal keys create <name>' to issue one.\n\n")
		return nil
	}

	fmt.Fprintf(env.Out, "\n  %s\n\n", cliui.HeaderStyle.Render("API keys"))
	for _, k := range keys {
		mark := cliui.DimStyle.Render("○")
		note := "not cached here"
		switch {
		case !k.Active:
			mark = cliui.FailMark
			note = "revoked"
		case retrievable[k.ID]:
			mark = cliui.SuccessMark
			note = "cached"
		}

		fmt.Fprintf(env.Out, "  %s  %s  %s  %s\n",
			mark,
			cliui.NameStyle.Render(utils.Truncate(k.DisplayName(), 32)),
			cliui.DimStyle.Render(k.ID),
			cliui.DimStyle.Render(note),
		)
	}
	fmt.Fprintln(env.Out)

	return nil
}

func (c *listCommander) runLocal(env *cmdenv.Env) error {
	store, err := env.Store()
	if err != nil {
		return err
	}

	entries := store.Entries()
	if len(entries) == 0 {
		fmt.Fprintf(env.Out, "\n  %s No cached keys.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Fprintf(env.Out, "\n  %s\n\n", cliui.HeaderStyle.Render("Cached keys"))
	for _, e := range entries {
		fmt.Fprintf(env.Out, "  %s  %s  %s\n",
			cliui.NameStyle.Render(utils.Truncate(e.Name, 32)),
			cliui.ValueStyle.Render(keystore.Mask(e.Secret)),
			cliui.DimStyle.Render(e.CreatedAt.Format("2006-01-02 15:04")),
		)
	}
	fmt.Fprintln(env.Out)

	return nil
}

func (c *listCommander) watchLocal(ctx context.Context, env *cmdenv.Env) error {
	if err := c.runLocal(env); err != nil {
		return err
	}

	backend, err := keystore.NewFileBackend(env.ConfigDir)
	if err != nil {
		return fmt.Errorf("opening key cache: %w", err)
	}

	err = backend.Watch(ctx, func() {
		if err := c.runLocal(env); err != nil {
			env.Logger.Warn("reloading key cache", "error", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
