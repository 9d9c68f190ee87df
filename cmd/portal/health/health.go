// Package healthcmder provides the health command for probing the gateway.
package healthcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/pkg/cliui"
	"github.com/papercomputeco/portal/pkg/gateway"
	"github.com/papercomputeco/portal/pkg/health"
)

type healthCommander struct {
	ollama bool
	wait   bool
}

const healthLongDesc string = `Check that the gateway is reachable and healthy.

With --ollama the provider health endpoint is checked instead. With --wait
the gateway health endpoint is polled until it answers, which is useful in
scripts that start the gateway in the background.

Examples:
  portal health
  portal health --ollama
  portal health --wait`

const healthShortDesc string = "Check gateway health"

func NewHealthCmd() *cobra.Command {
	cmder := &healthCommander{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: healthShortDesc,
		Long:  healthLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd, cmdenv.GatewayFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return cmder.run(cmd, env)
		},
	}

	cmd.Flags().BoolVar(&cmder.ollama, "ollama", false, "Check the provider health endpoint")
	cmd.Flags().BoolVar(&cmder.wait, "wait", false, "Poll until the gateway is healthy")
	cmdenv.AddGatewayFlags(cmd)

	return cmd
}

func (c *healthCommander) run(cmd *cobra.Command, env *cmdenv.Env) error {
	monitor := health.NewMonitor(env.Client(),
		health.WithLogger(env.Logger),
		health.WithPollInterval(env.Settings.HealthPollInterval),
		health.WithPollMaxAttempts(env.Settings.HealthPollMaxAttempts),
	)

	if c.wait {
		return cliui.Step(env.Err, "Waiting for "+env.Settings.BaseURL, func() error {
			attempts, err := monitor.WaitHealthy(cmd.Context())
			env.Logger.Debug("health poll finished", "attempts", attempts)
			return err
		})
	}

	path := gateway.PathHealth
	if c.ollama {
		path = gateway.PathHealthOllama
	}

	var status *gateway.HealthStatus
	err := cliui.Step(env.Err, "Checking "+env.Settings.BaseURL+path, func() error {
		var err error
		status, err = monitor.Check(cmd.Context(), path)
		return err
	})
	if err != nil {
		return err
	}

	cliui.PrintFields(env.Out, cliui.Field{Label: "Status:", Value: status.Status})
	return nil
}
