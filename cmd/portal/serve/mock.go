package servecmder

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/mockgw"
	"github.com/papercomputeco/portal/pkg/config"
)

type mockCommander struct {
	listen       string
	model        string
	reply        string
	tokenDelay     time.Duration
	provisionDelay time.Duration
	providerDown   bool
}

const mockLongDesc string = `Run an in-memory mock gateway.

The mock serves the same health, chat and admin endpoints as the real
gateway, which makes it useful for trying portal without a deployment.
Responses are streamed word by word. Keys and the admin credential live in
memory and are lost when the process exits.

Examples:
  portal serve mock
  portal serve mock --listen :9090 --token-delay 50ms
  portal serve mock --reply "hello from the mock"
  portal serve mock --provision-delay 3s`

const mockShortDesc string = "Run an in-memory mock gateway"

func NewMockCmd() *cobra.Command {
	cmder := &mockCommander{}

	cmd := &cobra.Command{
		Use:   "mock",
		Short: mockShortDesc,
		Long:  mockLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd, config.FlagListen)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return cmder.run(cmd.Context(), env)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	cmd.Flags().StringVar(&cmder.model, "model", mockgw.DefaultModel, "Model reported for requests that ask for \"auto\"")
	cmd.Flags().StringVar(&cmder.reply, "reply", "", "Response text, streamed one word per frame")
	cmd.Flags().DurationVar(&cmder.tokenDelay, "token-delay", 0, "Delay between streamed frames")
	cmd.Flags().DurationVar(&cmder.provisionDelay, "provision-delay", 0, "Delay before a created key is listed and usable")
	cmd.Flags().BoolVar(&cmder.providerDown, "provider-down", false, "Report the provider health endpoint as unavailable")

	return cmd
}

// deltas splits reply into words, keeping the separating spaces so the
// frames concatenate back to reply.
func deltas(reply string) []string {
	if strings.TrimSpace(reply) == "" {
		return nil
	}
	return strings.SplitAfter(reply, " ")
}

func (c *mockCommander) run(ctx context.Context, env *cmdenv.Env) error {
	srvConfig := mockgw.Config{
		ListenAddr:     env.Settings.Listen,
		Model:          c.model,
		Deltas:         deltas(c.reply),
		TokenDelay:     c.tokenDelay,
		ProvisionDelay: c.provisionDelay,
		ProviderDown:   c.providerDown,
	}

	srv, err := mockgw.New(srvConfig, env.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("mock gateway error: %w", err)
		}
		return nil
	case <-ctx.Done():
		env.Logger.Info("shutting down mock gateway")
		return nil
	}
}
