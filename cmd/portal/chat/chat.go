// Package chatcmder provides the chat command for sending prompts through
// the gateway.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/portal/cmd/portal/cmdenv"
	"github.com/papercomputeco/portal/pkg/admin"
	"github.com/papercomputeco/portal/pkg/chat"
	"github.com/papercomputeco/portal/pkg/cliui"
	"github.com/papercomputeco/portal/pkg/config"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	model        string
	temperature  float64
	maxTokens    int
	apiKey       string
	key          string
	flushOnClose bool

	system   string
	noStream bool
	render   bool

	env *cmdenv.Env
}

const chatLongDesc string = `Send a prompt through the gateway and print the response.

With a prompt argument the response is printed once and the command exits.
Without one, an interactive session starts: each line is sent as a new
prompt. Responses stream by default; use --no-stream for the single JSON
endpoint.

The tenant API key is taken from --api-key (or chat.api_key). Otherwise
--key (or chat.key) names a key cached by "portal keys create", which is
checked against the gateway key list when an admin credential is held.

Examples:
  portal chat "why is the sky blue?"
  portal chat --system "answer in French" --model auto "hello"
  portal chat --key alpha --no-stream "hello"
  portal chat --render`

const chatShortDesc string = "Chat through the gateway"

var chatFlags = []string{
	config.FlagGateway,
	config.FlagTimeout,
	config.FlagModel,
	config.FlagTemperature,
	config.FlagMaxTokens,
	config.FlagAPIKey,
	config.FlagKey,
	config.FlagFlushOnClose,
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.Load(cmd, chatFlags...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			cmder.env = env
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			assembler, err := cmder.assembler(cmd.Context())
			if err != nil {
				return err
			}

			if len(args) > 0 {
				return cmder.send(cmd.Context(), assembler, strings.Join(args, " "))
			}
			return cmder.interactive(cmd.Context(), assembler, cmd.InOrStdin())
		},
	}

	cmdenv.AddGatewayFlags(cmd)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddFloatFlag(cmd, config.Flags, config.FlagTemperature, &cmder.temperature)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxTokens, &cmder.maxTokens)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIKey, &cmder.apiKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagKey, &cmder.key)
	config.AddBoolFlag(cmd, config.Flags, config.FlagFlushOnClose, &cmder.flushOnClose)

	cmd.Flags().StringVarP(&cmder.system, "system", "s", "", "System prompt sent ahead of the user message")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Use the single JSON endpoint instead of streaming")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the finished response as markdown")

	return cmd
}

func (c *chatCommander) streaming() bool {
	return c.env.Settings.Stream && !c.noStream
}

func (c *chatCommander) assembler(ctx context.Context) (*chat.Assembler, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	cfg := chat.Config{
		Client:       c.env.Client(),
		APIKey:       apiKey,
		Logger:       c.env.Logger,
		FlushOnClose: c.env.Settings.FlushOnClose,
	}
	if c.streaming() && !c.render {
		cfg.Observer = newTextPrinter(c.env.Out)
	}
	return chat.NewAssembler(cfg)
}

// resolveAPIKey picks the tenant key: an explicit key wins, then the named
// cached key. With a valid admin session the cached key must still be
// active on the gateway.
func (c *chatCommander) resolveAPIKey(ctx context.Context) (string, error) {
	s := c.env.Settings
	if s.APIKey != "" || s.Key == "" {
		return s.APIKey, nil
	}

	ctrl, store, err := c.env.Session(ctx)
	if store == nil {
		return "", err
	}
	if err == nil && ctrl.State() == admin.StateValid {
		return ctrl.ResolveKey(s.Key)
	}

	secret, ok := store.Get(s.Key)
	if !ok {
		return "", fmt.Errorf("no cached key named %q; create one with `portal keys create %s`", s.Key, s.Key)
	}
	c.env.Logger.Debug("using cached key without gateway verification", "key", s.Key)
	return secret, nil
}

func (c *chatCommander) send(ctx context.Context, assembler *chat.Assembler, prompt string) error {
	var opts []chat.RequestOption
	if t := c.env.Settings.Temperature; t != nil {
		opts = append(opts, chat.WithTemperature(*t))
	}
	if n := c.env.Settings.MaxTokens; n > 0 {
		opts = append(opts, chat.WithMaxTokens(n))
	}
	req := chat.NewRequest(c.env.Settings.Model, c.system, prompt, opts...)

	c.env.Logger.Debug("sending chat request",
		"gateway", c.env.Settings.BaseURL,
		"model", req.Model,
		"stream", c.streaming(),
	)

	var result *chat.Result
	if c.streaming() {
		result = assembler.Run(ctx, req)
	} else {
		result = assembler.SendJSON(ctx, req)
	}

	return c.report(result)
}

func (c *chatCommander) report(result *chat.Result) error {
	switch {
	case c.render:
		rendered, err := cliui.RenderMarkdown(result.Text)
		if err != nil {
			c.env.Logger.Debug("markdown render failed", "error", err)
		}
		fmt.Fprint(c.env.Out, rendered)
	case !c.streaming():
		fmt.Fprint(c.env.Out, result.Text)
	}
	if result.Text != "" && !strings.HasSuffix(result.Text, "\n") {
		fmt.Fprintln(c.env.Out)
	}

	if result.Error != nil {
		cliui.PrintError(c.env.Err, *result.Error)
	}
	if line := cliui.UsageLine(result.Usage, result.UsageEstimated, result.Latency); line != "" {
		fmt.Fprintf(c.env.Err, "  %s\n", cliui.DimStyle.Render(line))
	}
	if c.env.Debug {
		cliui.PrintMeta(c.env.Err, result.Meta)
	}

	return result.Err()
}

func (c *chatCommander) interactive(ctx context.Context, assembler *chat.Assembler, in io.Reader) error {
	out := c.env.Out

	fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render("Gateway:"), cliui.ValueStyle.Render(c.env.Settings.BaseURL))
	fmt.Fprintf(out, "  %s %s\n\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(c.env.Settings.Model))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		fmt.Fprint(out, assistantPrompt)
		if err := c.send(ctx, assembler, input); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			// The error line is already printed; keep the session going.
			c.env.Logger.Debug("chat request failed", "error", err)
		}
		fmt.Fprintln(out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
