// Package cmdtest runs portal commands end to end against a mock gateway.
package cmdtest

import (
	"bytes"
	"context"
	"net"
	"os"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	portalcmder "github.com/papercomputeco/portal/cmd/portal"
	"github.com/papercomputeco/portal/mockgw"
	"github.com/papercomputeco/portal/pkg/logger"
)

// Gateway is a mock gateway serving on a loopback listener.
type Gateway struct {
	*mockgw.Server
	URL string
}

// StartGateway starts a mock gateway that is shut down when the current
// spec ends.
func StartGateway(config mockgw.Config) *Gateway {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	srv, err := mockgw.New(config, logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	go func() { _ = srv.RunWithListener(l) }()
	DeferCleanup(func() { _ = srv.Close() })

	return &Gateway{Server: srv, URL: "http://" + l.Addr().String()}
}

// Result is the captured outcome of one command run.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Run executes the portal root command with args, feeding stdin.
func Run(ctx context.Context, stdin string, args ...string) Result {
	return ExecuteContext(ctx, portalcmder.NewPortalCmd(), stdin, args...)
}

// Execute runs cmd with args, feeding stdin and capturing its output.
func Execute(cmd *cobra.Command, stdin string, args ...string) Result {
	return ExecuteContext(context.Background(), cmd, stdin, args...)
}

// ExecuteContext is Execute with a context.
func ExecuteContext(ctx context.Context, cmd *cobra.Command, stdin string, args ...string) Result {
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

// GatewayEnv is the environment variable a Session points at its gateway.
const GatewayEnv = "PORTAL_GATEWAY_BASE_URL"

// Session runs commands against one gateway with one config directory.
type Session struct {
	Gateway   *Gateway
	ConfigDir string
}

// NewSession starts a gateway, points GatewayEnv at it and gives the session
// a fresh config directory.
func NewSession(config mockgw.Config) *Session {
	gw := StartGateway(config)

	Expect(os.Setenv(GatewayEnv, gw.URL)).To(Succeed())
	DeferCleanup(os.Unsetenv, GatewayEnv)

	return &Session{
		Gateway:   gw,
		ConfigDir: GinkgoT().TempDir(),
	}
}

// Run executes a command with the session's config directory.
func (s *Session) Run(args ...string) Result {
	return s.RunWithInput("", args...)
}

// RunWithInput is Run with stdin.
func (s *Session) RunWithInput(stdin string, args ...string) Result {
	args = append(args, "--config-dir", s.ConfigDir)
	return Run(context.Background(), stdin, args...)
}
