// Package servecmder provides the serve command for running local services.
package servecmder

import (
	"github.com/spf13/cobra"
)

const serveLongDesc string = `Run local services.

Run services using:
  portal serve mock    Run an in-memory mock gateway`

const serveShortDesc string = "Run local services"

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
	}

	cmd.AddCommand(NewMockCmd())

	return cmd
}
