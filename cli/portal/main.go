package main

import (
	"os"

	portalcmder "github.com/papercomputeco/portal/cmd/portal"
)

func main() {
	cmd := portalcmder.NewPortalCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
