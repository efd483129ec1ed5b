package main

import (
	"os"

	"github.com/agentctx/contextmgr/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
