package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentctx/contextmgr/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "resolve [path]",
		Short: "Translate an agent-visible path to its canonical path and filesystem id",
		Args:  cobra.ExactArgs(1),
		Run:   runResolve,
	}
	RootCmd.AddCommand(cmd)
}

func runResolve(cmd *cobra.Command, args []string) {
	path := args[0]

	a, err := newApp()
	if err != nil {
		exitErr("init", err)
	}
	defer a.Close()

	canonical, err := model.CanonicalizePath(path)
	if err != nil {
		exitErr("canonicalize path", err)
	}
	resolution := a.resolver.Resolve(canonical)

	b, _ := json.MarshalIndent(map[string]interface{}{
		"canonicalPath": resolution.CanonicalPath,
		"filesystemId":  resolution.FilesystemID,
		"isMounted":     resolution.IsMounted,
	}, "", "  ")
	fmt.Println(string(b))
}
