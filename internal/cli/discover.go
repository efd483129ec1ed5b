package cli

import (
	"github.com/spf13/cobra"

	"github.com/agentctx/contextmgr/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "discover [path]",
		Short: "Record that a path exists without reading its content",
		Args:  cobra.ExactArgs(1),
		Run:   runDiscover,
	}
	RootCmd.AddCommand(cmd)
}

func runDiscover(cmd *cobra.Command, args []string) {
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
	src := model.NewFilesystemSource(resolution.FilesystemID, resolution.CanonicalPath)

	result, err := a.indexer.DiscoverFile(cmd.Context(), src)
	if err != nil {
		exitErr("discover", err)
	}

	printResult(result.ID, string(result.Outcome))
}
