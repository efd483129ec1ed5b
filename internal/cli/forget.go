package cli

import (
	"github.com/spf13/cobra"

	"github.com/agentctx/contextmgr/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget [path]",
		Short: "Record a file deletion, tombstoning its content while preserving history",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}
	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
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

	result, err := a.indexer.IndexFileDeletion(cmd.Context(), src)
	if err != nil {
		exitErr("forget", err)
	}

	printResult(result.ID, string(result.Outcome))
}
