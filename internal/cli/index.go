package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentctx/contextmgr/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Fully index a file by reading and hashing its current contents",
		Args:  cobra.ExactArgs(1),
		Run:   runIndex,
	}
	cmd.Flags().String("filesystem-id", "", "Override the resolved filesystem id (mounted or default) for this path")

	RootCmd.AddCommand(cmd)
}

func runIndex(cmd *cobra.Command, args []string) {
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

	fsID, _ := cmd.Flags().GetString("filesystem-id")
	resolution := a.resolver.Resolve(canonical)
	if fsID != "" {
		resolution.FilesystemID = fsID
	}

	content, err := os.ReadFile(resolution.CanonicalPath)
	if err != nil {
		exitErr("read file", err)
	}

	src := model.NewFilesystemSource(resolution.FilesystemID, resolution.CanonicalPath)
	result, err := a.indexer.IndexFile(cmd.Context(), src, string(content))
	if err != nil {
		exitErr("index", err)
	}

	printResult(result.ID, string(result.Outcome))
}

func printResult(id, outcome string) {
	b, _ := json.MarshalIndent(map[string]string{"id": id, "outcome": outcome}, "", "  ")
	fmt.Println(string(b))
}
