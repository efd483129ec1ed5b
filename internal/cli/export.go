package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export every document's latest version as JSON",
		Long:  "Export the latest version of every document in the store. Filter by object type with -t.",
		Run:   runExport,
	}

	cmd.Flags().StringP("type", "t", "", "Filter by object type")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	objType, _ := cmd.Flags().GetString("type")

	a, err := newApp()
	if err != nil {
		exitErr("init", err)
	}
	defer a.Close()

	docs, err := a.store.ExportAll(cmd.Context(), objType)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(docs, "", "  ")
	fmt.Println(string(b))
}
