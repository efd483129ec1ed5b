package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentctx/contextmgr/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import documents from JSON on stdin",
		Long:  "Import documents from JSON on stdin, in the format produced by export.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var docs []store.Doc
	if err := json.Unmarshal(data, &docs); err != nil {
		exitErr("parse json", err)
	}

	a, err := newApp()
	if err != nil {
		exitErr("init", err)
	}
	defer a.Close()

	imported, err := a.store.Import(cmd.Context(), docs)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
