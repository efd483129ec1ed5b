package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentctx/contextmgr/internal/assembler"
	"github.com/agentctx/contextmgr/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "assemble [session-id]",
		Short: "Consume a JSON event array from stdin and render the LLM-facing message sequence",
		Args:  cobra.ExactArgs(1),
		Run:   runAssemble,
	}
	RootCmd.AddCommand(cmd)
}

func runAssemble(cmd *cobra.Command, args []string) {
	sessionID := args[0]

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	var events []assembler.Event
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &events); err != nil {
			exitErr("parse events", err)
		}
	}

	a, err := newApp()
	if err != nil {
		exitErr("init", err)
	}
	defer a.Close()

	sess, _, err := session.Resume(cmd.Context(), a.store, a.indexer, a.resolver, a.logger, sessionID, session.OSFileReader{}, nil, sessionDefaults(a))
	if err != nil {
		exitErr("resume session", err)
	}

	asm := assembler.New(sess, a.resolver, a.logger)
	if err := asm.Consume(cmd.Context(), events); err != nil {
		exitErr("consume events", err)
	}

	messages, err := asm.Render(cmd.Context())
	if err != nil {
		exitErr("render", err)
	}

	b, _ := json.MarshalIndent(messages, "", "  ")
	fmt.Println(string(b))
}
