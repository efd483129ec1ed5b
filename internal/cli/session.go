package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentctx/contextmgr/internal/session"
)

func init() {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Create and manage session state: the three-tier set machinery",
	}

	createCmd := &cobra.Command{
		Use:   "create [session-id]",
		Short: "Create a new session with an empty chat and the given system prompt",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionCreate,
	}
	createCmd.Flags().String("system-prompt", "", "System prompt text")

	resumeCmd := &cobra.Command{
		Use:   "resume [session-id]",
		Short: "Reconstruct a session from its persisted document, reconciling sourced files",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionResume,
	}

	activateCmd := &cobra.Command{
		Use:   "activate [session-id] [object-id]",
		Short: "Add an object to the active set",
		Args:  cobra.ExactArgs(2),
		Run:   sessionOpRunner((*session.Session).Activate),
	}
	deactivateCmd := &cobra.Command{
		Use:   "deactivate [session-id] [object-id]",
		Short: "Remove an object from the active set",
		Args:  cobra.ExactArgs(2),
		Run:   sessionOpRunner((*session.Session).Deactivate),
	}
	pinCmd := &cobra.Command{
		Use:   "pin [session-id] [object-id]",
		Short: "Pin an object, exempting it from auto-collapse",
		Args:  cobra.ExactArgs(2),
		Run:   sessionOpRunner((*session.Session).Pin),
	}
	unpinCmd := &cobra.Command{
		Use:   "unpin [session-id] [object-id]",
		Short: "Unpin an object",
		Args:  cobra.ExactArgs(2),
		Run:   sessionOpRunner((*session.Session).Unpin),
	}
	promoteCmd := &cobra.Command{
		Use:   "promote [session-id] [object-id]",
		Short: "Promote an object from the session index into the metadata pool",
		Args:  cobra.ExactArgs(2),
		Run:   sessionOpRunner((*session.Session).PromoteToPool),
	}

	sessionCmd.AddCommand(createCmd, resumeCmd, activateCmd, deactivateCmd, pinCmd, unpinCmd, promoteCmd)
	RootCmd.AddCommand(sessionCmd)
}

func runSessionCreate(cmd *cobra.Command, args []string) {
	sessionID := args[0]
	systemPrompt, _ := cmd.Flags().GetString("system-prompt")

	a, err := newApp()
	if err != nil {
		exitErr("init", err)
	}
	defer a.Close()

	sess, err := session.New(cmd.Context(), a.store, a.indexer, a.resolver, a.logger, sessionID, systemPrompt, sessionDefaults(a))
	if err != nil {
		exitErr("create session", err)
	}
	printResult(sess.ID(), "created")
}

func runSessionResume(cmd *cobra.Command, args []string) {
	sessionID := args[0]

	a, err := newApp()
	if err != nil {
		exitErr("init", err)
	}
	defer a.Close()

	sup := a.newSupervisor()
	defer sup.Close()

	sess, notes, err := session.Resume(cmd.Context(), a.store, a.indexer, a.resolver, a.logger, sessionID, session.OSFileReader{}, sup, sessionDefaults(a))
	if err != nil {
		exitErr("resume session", err)
	}

	out := struct {
		ID    string               `json:"id"`
		Notes []session.ResumeNote `json:"notes"`
	}{ID: sess.ID(), Notes: notes}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

// sessionOpRunner adapts a (*session.Session, context.Context, string) ->
// (*session.OpResult, error) method into a cobra Run func taking
// [session-id] [object-id], resuming the session fresh each invocation —
// the CLI is stateless between calls.
func sessionOpRunner(op func(*session.Session, context.Context, string) (*session.OpResult, error)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		sessionID, objID := args[0], args[1]

		a, err := newApp()
		if err != nil {
			exitErr("init", err)
		}
		defer a.Close()

		sess, _, err := session.Resume(cmd.Context(), a.store, a.indexer, a.resolver, a.logger, sessionID, session.OSFileReader{}, nil, sessionDefaults(a))
		if err != nil {
			exitErr("resume session", err)
		}

		result, err := op(sess, cmd.Context(), objID)
		if err != nil {
			exitErr("session op", err)
		}

		b, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(b))
	}
}
