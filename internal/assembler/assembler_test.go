package assembler

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentctx/contextmgr/internal/fsresolve"
	"github.com/agentctx/contextmgr/internal/indexer"
	"github.com/agentctx/contextmgr/internal/session"
	"github.com/agentctx/contextmgr/internal/store"
)

func newTestAssembler(t *testing.T) (*Assembler, *session.Session) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "asm.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ix := indexer.New(st, nil)
	resolver := fsresolve.New("FS1", nil, nil)
	sess, err := session.New(context.Background(), st, ix, resolver, nil, "sess-1", "be helpful", session.Defaults{RecentToolcallsPerTurn: 5, RecentTurnsWindow: 3})
	require.NoError(t, err)

	return New(sess, resolver, nil), sess
}

func TestConsume_UserAssistantToolResult(t *testing.T) {
	ctx := context.Background()
	a, sess := newTestAssembler(t)

	events := []Event{
		{Kind: EventUser, UserContent: "hello"},
		{Kind: EventToolResult, ToolCallID: "tc-1", ToolName: "ls", ToolStatus: "ok", ToolResult: "a.txt"},
		{Kind: EventAssistant, AssistantContent: "done", Model: "test-model"},
	}
	require.NoError(t, a.Consume(ctx, events))

	turns, err := sess.ChatTurns(ctx)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "hello", turns[0].User)
	assert.Equal(t, "done", turns[0].Assistant)
	assert.Equal(t, "test-model", turns[0].Model)
	assert.Equal(t, []string{"tc-1"}, turns[0].ToolcallIDs)

	assert.Contains(t, sess.ActiveSetSnapshot(), "tc-1")
}

func TestConsume_CursorAdvancesIncrementally(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAssembler(t)

	events := []Event{{Kind: EventUser, UserContent: "first"}}
	require.NoError(t, a.Consume(ctx, events))
	assert.Equal(t, 1, a.cursor)

	events = append(events, Event{Kind: EventAssistant, AssistantContent: "reply"})
	require.NoError(t, a.Consume(ctx, events))
	assert.Equal(t, 2, a.cursor)
}

func TestConsume_ShorterArrayResetsCursorNoReplay(t *testing.T) {
	ctx := context.Background()
	a, sess := newTestAssembler(t)

	events := []Event{
		{Kind: EventUser, UserContent: "first"},
		{Kind: EventAssistant, AssistantContent: "reply"},
	}
	require.NoError(t, a.Consume(ctx, events))

	turnsBefore, err := sess.ChatTurns(ctx)
	require.NoError(t, err)

	shrunk := []Event{{Kind: EventUser, UserContent: "restarted"}}
	require.NoError(t, a.Consume(ctx, shrunk))
	assert.Equal(t, 1, a.cursor)

	turnsAfter, err := sess.ChatTurns(ctx)
	require.NoError(t, err)
	assert.Equal(t, turnsBefore, turnsAfter, "cursor reset must not replay into session state")
}

func TestConsume_PrefixThenFullEqualsFullOnce(t *testing.T) {
	ctx := context.Background()
	events := []Event{
		{Kind: EventUser, UserContent: "hi"},
		{Kind: EventAssistant, AssistantContent: "hello"},
		{Kind: EventUser, UserContent: "again"},
	}

	a1, s1 := newTestAssembler(t)
	require.NoError(t, a1.Consume(ctx, events[:1]))
	require.NoError(t, a1.Consume(ctx, events))
	turns1, err := s1.ChatTurns(ctx)
	require.NoError(t, err)

	a2, s2 := newTestAssembler(t)
	require.NoError(t, a2.Consume(ctx, events))
	turns2, err := s2.ChatTurns(ctx)
	require.NoError(t, err)

	assert.Equal(t, turns2, turns1)
}

func TestRender_OrderingAndStableBlocks(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAssembler(t)

	require.NoError(t, a.Consume(ctx, []Event{
		{Kind: EventUser, UserContent: "hello"},
		{Kind: EventToolResult, ToolCallID: "tc-1", ToolName: "ls", ToolStatus: "ok", ToolResult: "a.txt"},
		{Kind: EventAssistant, AssistantContent: "done"},
	}))

	messages, err := a.Render(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(messages), 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[1].Content, "METADATA_POOL")
	assert.Contains(t, messages[1].Content, "tc-1")

	var sawToolcallRef, sawActiveContent bool
	for _, m := range messages[2:] {
		if m.Content == "toolcall_ref id=tc-1 tool=ls status=ok" {
			sawToolcallRef = true
		}
		if m.Content == "ACTIVE_CONTENT id=tc-1\na.txt" {
			sawActiveContent = true
		}
	}
	assert.True(t, sawToolcallRef, "chat history must reference the toolcall by metadata only")
	assert.True(t, sawActiveContent, "active set member must render its full content")
}
