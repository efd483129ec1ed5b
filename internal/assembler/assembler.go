// Package assembler consumes a harness-supplied event stream and renders
// the ordered, cache-stable LLM-facing message sequence (§4.7).
package assembler

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agentctx/contextmgr/internal/fsresolve"
	"github.com/agentctx/contextmgr/internal/hashing"
	"github.com/agentctx/contextmgr/internal/idgen"
	"github.com/agentctx/contextmgr/internal/model"
	"github.com/agentctx/contextmgr/internal/session"
)

// EventKind discriminates the three host event shapes the assembler
// consumes.
type EventKind string

const (
	EventUser       EventKind = "user"
	EventAssistant  EventKind = "assistant"
	EventToolResult EventKind = "toolResult"
)

// Event is one entry in the harness-supplied message array.
type Event struct {
	Kind EventKind `json:"kind"`

	UserContent      string `json:"userContent,omitempty"`
	AssistantContent string `json:"assistantContent,omitempty"`
	Model            string `json:"model,omitempty"`

	ToolCallID string                 `json:"toolCallId,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	ToolArgs   map[string]interface{} `json:"toolArgs,omitempty"`
	ToolStatus string                 `json:"toolStatus,omitempty"`
	ToolResult string                 `json:"toolResult,omitempty"`
}

// Message is one entry in the rendered, LLM-facing sequence.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// Assembler maintains the monotonic cursor over a host message stream for
// one session.
type Assembler struct {
	session  *session.Session
	resolver *fsresolve.Resolver
	logger   *zap.Logger
	cursor   int
}

// New constructs an Assembler bound to sess, rendering display paths
// through resolver.
func New(sess *session.Session, resolver *fsresolve.Resolver, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{session: sess, resolver: resolver, logger: logger}
}

// Consume processes the delta between the cursor and the end of events. If
// events is shorter than the cursor, the harness has replaced its log
// (compaction or session restore): the cursor resets to len(events) and
// nothing is replayed — the session's own state remains canonical.
//
// Go slices carry no stable identity across calls the way the harness's
// native array might, so "array identity changed" is detected only via
// this length check, not a pointer comparison; see DESIGN.md for the
// rationale.
func (a *Assembler) Consume(ctx context.Context, events []Event) error {
	if len(events) < a.cursor {
		a.logger.Debug("cursor reset", zap.Int("oldCursor", a.cursor), zap.Int("newLength", len(events)))
		a.cursor = len(events)
		return nil
	}

	for _, e := range events[a.cursor:] {
		if err := a.absorb(ctx, e); err != nil {
			return err
		}
	}
	a.cursor = len(events)
	return nil
}

func (a *Assembler) absorb(ctx context.Context, e Event) error {
	switch e.Kind {
	case EventUser:
		return a.session.AppendUserTurn(ctx, e.UserContent)
	case EventAssistant:
		return a.session.AttachAssistant(ctx, e.AssistantContent, e.Model)
	case EventToolResult:
		return a.absorbToolResult(ctx, e)
	default:
		return fmt.Errorf("assembler: unhandled event kind %q", e.Kind)
	}
}

func (a *Assembler) absorbToolResult(ctx context.Context, e Event) error {
	id := e.ToolCallID
	if id == "" {
		id = idgen.New()
	}
	identity, err := hashing.IdentityHash(string(model.TypeToolcall), nil, id)
	if err != nil {
		return fmt.Errorf("assembler: identity hash: %w", err)
	}

	content := e.ToolResult
	obj := &model.Object{
		Envelope: model.Envelope{ID: id, Type: model.TypeToolcall, IdentityHash: identity},
		Content:  &content,
		Tool:     e.ToolName,
		Args:     e.ToolArgs,
		Status:   e.ToolStatus,
		ChatRef:  a.session.ChatRef(),
	}

	if err := a.session.AppendToolcallToCurrentTurn(ctx, id); err != nil {
		return fmt.Errorf("assembler: attach toolcall to turn: %w", err)
	}
	if _, err := a.session.IngestToolResult(ctx, obj); err != nil {
		return fmt.Errorf("assembler: ingest toolcall %s: %w", id, err)
	}
	return nil
}

// Render produces the ordered LLM-facing sequence: system prompt,
// metadata-pool summary, chat history, and active content blocks. Blocks
// 1-3 are stable prefixes for provider-side prompt caching; block 4 is
// volatile.
func (a *Assembler) Render(ctx context.Context) ([]Message, error) {
	var messages []Message

	systemText, err := a.session.SystemPromptContent(ctx)
	if err != nil {
		return nil, err
	}
	messages = append(messages, Message{Role: "system", Content: systemText})

	poolMsg, err := a.renderMetadataPool(ctx)
	if err != nil {
		return nil, err
	}
	messages = append(messages, Message{Role: "user", Content: poolMsg})

	history, err := a.renderChatHistory(ctx)
	if err != nil {
		return nil, err
	}
	messages = append(messages, history...)

	active, err := a.renderActiveContent(ctx)
	if err != nil {
		return nil, err
	}
	messages = append(messages, active...)

	return messages, nil
}

func (a *Assembler) renderMetadataPool(ctx context.Context) (string, error) {
	var lines []string
	for _, id := range a.session.MetadataPoolSnapshot() {
		if model.InfrastructureTypes[a.session.ObjectType(id)] {
			continue
		}
		obj, err := a.session.Lookup(ctx, id)
		if err != nil {
			return "", err
		}
		if obj == nil {
			continue
		}
		lines = append(lines, a.renderPoolLine(obj))
	}
	return "METADATA_POOL\n" + strings.Join(lines, "\n"), nil
}

func (a *Assembler) renderPoolLine(obj *model.Object) string {
	switch obj.Type {
	case model.TypeFile:
		if obj.IsStub() {
			return fmt.Sprintf("id=%s type=file path=%s [unread]", obj.ID, a.displayPath(obj))
		}
		return fmt.Sprintf("id=%s type=file path=%s file_type=%s char_count=%d",
			obj.ID, a.displayPath(obj), obj.FileType, obj.CharCount)
	case model.TypeToolcall:
		return fmt.Sprintf("id=%s type=toolcall tool=%s status=%s", obj.ID, obj.Tool, obj.Status)
	default:
		return fmt.Sprintf("id=%s type=%s", obj.ID, obj.Type)
	}
}

func (a *Assembler) displayPath(obj *model.Object) string {
	if obj.Source == nil || obj.Source.Filesystem == nil {
		return ""
	}
	return a.resolver.ReverseResolve(obj.Source.Filesystem.Path)
}

func (a *Assembler) renderChatHistory(ctx context.Context) ([]Message, error) {
	turns, err := a.session.ChatTurns(ctx)
	if err != nil {
		return nil, err
	}
	var messages []Message
	for _, turn := range turns {
		messages = append(messages, Message{Role: "user", Content: turn.User})
		if turn.Assistant != "" {
			messages = append(messages, Message{Role: "assistant", Content: turn.Assistant})
		}
		for _, toolID := range turn.ToolcallIDs {
			obj, err := a.session.Lookup(ctx, toolID)
			if err != nil {
				return nil, err
			}
			if obj == nil {
				continue
			}
			messages = append(messages, Message{
				Role:    "user",
				Content: fmt.Sprintf("toolcall_ref id=%s tool=%s status=%s", obj.ID, obj.Tool, obj.Status),
			})
		}
	}
	return messages, nil
}

func (a *Assembler) renderActiveContent(ctx context.Context) ([]Message, error) {
	var messages []Message
	for _, id := range a.session.ActiveSetSnapshot() {
		if model.InfrastructureTypes[a.session.ObjectType(id)] {
			continue
		}
		obj, err := a.session.Lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if obj == nil || obj.Content == nil {
			continue
		}
		messages = append(messages, Message{
			Role:    "user",
			Content: fmt.Sprintf("ACTIVE_CONTENT id=%s\n%s", obj.ID, *obj.Content),
		})
	}
	return messages, nil
}
