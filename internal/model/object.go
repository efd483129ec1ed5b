package model

import "time"

// ObjectType enumerates the five object types the store holds.
type ObjectType string

const (
	TypeFile         ObjectType = "file"
	TypeToolcall     ObjectType = "toolcall"
	TypeChat         ObjectType = "chat"
	TypeSystemPrompt ObjectType = "system_prompt"
	TypeSession      ObjectType = "session"
)

// ValidTypes mirrors the reference lineage's ValidKinds/ValidPriorities
// convention: a membership set used at validation boundaries rather than
// an exhaustive switch duplicated at every call site.
var ValidTypes = map[ObjectType]bool{
	TypeFile:         true,
	TypeToolcall:     true,
	TypeChat:         true,
	TypeSystemPrompt: true,
	TypeSession:      true,
}

// InfrastructureTypes are the types excluded from every session content set
// (invariant 5): chat, system_prompt, session never appear in
// session_index, metadata_pool, active_set, or pinned_set.
var InfrastructureTypes = map[ObjectType]bool{
	TypeChat:         true,
	TypeSystemPrompt: true,
	TypeSession:      true,
}

// LockedTypes cannot be deactivated (invariant 7).
var LockedTypes = map[ObjectType]bool{
	TypeChat:         true,
	TypeSystemPrompt: true,
}

// IsSourced reports whether objects of this type carry a Source binding.
func IsSourced(t ObjectType) bool {
	return t == TypeFile
}

// Envelope is the immutable zone of an object: identical across every
// version. Set once at creation time.
type Envelope struct {
	ID           string     `json:"id"`
	Type         ObjectType `json:"type"`
	Source       *Source    `json:"source,omitempty"`
	IdentityHash string     `json:"identity_hash"`
}

// Turn is one user/assistant exchange inside a chat object, tracking the
// tool-call ids absorbed while assembling the assistant's response.
type Turn struct {
	User        string   `json:"user"`
	Assistant   string   `json:"assistant,omitempty"`
	Model       string   `json:"model,omitempty"`
	ToolcallIDs []string `json:"toolcall_ids,omitempty"`
}

// Object is a full versioned document: the immutable Envelope plus the
// current mutable payload fields. Every field below Envelope is replaced
// wholesale on each write; ContentHash covers all of it except ContentHash
// and SourceHash themselves.
type Object struct {
	Envelope

	// Common mutable fields.
	Content     *string `json:"content"`
	SourceHash  *string `json:"source_hash,omitempty"`
	ContentHash string  `json:"content_hash"`

	// file
	FileType  string `json:"file_type,omitempty"`
	CharCount int    `json:"char_count,omitempty"`

	// toolcall
	Tool         string            `json:"tool,omitempty"`
	Args         map[string]any    `json:"args,omitempty"`
	ArgsDisplay  string            `json:"args_display,omitempty"`
	Status       string            `json:"status,omitempty"`
	ChatRef      string            `json:"chat_ref,omitempty"`
	FileRefs     []string          `json:"file_refs,omitempty"`

	// chat
	Turns         []Turn   `json:"turns,omitempty"`
	SessionRef    string   `json:"session_ref,omitempty"`
	TurnCount     int      `json:"turn_count,omitempty"`
	ToolcallRefs  []string `json:"toolcall_refs,omitempty"`

	// session
	SessionID       string   `json:"session_id,omitempty"`
	SystemPromptRef string   `json:"system_prompt_ref,omitempty"`
	SessionIndex    []string `json:"session_index,omitempty"`
	MetadataPool    []string `json:"metadata_pool,omitempty"`
	ActiveSet       []string `json:"active_set,omitempty"`
	PinnedSet       []string `json:"pinned_set,omitempty"`
	MetadataHash    string   `json:"metadata_hash,omitempty"`

	// VersionedAt holds a version's transaction time for callers that set
	// it; ObjectFromDoc leaves it zero. Not part of ContentHash.
	VersionedAt time.Time `json:"-"`
}

// IsStub reports whether this version is a discovery stub: known to exist,
// never read (content and source_hash both null).
func (o *Object) IsStub() bool {
	return o.Content == nil && o.SourceHash == nil
}

// ToolcallStatus values.
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// ChatID, SessionID, SystemPromptID implement the deterministic id schemes
// for unsourced object types (§3: chat:{sessionId}, session:{sessionId},
// system_prompt:{sessionId}).
func ChatID(sessionID string) string         { return "chat:" + sessionID }
func SessionDocID(sessionID string) string   { return "session:" + sessionID }
func SystemPromptID(sessionID string) string { return "system_prompt:" + sessionID }
