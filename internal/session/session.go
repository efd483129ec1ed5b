// Package session implements the three-tier session engine (§4.5):
// session_index, metadata_pool, and active_set, plus the pinned_set, with
// the auto-collapse window that keeps the active set bounded as tool
// results accumulate.
package session

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/agentctx/contextmgr/internal/fsresolve"
	"github.com/agentctx/contextmgr/internal/hashing"
	"github.com/agentctx/contextmgr/internal/indexer"
	"github.com/agentctx/contextmgr/internal/model"
	"github.com/agentctx/contextmgr/internal/store"
)

// OpResult is the {ok, message, id} shape every public session operation
// returns (§7): failures that are expected parts of the protocol — a
// locked object, a stub with no content — are reported here, not as a Go
// error. A Go error return is reserved for StoreUnavailable-class
// failures the caller cannot reason about domain-wise.
type OpResult struct {
	OK      bool
	Message string
	ID      string
}

func ok(id string) *OpResult                  { return &OpResult{OK: true, ID: id} }
func fail(id, msg string) *OpResult           { return &OpResult{OK: false, ID: id, Message: msg} }
func failf(id, f string, a ...interface{}) *OpResult { return fail(id, fmt.Sprintf(f, a...)) }

// Defaults holds the auto-collapse window parameters.
type Defaults struct {
	RecentToolcallsPerTurn int
	RecentTurnsWindow      int
}

// WatchAttacher is implemented by the tracker supervisor; Resume calls it
// for every watchable mounted source it finds.
type WatchAttacher interface {
	Attach(canonicalPath string, src model.Source) error
}

// FileReader abstracts reading a sourced file's current bytes, so Resume's
// reconciliation pass is testable without touching the real filesystem.
type FileReader interface {
	ReadFile(canonicalPath string) (content []byte, exists bool, err error)
}

// OSFileReader reads from the real filesystem.
type OSFileReader struct{}

func (OSFileReader) ReadFile(canonicalPath string) ([]byte, bool, error) {
	b, err := os.ReadFile(canonicalPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Session owns one session's in-memory sets and mirrors every mutation to
// a new persisted version of the session document.
type Session struct {
	id       string
	store    store.Store
	indexer  *indexer.Indexer
	resolver *fsresolve.Resolver
	logger   *zap.Logger
	defaults Defaults

	chatRef         string
	systemPromptRef string

	sessionIndex []string
	metadataPool []string
	activeSet    []string
	pinnedSet    []string

	// objectTypes caches the type of every encountered object, avoiding a
	// store round-trip on every set-membership precondition check.
	objectTypes map[string]model.ObjectType
}

// New creates a brand-new session: chat, system_prompt, and session
// documents, all four sets empty.
func New(ctx context.Context, st store.Store, ix *indexer.Indexer, resolver *fsresolve.Resolver, logger *zap.Logger, sessionID, systemPromptText string, defaults Defaults) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		id:              sessionID,
		store:           st,
		indexer:         ix,
		resolver:        resolver,
		logger:          logger,
		defaults:        defaults,
		chatRef:         model.ChatID(sessionID),
		systemPromptRef: model.SystemPromptID(sessionID),
		objectTypes:     make(map[string]model.ObjectType),
	}

	if err := s.putUnsourced(ctx, model.TypeSystemPrompt, s.systemPromptRef, systemPromptText); err != nil {
		return nil, fmt.Errorf("session: create system_prompt: %w", err)
	}
	if err := s.putUnsourced(ctx, model.TypeChat, s.chatRef, ""); err != nil {
		return nil, fmt.Errorf("session: create chat: %w", err)
	}
	chat, err := s.store.Get(ctx, s.chatRef)
	if err != nil {
		return nil, fmt.Errorf("session: read back chat: %w", err)
	}
	chatObj, err := model.ObjectFromDoc(store.IDField, chat)
	if err != nil {
		return nil, fmt.Errorf("session: decode chat: %w", err)
	}
	chatObj.SessionRef = model.SessionDocID(sessionID)
	if err := s.putObject(ctx, chatObj); err != nil {
		return nil, fmt.Errorf("session: link chat to session: %w", err)
	}

	if err := s.persist(ctx); err != nil {
		return nil, fmt.Errorf("session: persist initial document: %w", err)
	}
	return s, nil
}

func (s *Session) putUnsourced(ctx context.Context, typ model.ObjectType, id, content string) error {
	identity, err := computeUnsourcedIdentity(typ, id)
	if err != nil {
		return err
	}
	obj := &model.Object{
		Envelope: model.Envelope{ID: id, Type: typ, IdentityHash: identity},
	}
	if typ == model.TypeSystemPrompt {
		c := content
		obj.Content = &c
	}
	return s.putObject(ctx, obj)
}

func (s *Session) putObject(ctx context.Context, obj *model.Object) error {
	if err := obj.ComputeContentHash(); err != nil {
		return err
	}
	handle, err := s.store.Put(ctx, obj.ToDoc(store.IDField))
	if err != nil {
		return err
	}
	return s.store.AwaitTx(ctx, handle)
}

// persist writes a new version of the session document reflecting the
// current in-memory sets.
func (s *Session) persist(ctx context.Context) error {
	identity, err := computeUnsourcedIdentity(model.TypeSession, model.SessionDocID(s.id))
	if err != nil {
		return err
	}
	obj := &model.Object{
		Envelope: model.Envelope{ID: model.SessionDocID(s.id), Type: model.TypeSession, IdentityHash: identity},
		SessionID: s.id,
		ChatRef: s.chatRef, SystemPromptRef: s.systemPromptRef,
		SessionIndex: s.sessionIndex, MetadataPool: s.metadataPool,
		ActiveSet: s.activeSet, PinnedSet: s.pinnedSet,
	}
	if err := obj.ComputeMetadataHash(); err != nil {
		return err
	}
	return s.putObject(ctx, obj)
}

func computeUnsourcedIdentity(typ model.ObjectType, assignedID string) (string, error) {
	return hashing.IdentityHash(string(typ), nil, assignedID)
}

// Encounter adds objID to session_index, idempotently, and records its
// type for later precondition checks. Used by every subsystem the moment
// it learns an object exists. Infrastructure-type objects are refused and
// never enter session_index.
func (s *Session) Encounter(ctx context.Context, objID string, typ model.ObjectType) (*OpResult, error) {
	if model.InfrastructureTypes[typ] {
		return failf(objID, "object is infrastructure type: %s", objID), nil
	}
	s.objectTypes[objID] = typ
	if !contains(s.sessionIndex, objID) {
		s.sessionIndex = append(s.sessionIndex, objID)
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return ok(objID), nil
}

// PromoteToPool adds objID to metadata_pool. Requires objID already be in
// session_index and not be an infrastructure-type object.
func (s *Session) PromoteToPool(ctx context.Context, objID string) (*OpResult, error) {
	if !contains(s.sessionIndex, objID) {
		return failf(objID, "object not in session_index: %s", objID), nil
	}
	if model.InfrastructureTypes[s.objectTypes[objID]] {
		return failf(objID, "object is infrastructure type: %s", objID), nil
	}
	if !contains(s.metadataPool, objID) {
		s.metadataPool = append(s.metadataPool, objID)
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return ok(objID), nil
}

// Activate adds objID to active_set. Requires objID be in metadata_pool
// and its current content be non-null.
func (s *Session) Activate(ctx context.Context, objID string) (*OpResult, error) {
	if !contains(s.metadataPool, objID) {
		return failf(objID, "object not in metadata_pool: %s", objID), nil
	}
	if model.LockedTypes[s.objectTypes[objID]] {
		return failf(objID, "object is locked: %s", objID), nil
	}
	doc, err := s.store.Get(ctx, objID)
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", objID, err)
	}
	if doc == nil {
		return failf(objID, "object not found: %s", objID), nil
	}
	obj, err := model.ObjectFromDoc(store.IDField, doc)
	if err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", objID, err)
	}
	if obj.Content == nil {
		return fail(objID, "Content unavailable"), nil
	}
	if !contains(s.activeSet, objID) {
		s.activeSet = append(s.activeSet, objID)
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return ok(objID), nil
}

// Deactivate removes objID from active_set. Locked objects (chat,
// system_prompt) cannot be deactivated.
func (s *Session) Deactivate(ctx context.Context, objID string) (*OpResult, error) {
	if !contains(s.activeSet, objID) {
		return failf(objID, "object not in active_set: %s", objID), nil
	}
	if model.LockedTypes[s.objectTypes[objID]] {
		return failf(objID, "object is locked: %s", objID), nil
	}
	s.activeSet = remove(s.activeSet, objID)
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return ok(objID), nil
}

// Pin adds objID to pinned_set; pinning an already-pinned object is a
// no-op. Requires objID be in metadata_pool.
func (s *Session) Pin(ctx context.Context, objID string) (*OpResult, error) {
	if !contains(s.metadataPool, objID) {
		return failf(objID, "object not in metadata_pool: %s", objID), nil
	}
	if !contains(s.pinnedSet, objID) {
		s.pinnedSet = append(s.pinnedSet, objID)
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return ok(objID), nil
}

// Unpin removes objID from pinned_set.
func (s *Session) Unpin(ctx context.Context, objID string) (*OpResult, error) {
	if !contains(s.metadataPool, objID) {
		return failf(objID, "object not in metadata_pool: %s", objID), nil
	}
	if contains(s.pinnedSet, objID) {
		s.pinnedSet = remove(s.pinnedSet, objID)
		if err := s.persist(ctx); err != nil {
			return nil, err
		}
	}
	return ok(objID), nil
}

// IngestToolResult stores a freshly-created tool-call object, then runs the
// §4.7 toolResult absorption sequence: encounter, promote, activate,
// auto-collapse.
func (s *Session) IngestToolResult(ctx context.Context, obj *model.Object) (*OpResult, error) {
	if err := s.putObject(ctx, obj); err != nil {
		return nil, fmt.Errorf("session: put toolcall %s: %w", obj.ID, err)
	}
	if _, err := s.Encounter(ctx, obj.ID, model.TypeToolcall); err != nil {
		return nil, err
	}
	if r, err := s.PromoteToPool(ctx, obj.ID); err != nil || !r.OK {
		return r, err
	}
	if r, err := s.Activate(ctx, obj.ID); err != nil || !r.OK {
		return r, err
	}
	if err := s.AutoCollapse(ctx); err != nil {
		return nil, err
	}
	return ok(obj.ID), nil
}

// AutoCollapse recomputes the active_set's toolcall membership against the
// keep window: the union of the last recentToolcallsPerTurn ids from each
// of the last recentTurnsWindow turns. Files are never auto-collapsed;
// pinned objects are exempt.
func (s *Session) AutoCollapse(ctx context.Context) error {
	chatDoc, err := s.store.Get(ctx, s.chatRef)
	if err != nil {
		return fmt.Errorf("session: get chat %s: %w", s.chatRef, err)
	}
	if chatDoc == nil {
		return nil
	}
	chat, err := model.ObjectFromDoc(store.IDField, chatDoc)
	if err != nil {
		return fmt.Errorf("session: decode chat %s: %w", s.chatRef, err)
	}

	keep := keepSet(chat.Turns, s.defaults.RecentTurnsWindow, s.defaults.RecentToolcallsPerTurn)

	var kept []string
	changed := false
	for _, id := range s.activeSet {
		if s.objectTypes[id] != model.TypeToolcall {
			kept = append(kept, id)
			continue
		}
		if contains(s.pinnedSet, id) || keep[id] {
			kept = append(kept, id)
			continue
		}
		changed = true
	}
	if !changed {
		return nil
	}
	s.activeSet = kept
	return s.persist(ctx)
}

func keepSet(turns []model.Turn, window, perTurn int) map[string]bool {
	keep := make(map[string]bool)
	if window <= 0 || perTurn <= 0 {
		return keep
	}
	start := len(turns) - window
	if start < 0 {
		start = 0
	}
	for _, turn := range turns[start:] {
		ids := turn.ToolcallIDs
		from := len(ids) - perTurn
		if from < 0 {
			from = 0
		}
		for _, id := range ids[from:] {
			keep[id] = true
		}
	}
	return keep
}

// loadChat fetches and decodes the current chat document.
func (s *Session) loadChat(ctx context.Context) (*model.Object, error) {
	doc, err := s.store.Get(ctx, s.chatRef)
	if err != nil {
		return nil, fmt.Errorf("session: get chat %s: %w", s.chatRef, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("session: chat document missing: %s", s.chatRef)
	}
	return model.ObjectFromDoc(store.IDField, doc)
}

// AppendUserTurn starts a new turn with the given user content — the
// assembler calls this for every "user" event in the host message stream.
func (s *Session) AppendUserTurn(ctx context.Context, userContent string) error {
	chat, err := s.loadChat(ctx)
	if err != nil {
		return err
	}
	chat.Turns = append(chat.Turns, model.Turn{User: userContent})
	chat.TurnCount = len(chat.Turns)
	return s.putObject(ctx, chat)
}

// AttachAssistant records an assistant response and its model metadata on
// the current (last) turn.
func (s *Session) AttachAssistant(ctx context.Context, content, modelName string) error {
	chat, err := s.loadChat(ctx)
	if err != nil {
		return err
	}
	if len(chat.Turns) == 0 {
		chat.Turns = append(chat.Turns, model.Turn{})
		chat.TurnCount = len(chat.Turns)
	}
	last := &chat.Turns[len(chat.Turns)-1]
	last.Assistant = content
	last.Model = modelName
	return s.putObject(ctx, chat)
}

// AppendToolcallToCurrentTurn records toolcallID against the current turn
// and the chat's toolcall_refs list.
func (s *Session) AppendToolcallToCurrentTurn(ctx context.Context, toolcallID string) error {
	chat, err := s.loadChat(ctx)
	if err != nil {
		return err
	}
	if len(chat.Turns) == 0 {
		chat.Turns = append(chat.Turns, model.Turn{})
		chat.TurnCount = len(chat.Turns)
	}
	last := &chat.Turns[len(chat.Turns)-1]
	last.ToolcallIDs = append(last.ToolcallIDs, toolcallID)
	chat.ToolcallRefs = append(chat.ToolcallRefs, toolcallID)
	return s.putObject(ctx, chat)
}

// ChatTurns returns the current chat document's turns, for the assembler's
// render step.
func (s *Session) ChatTurns(ctx context.Context) ([]model.Turn, error) {
	chat, err := s.loadChat(ctx)
	if err != nil {
		return nil, err
	}
	return chat.Turns, nil
}

// SystemPromptContent returns the text of this session's system prompt.
func (s *Session) SystemPromptContent(ctx context.Context) (string, error) {
	doc, err := s.store.Get(ctx, s.systemPromptRef)
	if err != nil {
		return "", fmt.Errorf("session: get system_prompt %s: %w", s.systemPromptRef, err)
	}
	if doc == nil {
		return "", fmt.Errorf("session: system_prompt document missing: %s", s.systemPromptRef)
	}
	obj, err := model.ObjectFromDoc(store.IDField, doc)
	if err != nil {
		return "", err
	}
	if obj.Content == nil {
		return "", nil
	}
	return *obj.Content, nil
}

// ObjectType returns the cached type for a known object id, or "" if the
// session has not encountered it.
func (s *Session) ObjectType(objID string) model.ObjectType {
	return s.objectTypes[objID]
}

// Lookup fetches the latest version of objID from the store, for the
// assembler's metadata-pool and active-content rendering.
func (s *Session) Lookup(ctx context.Context, objID string) (*model.Object, error) {
	doc, err := s.store.Get(ctx, objID)
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", objID, err)
	}
	if doc == nil {
		return nil, nil
	}
	return model.ObjectFromDoc(store.IDField, doc)
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// ChatRef returns the id of this session's chat document.
func (s *Session) ChatRef() string { return s.chatRef }

// SessionIndexSnapshot, MetadataPoolSnapshot, ActiveSetSnapshot, and
// PinnedSetSnapshot return copied snapshots of the four sets, for the assembler's render step and for
// tests asserting the invariants in §8.
func (s *Session) SessionIndexSnapshot() []string { return append([]string(nil), s.sessionIndex...) }
func (s *Session) MetadataPoolSnapshot() []string { return append([]string(nil), s.metadataPool...) }
func (s *Session) ActiveSetSnapshot() []string     { return append([]string(nil), s.activeSet...) }
func (s *Session) PinnedSetSnapshot() []string     { return append([]string(nil), s.pinnedSet...) }

func contains(set []string, id string) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}

func remove(set []string, id string) []string {
	out := make([]string, 0, len(set))
	for _, v := range set {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
