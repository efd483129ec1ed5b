package model

import "github.com/agentctx/contextmgr/internal/hashing"

// PayloadMap renders the object's mutable payload as the map shape
// hashing.ContentHash expects. It always includes source_hash and
// content_hash (ContentHash strips them); every other field present for
// the object's type is included so content_hash is sensitive to all of
// them, per invariant 8.
func (o *Object) PayloadMap() map[string]interface{} {
	m := map[string]interface{}{
		"content": contentOrNil(o.Content),
	}
	if o.SourceHash != nil {
		m["source_hash"] = *o.SourceHash
	} else {
		m["source_hash"] = nil
	}
	m["content_hash"] = o.ContentHash

	switch o.Type {
	case TypeFile:
		m["file_type"] = o.FileType
		m["char_count"] = o.CharCount
	case TypeToolcall:
		m["tool"] = o.Tool
		if o.Args != nil {
			m["args"] = o.Args
		}
		if o.ArgsDisplay != "" {
			m["args_display"] = o.ArgsDisplay
		}
		m["status"] = o.Status
		m["chat_ref"] = o.ChatRef
		if o.FileRefs != nil {
			m["file_refs"] = o.FileRefs
		}
	case TypeChat:
		m["turns"] = turnsToMaps(o.Turns)
		m["session_ref"] = o.SessionRef
		m["turn_count"] = o.TurnCount
		m["toolcall_refs"] = o.ToolcallRefs
	case TypeSystemPrompt:
		// content only.
	case TypeSession:
		m["session_id"] = o.SessionID
		m["chat_ref"] = o.ChatRef
		m["system_prompt_ref"] = o.SystemPromptRef
		m["session_index"] = o.SessionIndex
		m["metadata_pool"] = o.MetadataPool
		m["active_set"] = o.ActiveSet
		m["pinned_set"] = o.PinnedSet
		m["metadata_hash"] = o.MetadataHash
	}
	return m
}

// ComputeMetadataHash recomputes o.MetadataHash from the four sets, so
// resume and invariant checks can detect a session snapshot changing
// without diffing every array by hand. Call before ComputeContentHash, the
// same ordering ComputeContentHash itself requires relative to every other
// mutable field.
func (o *Object) ComputeMetadataHash() error {
	h, err := hashing.ContentHash(map[string]interface{}{
		"session_index": o.SessionIndex,
		"metadata_pool": o.MetadataPool,
		"active_set":    o.ActiveSet,
		"pinned_set":    o.PinnedSet,
	})
	if err != nil {
		return err
	}
	o.MetadataHash = h
	return nil
}

// ComputeContentHash recomputes and sets o.ContentHash from the object's
// current payload. Callers invoke this last, after every other mutable
// field has been set, since content_hash must reflect them all.
func (o *Object) ComputeContentHash() error {
	h, err := hashing.ContentHash(o.PayloadMap())
	if err != nil {
		return err
	}
	o.ContentHash = h
	return nil
}

func contentOrNil(c *string) interface{} {
	if c == nil {
		return nil
	}
	return *c
}

func turnsToMaps(turns []Turn) []interface{} {
	out := make([]interface{}, len(turns))
	for i, t := range turns {
		out[i] = map[string]interface{}{
			"user":         t.User,
			"assistant":    t.Assistant,
			"model":        t.Model,
			"toolcall_ids": t.ToolcallIDs,
		}
	}
	return out
}
