package model

import "fmt"

// ToDoc renders the full versioned document (envelope + payload) in the
// flat map shape the store persists, keyed under idField (the store's
// IDField constant — passed in rather than imported, so this package does
// not need to depend on the store package).
func (o *Object) ToDoc(idField string) map[string]interface{} {
	doc := o.PayloadMap()
	doc[idField] = o.ID
	doc["type"] = string(o.Type)
	doc["identity_hash"] = o.IdentityHash
	if o.Source != nil && !o.Source.IsZero() {
		doc["source"] = o.Source.Encode()
	} else {
		doc["source"] = nil
	}
	return doc
}

// ObjectFromDoc reconstructs an Object from a document read back from the
// store. doc fields that round-tripped through JSON arrive as
// map[string]interface{}/[]interface{}/float64; every accessor below
// tolerates the corresponding zero value when a field is absent.
func ObjectFromDoc(idField string, doc map[string]interface{}) (*Object, error) {
	id, _ := doc[idField].(string)
	if id == "" {
		return nil, fmt.Errorf("model: document missing %q", idField)
	}
	typ, _ := doc["type"].(string)
	if typ == "" {
		return nil, fmt.Errorf("model: document %s missing type", id)
	}

	o := &Object{
		Envelope: Envelope{
			ID:           id,
			Type:         ObjectType(typ),
			IdentityHash: getString(doc, "identity_hash"),
		},
	}

	if src, ok := doc["source"].(map[string]interface{}); ok {
		s, err := sourceFromMap(src)
		if err != nil {
			return nil, fmt.Errorf("model: document %s: %w", id, err)
		}
		o.Source = &s
	}

	o.Content = getStringPtr(doc, "content")
	o.SourceHash = getStringPtr(doc, "source_hash")
	o.ContentHash = getString(doc, "content_hash")

	switch o.Type {
	case TypeFile:
		o.FileType = getString(doc, "file_type")
		o.CharCount = getInt(doc, "char_count")
	case TypeToolcall:
		o.Tool = getString(doc, "tool")
		if args, ok := doc["args"].(map[string]interface{}); ok {
			o.Args = args
		}
		o.ArgsDisplay = getString(doc, "args_display")
		o.Status = getString(doc, "status")
		o.ChatRef = getString(doc, "chat_ref")
		o.FileRefs = getStringSlice(doc, "file_refs")
	case TypeChat:
		o.Turns = turnsFromDocs(getMapSlice(doc, "turns"))
		o.SessionRef = getString(doc, "session_ref")
		o.TurnCount = getInt(doc, "turn_count")
		o.ToolcallRefs = getStringSlice(doc, "toolcall_refs")
	case TypeSystemPrompt:
		// content only.
	case TypeSession:
		o.SessionID = getString(doc, "session_id")
		o.ChatRef = getString(doc, "chat_ref")
		o.SystemPromptRef = getString(doc, "system_prompt_ref")
		o.SessionIndex = getStringSlice(doc, "session_index")
		o.MetadataPool = getStringSlice(doc, "metadata_pool")
		o.ActiveSet = getStringSlice(doc, "active_set")
		o.PinnedSet = getStringSlice(doc, "pinned_set")
		o.MetadataHash = getString(doc, "metadata_hash")
	}

	return o, nil
}

func sourceFromMap(m map[string]interface{}) (Source, error) {
	kind, _ := m["type"].(string)
	switch SourceKind(kind) {
	case SourceFilesystem:
		return Source{
			Kind: SourceFilesystem,
			Filesystem: &FilesystemSource{
				FilesystemID: getString(m, "filesystemId"),
				Path:         getString(m, "path"),
			},
		}, nil
	default:
		return Source{}, fmt.Errorf("unhandled source kind %q in ObjectFromDoc", kind)
	}
}

func turnsFromDocs(raw []map[string]interface{}) []Turn {
	if raw == nil {
		return nil
	}
	turns := make([]Turn, len(raw))
	for i, t := range raw {
		turns[i] = Turn{
			User:        getString(t, "user"),
			Assistant:   getString(t, "assistant"),
			Model:       getString(t, "model"),
			ToolcallIDs: getStringSlice(t, "toolcall_ids"),
		}
	}
	return turns
}

func getString(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}

func getStringPtr(m map[string]interface{}, key string) *string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func getInt(m map[string]interface{}, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func getStringSlice(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getMapSlice(m map[string]interface{}, key string) []map[string]interface{} {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(raw))
	for _, v := range raw {
		if mm, ok := v.(map[string]interface{}); ok {
			out = append(out, mm)
		}
	}
	return out
}
