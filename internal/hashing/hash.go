package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// IdentityHash computes the identity hash for a sourced or unsourced object.
//
// Sourced objects (source != nil): SHA-256 of the canonical JSON encoding of
// {"type": objType, "source": source}.
//
// Unsourced objects (source == nil): SHA-256 of objType || assignedID, where
// assignedID is the id the caller already assigned via its deterministic
// scheme (chat:<sessionId>, session:<sessionId>, system_prompt:<sessionId>,
// or a provider tool-call id).
//
// Returns the 64-character lowercase hex digest.
func IdentityHash(objType string, source interface{}, assignedID string) (string, error) {
	if source == nil {
		sum := sha256.Sum256([]byte(objType + assignedID))
		return hex.EncodeToString(sum[:]), nil
	}

	normalizedSource, err := Normalize(source)
	if err != nil {
		return "", fmt.Errorf("identity hash: normalize source: %w", err)
	}

	envelope := map[string]interface{}{
		"type":   objType,
		"source": normalizedSource,
	}
	canonical, err := CanonicalJSON(envelope)
	if err != nil {
		return "", fmt.Errorf("identity hash: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SourceHash computes SHA-256 over raw external bytes. Callers pass nil when
// the source is unreadable or the object is a discovery stub; SourceHash
// returns "", false in that case so the distinction between "hashed empty
// content" and "no content at all" is never lost.
func SourceHash(raw []byte) (digest string, ok bool) {
	if raw == nil {
		return "", false
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), true
}

// ContentHash computes SHA-256 over the mutable payload with the
// source_hash and content_hash keys removed. payload must already be in the
// map[string]interface{} shape (or a JSON-serializable equivalent); it is
// never mutated — ContentHash clones before stripping keys.
func ContentHash(payload map[string]interface{}) (string, error) {
	clone := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		if k == "source_hash" || k == "content_hash" {
			continue
		}
		clone[k] = v
	}

	normalized, err := Normalize(clone)
	if err != nil {
		return "", fmt.Errorf("content hash: normalize: %w", err)
	}
	canonical, err := CanonicalJSON(normalized)
	if err != nil {
		return "", fmt.Errorf("content hash: canonicalize: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
