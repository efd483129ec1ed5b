// Package model defines the core object, envelope, and source-binding
// types shared by the indexer, session engine, and context assembler.
package model

import (
	"fmt"
	"path"
	"strings"
)

// SourceKind discriminates the source binding tagged union. Every variant
// fully determines how identity_hash and source_hash are computed and
// which tracker subsystem applies. The union is closed: adding a new
// variant means adding identity/source-hash rules for it here, not opening
// it up for runtime extension.
type SourceKind string

const (
	SourceFilesystem SourceKind = "filesystem"
)

// FilesystemSource is the filesystem source binding variant. Path must
// already be canonical (post mount-translation) by the time it reaches a
// Source — see fsresolve for the translation step.
type FilesystemSource struct {
	FilesystemID string `json:"filesystemId"`
	Path         string `json:"path"`
}

// Source is the tagged union envelope. Exactly one of the kind-specific
// fields is populated, matching Kind. A zero-value Source (Kind == "")
// represents "no source" — used for unsourced object types.
type Source struct {
	Kind       SourceKind        `json:"type"`
	Filesystem *FilesystemSource `json:"-"`
}

// NewFilesystemSource builds a Source for the filesystem variant. path must
// be canonical; CanonicalizePath enforces that shape.
func NewFilesystemSource(filesystemID, path string) Source {
	return Source{
		Kind:       SourceFilesystem,
		Filesystem: &FilesystemSource{FilesystemID: filesystemID, Path: path},
	}
}

// IsZero reports whether this Source represents "no source" (unsourced
// object types: toolcall, chat, system_prompt, session).
func (s Source) IsZero() bool {
	return s.Kind == ""
}

// Encode converts the tagged union into the map[string]interface{} shape
// hashing.IdentityHash expects, exhaustively switching on Kind. Adding a
// new SourceKind without adding a case here is a compile-clean but
// semantically broken state — Encode panics on an unknown kind rather than
// silently hashing an incomplete encoding.
func (s Source) Encode() map[string]interface{} {
	switch s.Kind {
	case SourceFilesystem:
		return map[string]interface{}{
			"type":         string(SourceFilesystem),
			"filesystemId": s.Filesystem.FilesystemID,
			"path":         s.Filesystem.Path,
		}
	default:
		panic(fmt.Sprintf("model: unhandled source kind %q in Encode", s.Kind))
	}
}

// CanonicalizePath normalizes an absolute path per the wire encoding rules:
// no trailing slash (except root), no "." or ".." segments, no empty
// segments. It does not consult the filesystem; it is pure string
// canonicalization equivalent to a conservative path.Clean for absolute
// POSIX-style paths.
func CanonicalizePath(p string) (string, error) {
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("canonicalize path: %q is not absolute", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." {
		return "", fmt.Errorf("canonicalize path: %q cleans to empty", p)
	}
	return cleaned, nil
}
