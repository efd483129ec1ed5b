// Package fsresolve maps agent-visible paths to canonical paths and
// filesystem identifiers via longest-prefix mount translation, and derives
// the default filesystem identifier a process trusts for unmounted paths.
package fsresolve

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Mount is one configured mapping from an agent-visible path prefix to a
// canonical path prefix on a named filesystem.
type Mount struct {
	AgentPrefix     string `yaml:"agentPrefix"`
	CanonicalPrefix string `yaml:"canonicalPrefix"`
	FilesystemID    string `yaml:"filesystemId"`
	Writable        bool   `yaml:"writable"`
}

// Resolution is the result of resolving an agent-visible path.
type Resolution struct {
	CanonicalPath string
	FilesystemID  string
	IsMounted     bool
}

// Resolver translates agent-visible paths through an ordered list of mount
// mappings. The zero value is unusable; construct with New.
type Resolver struct {
	defaultFilesystemID string
	mounts              []Mount
	logger              *zap.Logger
}

// New constructs a Resolver. mounts may be in any order; Resolver sorts
// internally by descending agent-prefix length so longest-prefix-wins
// lookups are a single linear scan. logger may be nil (a no-op logger is
// substituted).
func New(defaultFilesystemID string, mounts []Mount, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	sorted := make([]Mount, len(mounts))
	copy(sorted, mounts)
	// Longest agent prefix first, so the first segment-respecting match
	// found during Resolve is also the longest one.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j].AgentPrefix) > len(sorted[j-1].AgentPrefix); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return &Resolver{defaultFilesystemID: defaultFilesystemID, mounts: sorted, logger: logger}
}

// Resolve finds the longest agentPrefix that is a prefix of agentPath,
// respecting path-segment boundaries, and substitutes the corresponding
// canonical prefix. If no mount matches, agentPath is returned unchanged
// under the default filesystem id with IsMounted=false.
func (r *Resolver) Resolve(agentPath string) Resolution {
	for _, m := range r.mounts {
		if matchesPrefix(agentPath, m.AgentPrefix) {
			suffix := agentPath[len(m.AgentPrefix):]
			canonical := joinPrefix(m.CanonicalPrefix, suffix)
			r.logger.Debug("resolved agent path",
				zap.String("agentPath", agentPath),
				zap.String("canonicalPath", canonical),
				zap.String("filesystemId", m.FilesystemID))
			return Resolution{CanonicalPath: canonical, FilesystemID: m.FilesystemID, IsMounted: true}
		}
	}
	return Resolution{CanonicalPath: agentPath, FilesystemID: r.defaultFilesystemID, IsMounted: false}
}

// ReverseResolve finds the longest canonicalPrefix that is a prefix of
// canonicalPath, for display purposes only — never used for identity.
func (r *Resolver) ReverseResolve(canonicalPath string) string {
	var best *Mount
	for i := range r.mounts {
		m := &r.mounts[i]
		if matchesPrefix(canonicalPath, m.CanonicalPrefix) {
			if best == nil || len(m.CanonicalPrefix) > len(best.CanonicalPrefix) {
				best = m
			}
		}
	}
	if best == nil {
		return canonicalPath
	}
	suffix := canonicalPath[len(best.CanonicalPrefix):]
	return joinPrefix(best.AgentPrefix, suffix)
}

// IsWatchable reports whether agentPath resolves through a configured
// mount — only then is the canonical path host-visible and subscribable by
// a file-change notifier.
func (r *Resolver) IsWatchable(agentPath string) bool {
	return r.Resolve(agentPath).IsMounted
}

// IsCanonicalWatchable reports whether a (canonicalPath, filesystemId)
// pair — the shape a stored Source carries — falls under some configured
// mount, the reverse direction of IsWatchable for callers that only have
// the canonical binding (session resume, the tracker supervisor) and never
// saw the original agent-visible path.
func (r *Resolver) IsCanonicalWatchable(canonicalPath, filesystemID string) bool {
	for _, m := range r.mounts {
		if m.FilesystemID == filesystemID && matchesPrefix(canonicalPath, m.CanonicalPrefix) {
			return true
		}
	}
	return false
}

// matchesPrefix reports whether prefix is a path-segment-respecting prefix
// of p: either p == prefix, or p continues immediately after prefix with a
// "/" (so "/workspace" matches "/workspace/src" but not "/workspacex").
func matchesPrefix(p, prefix string) bool {
	if prefix == "" {
		return false
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	if len(p) == len(prefix) {
		return true
	}
	rest := p[len(prefix):]
	return strings.HasPrefix(rest, "/")
}

// joinPrefix substitutes a new prefix for an old one while avoiding a
// doubled or missing path separator at the seam.
func joinPrefix(newPrefix, suffix string) string {
	if suffix == "" {
		return newPrefix
	}
	if strings.HasSuffix(newPrefix, "/") {
		return newPrefix + strings.TrimPrefix(suffix, "/")
	}
	if strings.HasPrefix(suffix, "/") {
		return newPrefix + suffix
	}
	return newPrefix + "/" + suffix
}

// DefaultFilesystemID derives the default filesystem identifier
// deterministically from a machine-stable input. It first tries
// machineIDPath (typically "/etc/machine-id"); if that file is absent or
// unreadable, it falls back to a hash of the hostname. The identifier is
// trusted by peers without verification — see package docs.
func DefaultFilesystemID(machineIDPath string) string {
	if raw, err := os.ReadFile(machineIDPath); err == nil {
		id := strings.TrimSpace(string(raw))
		if id != "" {
			return hashIdentity("machine-id:" + id)
		}
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "unknown-host"
	}
	return hashIdentity("hostname:" + hostname)
}

func hashIdentity(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
