// Package idgen generates opaque ids for objects that have no deterministic
// scheme of their own (the fallback branch of provider tool-call ids, per
// SPEC_FULL.md §11 — most tool-call ids come from the host adapter, but a
// host that fails to supply one still needs a stable id to key the object).
package idgen

import "github.com/google/uuid"

// New returns a fresh random id, used only when a caller cannot supply one
// of its own (e.g. a host adapter that omits a provider tool-call id).
func New() string {
	return uuid.NewString()
}
