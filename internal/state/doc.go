// Package state holds per-conversation runtime state and its durable subset.
//
// For every conversation the Runtime tracks the active provider, model
// overrides per provider, resumable session ids per provider, the handle of
// the in-flight request, and a mutual-exclusion lock. Locks are created
// lazily and never removed.
//
// Only active providers, model overrides and session ids are persisted. Every
// mutation of those fields triggers a full re-save through a Store. FileStore
// writes a JSON snapshot atomically (temp file in the same directory, fsync,
// rename), so a crash mid-write never corrupts the previous state. Load
// tolerates missing or malformed data and starts empty.
package state
