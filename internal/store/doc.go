// Package store implements the typed, path-indexed state store.
//
// Each named field is backed by a reactive signal, so reads inside an
// effect register fine-grained dependencies transparently. Mutations go
// through Set/SetPath exclusively and rebuild the field's value with
// copy-on-path structural sharing: every container along the mutated path
// is freshly allocated, every sibling subtree keeps its prior identity.
// Subscribers comparing by identity therefore never re-fire spuriously.
//
// The store can optionally record every mutation into a SQLite journal
// (WAL mode, canonical JSON, content-addressed IDs) and rebuild state from
// it with Replay, enabling time-travel inspection of a running program.
package store
