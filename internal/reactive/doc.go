// Package reactive implements the signal/effect runtime underneath the
// state store: signals record their readers, effects re-run when any
// dynamically-discovered dependency changes.
//
// All reactive state hangs off an explicit Runtime rather than package
// globals, keeping the design portable to multi-runtime hosts. A
// per-goroutine default Runtime is available through Default for callers
// that do not thread one explicitly.
//
// Concurrency model: a Runtime is confined to a single logical thread.
// Effect re-runs triggered by a write happen synchronously before the
// write returns, unless a batch is open, in which case dirty effects are
// deduplicated and run once at batch close.
package reactive
