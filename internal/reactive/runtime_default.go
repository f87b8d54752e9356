package reactive

import (
	"sync"

	"github.com/petermattis/goid"
)

var defaultRuntimes sync.Map

// Default returns the calling goroutine's runtime, creating one on first
// use. The engine threads an explicit Runtime; Default exists for callers
// embedding the reactive layer directly without one.
func Default() *Runtime {
	gid := goid.Get()

	if rt, ok := defaultRuntimes.Load(gid); ok {
		return rt.(*Runtime)
	}

	rt := New()
	defaultRuntimes.Store(gid, rt)
	return rt
}
