package testutil

import (
	"fmt"
	"sync"
)

// PrefixTokenGenerator generates "prefix-1", "prefix-2", ... so traces
// carry stable, human-readable timer handles.
//
// Unlike engine.FixedGenerator, which panics when a declared token list
// runs out, this generator never exhausts; use it where the exact number
// of handles is not part of the assertion. Safe for concurrent use.
type PrefixTokenGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewPrefixTokenGenerator creates a generator. An empty prefix defaults
// to "token".
func NewPrefixTokenGenerator(prefix string) *PrefixTokenGenerator {
	if prefix == "" {
		prefix = "token"
	}
	return &PrefixTokenGenerator{prefix: prefix}
}

// Generate returns the next token.
// Implements engine.TokenGenerator.
func (g *PrefixTokenGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
