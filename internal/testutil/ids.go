package testutil

import (
	"fmt"
	"sync"
)

// SequenceIDs returns predictable identifiers: "<prefix>-0001", "<prefix>-0002", ...
//
// The zero-padded counter keeps lexical order equal to creation order, matching
// the ordering guarantee of UUIDv7 ids in production.
//
// Thread-safety: SequenceIDs is safe for concurrent use via internal mutex.
type SequenceIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDs creates a generator with the given prefix.
func NewSequenceIDs(prefix string) *SequenceIDs {
	return &SequenceIDs{prefix: prefix}
}

// Generate returns the next identifier.
func (g *SequenceIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
