package services

import "sync"

// GraphGuard coordinates access to one graph. Imports and edits hold the
// write side; tree builds and relationship queries hold the read side, so a
// build never observes a half-applied import.
type GraphGuard struct {
	mu sync.RWMutex
}

// NewGraphGuard creates a guard.
func NewGraphGuard() *GraphGuard {
	return &GraphGuard{}
}

// Write runs fn with exclusive access.
func (g *GraphGuard) Write(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}

// Read runs fn with shared access.
func (g *GraphGuard) Read(fn func() error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn()
}
