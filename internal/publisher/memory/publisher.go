// Package memory contains an in-memory publisher implementation for tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	payloads []any
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the payload and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("memory-%d", len(p.payloads)), nil
}

// Payloads returns the recorded publishes.
func (p *Publisher) Payloads() []any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]any, len(p.payloads))
	copy(out, p.payloads)
	return out
}
