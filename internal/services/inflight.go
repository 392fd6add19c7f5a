package services

import (
	"context"
	"fmt"
	"sync"
)

// InflightRegistry guards mutating operations so that at most one request
// per (operation, session) is outstanding. Acquire never waits: a held key
// fails immediately with ErrBusy.
type InflightRegistry interface {
	Acquire(ctx context.Context, op, sessionID string) (release func(), err error)
}

type MemoryRegistry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{held: make(map[string]struct{})}
}

func (r *MemoryRegistry) Acquire(_ context.Context, op, sessionID string) (func(), error) {
	key := fmt.Sprintf(KeyInflight, op, sessionID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[key]; ok {
		return nil, ErrBusy
	}
	r.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.held, key)
			r.mu.Unlock()
		})
	}, nil
}

// Held reports whether a key is currently taken.
func (r *MemoryRegistry) Held(op, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[fmt.Sprintf(KeyInflight, op, sessionID)]
	return ok
}
