package store

import (
	"context"
	"sync"
)

// Memory is a process-local Backend.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{m: make(map[string][]byte)}
}

func (b *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	v, ok := b.m[key]
	b.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (b *Memory) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.m[key] = append([]byte(nil), value...)
	b.mu.Unlock()
	return nil
}

func (b *Memory) Close() error { return nil }
