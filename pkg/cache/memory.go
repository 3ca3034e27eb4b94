package cache

import (
	"context"
	"sync"
)

// Memory is a process-lifetime store without eviction. sync.Map keeps
// readers of distinct keys from contending on a single lock.
type Memory struct {
	entries sync.Map
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *Memory) Put(_ context.Context, key, payload string) error {
	m.entries.Store(key, payload)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
