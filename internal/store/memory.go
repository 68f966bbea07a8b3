package store

import (
	"context"
	"strconv"
	"sync"
)

type memoryEntry struct {
	data    []byte
	version int64
}

// Memory is an in-process Store. Data is lost on restart.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{collections: make(map[string]memoryEntry)}
}

func (m *Memory) Load(_ context.Context, collection string) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.collections[collection]
	if !ok {
		return Snapshot{}, nil
	}
	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return Snapshot{Data: data, Version: strconv.FormatInt(entry.version, 10)}, nil
}

func (m *Memory) CompareAndSwap(_ context.Context, collection, version string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.collections[collection]
	current := ""
	if ok {
		current = strconv.FormatInt(entry.version, 10)
	}
	if current != version {
		return "", ErrVersionConflict
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	entry = memoryEntry{data: stored, version: entry.version + 1}
	m.collections[collection] = entry
	return strconv.FormatInt(entry.version, 10), nil
}

func (m *Memory) Close() error { return nil }
