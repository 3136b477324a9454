package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is an in-process Store. Values round-trip through JSON so its
// fidelity matches the Postgres JSONB store; tests that pass against
// Memory exercise the same serialization the production store does.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]byte)}
}

// Load unmarshals the stored value into dest. A missing table leaves dest
// untouched, mirroring the no-rows behavior of the Postgres store.
func (m *Memory) Load(_ context.Context, table string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.tables[table]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// Save marshals and stores the value under the table name.
func (m *Memory) Save(_ context.Context, table string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.tables[table] = raw
	return nil
}
