package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the encoded document in memory. It goes through the same
// codec as FileStore so tests see identical load semantics.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	Saves int
}

// NewMemoryStore seeds the store with doc.
func NewMemoryStore(doc Document) (*MemoryStore, error) {
	b, err := Encode(doc)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{data: b}, nil
}

func (m *MemoryStore) Load(_ context.Context) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return NewDocument(), nil
	}
	return Decode(m.data)
}

func (m *MemoryStore) Save(_ context.Context, doc Document) error {
	b, err := Encode(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data = b
	m.Saves++
	m.mu.Unlock()
	return nil
}

// Bytes returns a copy of the stored document.
func (m *MemoryStore) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
