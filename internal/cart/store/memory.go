package store

import (
	"context"
	"sync"

	"github.com/zuhaib446/nayab-gemstone/internal/cart/domain"
)

// MemoryStore keeps serialized carts in process. It has no expiry.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string][]byte)}
}

func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]domain.Line, error) {
	m.mu.RLock()
	data, ok := m.carts[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrCartNotFound
	}
	return decode(data)
}

func (m *MemoryStore) Save(_ context.Context, sessionID string, lines []domain.Line) error {
	data, err := encode(lines)
	if err != nil {
		return err
	}
	m.SetRaw(sessionID, data)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

// SetRaw stores bytes as-is, bypassing encoding.
func (m *MemoryStore) SetRaw(sessionID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sessionID] = data
}
