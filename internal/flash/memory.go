package flash

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	msg     Message
	expires time.Time
}

// MemoryStore keeps flash messages in process. Used when no Redis address
// is configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Put(_ context.Context, key string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// drop expired entries on write so abandoned flashes do not pile up
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = entry{msg: msg, expires: now.Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, key string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return Message{}, ErrEmpty
	}
	delete(m.entries, key)
	if m.now().After(e.expires) {
		return Message{}, ErrEmpty
	}
	return e.msg, nil
}
