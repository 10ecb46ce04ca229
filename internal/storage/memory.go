package storage

import (
	"sync"
	"time"
)

// MemoryStore 进程内会话，重启后丢失
type MemoryStore struct {
	sessions map[int64]SessionEntry
	mu       sync.RWMutex
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]SessionEntry),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(chatID int64) (*SessionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.sessions[chatID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return &entry, nil
}

// Put 覆盖该 chat 的记录
func (m *MemoryStore) Put(entry *SessionEntry) error {
	if entry == nil || entry.TweetURL == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e := *entry
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = m.now()
	}
	m.sessions[e.ChatID] = e
	return nil
}
