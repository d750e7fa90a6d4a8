package services

import (
	"sync"
	"time"
)

// memCache is a single-level in-memory CacheService for tests.
type memCache struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]interface{})}
}

func (m *memCache) GetCache(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memCache) SetCache(key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memCache) DelCache(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memCache) GetOrLoad(key string, expiration time.Duration, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := m.GetCache(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	_ = m.SetCache(key, v, expiration)
	return v, nil
}

func newTestConversationStore() *ConversationStore {
	return NewConversationStore(newMemCache(), 4096)
}
