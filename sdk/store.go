package laoshi

import "sync"

// SecureStore is the durable key/value primitive the SDK persists client
// state in: the rotating refresh token, the cached speaker preference, and
// the app-unlock timestamp. Implementations keep values private to the user;
// the SDK treats them as opaque strings.
//
// Get returns "" with a nil error when the key is absent.
type SecureStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore is a SecureStore that lives for the process only. It is the
// default when no store is configured, and what tests use.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key], nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
