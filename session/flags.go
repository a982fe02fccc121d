package session

import "sync"

// DisconnectFlagKey marks that the user explicitly disconnected. While set,
// RestoreIfPossible does nothing.
const DisconnectFlagKey = "walletDisconnectedByUser"

// FlagStore keeps session scoped boolean flags.
type FlagStore interface {
	Get(key string) bool
	Set(key string)
	Clear(key string)
}

var _ FlagStore = (*MemoryFlagStore)(nil)

// MemoryFlagStore is a FlagStore that lives as long as the process.
type MemoryFlagStore struct {
	mu    sync.RWMutex
	flags map[string]struct{}
}

func NewMemoryFlagStore() *MemoryFlagStore {
	return &MemoryFlagStore{flags: make(map[string]struct{})}
}

func (s *MemoryFlagStore) Get(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.flags[key]
	return ok
}

func (s *MemoryFlagStore) Set(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = struct{}{}
}

func (s *MemoryFlagStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags, key)
}
