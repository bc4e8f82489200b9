package web

import (
	"context"
	"sync"
)

// ClientSet tracks live connections. Membership is the liveness flag each
// broadcast loop checks before sending.
type ClientSet struct {
	mutex   sync.RWMutex
	clients map[string]context.CancelFunc
}

func NewClientSet() *ClientSet {
	return &ClientSet{clients: make(map[string]context.CancelFunc)}
}

// Add inserts id. A stale entry under the same id is cancelled and replaced.
func (s *ClientSet) Add(id string, cancel context.CancelFunc) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if old, exists := s.clients[id]; exists && old != nil {
		old()
	}
	s.clients[id] = cancel
}

// Remove deletes id and cancels its loop. It reports whether id was present.
// Once Remove returns, no send guarded by IfLive can happen for id.
func (s *ClientSet) Remove(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cancel, exists := s.clients[id]
	if !exists {
		return false
	}
	if cancel != nil {
		cancel()
	}
	delete(s.clients, id)
	return true
}

func (s *ClientSet) Has(id string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, exists := s.clients[id]
	return exists
}

// IfLive runs fn while holding the membership read lock, only if id is present.
func (s *ClientSet) IfLive(id string, fn func()) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if _, exists := s.clients[id]; !exists {
		return false
	}
	fn()
	return true
}

func (s *ClientSet) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients)
}

// Close removes every client and cancels all loops.
func (s *ClientSet) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, cancel := range s.clients {
		if cancel != nil {
			cancel()
		}
		delete(s.clients, id)
	}
}
