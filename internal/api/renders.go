package api

import "sync"

// renderSet tracks clips with a render in flight so a second request for
// the same clip is refused instead of racing the first.
type renderSet struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newRenderSet() *renderSet {
	return &renderSet{active: make(map[string]struct{})}
}

// acquire marks key busy. It reports false when key is already rendering.
func (s *renderSet) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[key]; busy {
		return false
	}
	s.active[key] = struct{}{}
	return true
}

func (s *renderSet) release(key string) {
	s.mu.Lock()
	delete(s.active, key)
	s.mu.Unlock()
}
