package interactions

import "sync"

// Guard tracks in-flight action keys. An action whose key is already held is
// dropped, not queued: the caller returns immediately without speculating and
// without issuing a remote call.
type Guard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{keys: make(map[string]struct{})}
}

// Begin claims key. It returns false if the key is already held.
func (g *Guard) Begin(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, held := g.keys[key]; held {
		return false
	}
	g.keys[key] = struct{}{}
	return true
}

// End releases key. Releasing a key that is not held is a no-op.
func (g *Guard) End(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
}

// Pending reports whether key is currently held.
func (g *Guard) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, held := g.keys[key]
	return held
}
