package client

import "sync"

// NavigationLatch dedupes one-time UI transition triggers. The change feed
// is at-least-once and several observers may react to the same transition;
// the latch guarantees the navigation effect fires exactly once per match.
type NavigationLatch struct {
	mu    sync.Mutex
	fired map[string]struct{}
}

func NewNavigationLatch() *NavigationLatch {
	return &NavigationLatch{fired: make(map[string]struct{})}
}

// TryNavigate returns true the first time it is called for matchID and false
// afterwards, until Clear releases the id.
func (l *NavigationLatch) TryNavigate(matchID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.fired[matchID]; ok {
		return false
	}
	l.fired[matchID] = struct{}{}
	return true
}

// Clear releases the latch for matchID.
func (l *NavigationLatch) Clear(matchID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.fired, matchID)
}
