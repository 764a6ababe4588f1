package session

import "sync"

// Gate is the per-user busy flag preventing two lifecycle commands from
// running concurrently for the same user. Commands that fail TryEnter are
// rejected immediately; Exit must run on every exit path.
type Gate struct {
	mu   sync.Mutex
	busy map[int64]struct{}
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{busy: make(map[int64]struct{})}
}

// TryEnter atomically marks the user busy. Returns false without side
// effect if the user is already busy.
func (g *Gate) TryEnter(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.busy[userID]; ok {
		return false
	}
	g.busy[userID] = struct{}{}
	return true
}

// Exit clears the user's busy flag. Idempotent.
func (g *Gate) Exit(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, userID)
}

// Busy reports whether the user currently holds the gate.
func (g *Gate) Busy(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[userID]
	return ok
}
