// Package session owns the per-user automation sessions and the busy
// gate that serializes lifecycle commands per user.
package session

import (
	"fmt"
	"sync"
	"time"

	. "github.com/mvanwyk/entrada/internal/logging"
	"github.com/mvanwyk/entrada/internal/portal"
)

// LaunchFunc constructs a fresh automation page for one user.
// Launching is expensive (spawns a browser process) and may fail.
type LaunchFunc func(userID int64) (portal.Page, error)

// Session is one user's browser-backed automation session. The registry
// owns it; a running command borrows it for the command's duration.
type Session struct {
	UserID    int64
	Page      portal.Page
	CreatedAt time.Time
}

// Registry maps user IDs to live sessions. The lock guards only the
// map; launching and closing browsers happens outside it so one user's
// slow launch never stalls another user's command.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	launch   LaunchFunc
}

// NewRegistry creates a registry that launches pages via launch.
func NewRegistry(launch LaunchFunc) *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		launch:   launch,
	}
}

// GetOrCreate returns the user's existing session if its page is still
// live, otherwise launches a new one. A launch failure leaves the
// registry unchanged.
func (r *Registry) GetOrCreate(userID int64) (*Session, error) {
	r.mu.Lock()
	if sess, ok := r.sessions[userID]; ok {
		if sess.Page.Alive() {
			r.mu.Unlock()
			return sess, nil
		}
		// Browser died underneath us; drop it and relaunch
		L_debug("session: existing page dead, relaunching", "user", userID)
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	// Spawning a browser takes seconds; launch without holding the lock
	page, err := r.launch(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to launch session: %w", err)
	}

	sess := &Session{
		UserID:    userID,
		Page:      page,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	if existing, ok := r.sessions[userID]; ok && existing.Page.Alive() {
		// Another caller installed a session while we were launching;
		// keep theirs and dispose of ours.
		r.mu.Unlock()
		if err := page.Close(); err != nil {
			L_warn("session: closing redundant launch failed", "user", userID, "error", err)
		}
		return existing, nil
	}
	r.sessions[userID] = sess
	r.mu.Unlock()

	L_info("session: created", "user", userID)
	return sess, nil
}

// Close releases the user's session if one exists. The entry is removed
// under the lock; the browser teardown runs after releasing it, so a
// close never blocks other users. Resource-release failures are logged,
// not propagated.
func (r *Registry) Close(userID int64) {
	r.mu.Lock()
	sess, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := sess.Page.Close(); err != nil {
		L_warn("session: close failed", "user", userID, "error", err)
	}
	L_info("session: closed", "user", userID)
}

// CloseAll releases every session. Used at process shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	users := make([]int64, 0, len(r.sessions))
	for id := range r.sessions {
		users = append(users, id)
	}
	r.mu.Unlock()

	for _, id := range users {
		r.Close(id)
	}
	L_info("session: closed all", "count", len(users))
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
