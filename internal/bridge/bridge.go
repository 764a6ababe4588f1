// Package bridge relays values between the asynchronous chat channel and
// the blocking automation flow. A running command arms a per-user slot
// and blocks on it; the message-receive path fills the slot without ever
// blocking itself.
package bridge

import (
	"errors"
	"sync"
	"time"

	. "github.com/mvanwyk/entrada/internal/logging"
)

// ErrTimeout is returned when the user does not answer within the window.
// Callers treat it as a recoverable failure for that step.
var ErrTimeout = errors.New("timed out waiting for input")

// DefaultTimeout is the wait applied when the caller passes zero.
const DefaultTimeout = 60 * time.Second

// Transport is the chat channel the bridge talks through. Implemented by
// internal/telegram.
type Transport interface {
	// SendText sends a message and returns its ID for later deletion
	SendText(chatID int64, text string) (messageID int, err error)

	// SendImage sends an image file with a caption
	SendImage(chatID int64, path string, caption string) error

	// DeleteMessage removes a previously sent message. Best effort.
	DeleteMessage(chatID int64, messageID int) error
}

// Bridge owns the pending-input slots and the per-user status line.
type Bridge struct {
	transport Transport

	mu    sync.Mutex
	slots map[int64]chan string

	statusMu   sync.Mutex
	lastStatus map[int64]int
}

// New creates a bridge over the given transport.
func New(transport Transport) *Bridge {
	return &Bridge{
		transport:  transport,
		slots:      make(map[int64]chan string),
		lastStatus: make(map[int64]int),
	}
}

// RequestText sends the prompt to the user and blocks until they answer
// or the timeout elapses. Each user has at most one armed slot; a second
// concurrent request for the same user fails immediately.
func (b *Bridge) RequestText(userID int64, prompt string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ch, err := b.arm(userID)
	if err != nil {
		return "", err
	}
	defer b.disarm(userID)

	if _, err := b.transport.SendText(userID, prompt); err != nil {
		return "", err
	}

	select {
	case text := <-ch:
		return text, nil
	case <-time.After(timeout):
		L_warn("bridge: input timed out", "user", userID, "timeout", timeout)
		return "", ErrTimeout
	}
}

// RequestImageText sends an image with a caption, then waits for the
// user's answer to the prompt like RequestText.
func (b *Bridge) RequestImageText(userID int64, imagePath, caption, prompt string, timeout time.Duration) (string, error) {
	if err := b.transport.SendImage(userID, imagePath, caption); err != nil {
		return "", err
	}
	return b.RequestText(userID, prompt, timeout)
}

// Deliver offers an inbound message to the user's armed slot. Returns
// true when the slot accepted it (first delivery wins). Messages arriving
// with no armed slot are dropped. Never blocks; it runs on the
// message-receive path.
func (b *Bridge) Deliver(userID int64, text string) bool {
	b.mu.Lock()
	ch, ok := b.slots[userID]
	b.mu.Unlock()

	if !ok {
		return false
	}

	select {
	case ch <- text:
		return true
	default:
		// Slot already filled and not yet consumed
		return false
	}
}

// Notify sends a status line, replacing the previous one so the chat
// shows a single current status. Failures are logged and swallowed.
func (b *Bridge) Notify(userID int64, text string) {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	if msgID, ok := b.lastStatus[userID]; ok {
		if err := b.transport.DeleteMessage(userID, msgID); err != nil {
			L_debug("bridge: delete old status failed", "user", userID, "error", err)
		}
		delete(b.lastStatus, userID)
	}

	msgID, err := b.transport.SendText(userID, text)
	if err != nil {
		L_warn("bridge: status send failed", "user", userID, "error", err)
		return
	}
	b.lastStatus[userID] = msgID
}

// ClearStatus deletes the user's current status line, if any.
func (b *Bridge) ClearStatus(userID int64) {
	b.statusMu.Lock()
	defer b.statusMu.Unlock()

	if msgID, ok := b.lastStatus[userID]; ok {
		if err := b.transport.DeleteMessage(userID, msgID); err != nil {
			L_debug("bridge: clear status failed", "user", userID, "error", err)
		}
		delete(b.lastStatus, userID)
	}
}

func (b *Bridge) arm(userID int64) (chan string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.slots[userID]; ok {
		return nil, errors.New("input request already pending")
	}

	// Capacity 1 so Deliver never blocks and the first value sticks
	ch := make(chan string, 1)
	b.slots[userID] = ch
	return ch, nil
}

func (b *Bridge) disarm(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, userID)
}
