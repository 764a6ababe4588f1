// Package commands implements the lifecycle commands the chat dispatcher
// exposes: start, login, operate, logout. Every command for a user runs
// under the busy gate; a second command while one is in flight is
// rejected without touching session state.
package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/mvanwyk/entrada/internal/bridge"
	. "github.com/mvanwyk/entrada/internal/logging"
	"github.com/mvanwyk/entrada/internal/portal"
	"github.com/mvanwyk/entrada/internal/session"
)

// ErrBusy is returned when a lifecycle command is rejected because the
// user already has one in flight.
var ErrBusy = errors.New("an operation is already in progress")

// Handler wires the busy gate, session registry, bridge and orchestrator
// into the user-facing lifecycle commands.
type Handler struct {
	gate     *session.Gate
	registry *session.Registry
	bridge   *bridge.Bridge
	orch     *portal.Orchestrator
}

// NewHandler creates the command handler.
func NewHandler(gate *session.Gate, registry *session.Registry, b *bridge.Bridge, orch *portal.Orchestrator) *Handler {
	return &Handler{
		gate:     gate,
		registry: registry,
		bridge:   b,
		orch:     orch,
	}
}

// Start creates (or revives) the user's session so later commands start
// faster. Returns ErrBusy when another command is running.
func (h *Handler) Start(userID int64) error {
	return h.run(userID, "start", func() error {
		if _, err := h.registry.GetOrCreate(userID); err != nil {
			h.bridge.Notify(userID, "❌ Could not start a browser session. Please try again later.")
			return err
		}
		return nil
	})
}

// Login runs the login workflow. The session is torn down on anything
// but success, matching the portal's one-session-per-login behavior.
func (h *Handler) Login(ctx context.Context, userID int64) error {
	return h.run(userID, "login", func() error {
		sess, err := h.registry.GetOrCreate(userID)
		if err != nil {
			h.bridge.Notify(userID, "❌ Could not start a browser session. Please try again later.")
			return err
		}

		outcome := h.orch.Login(ctx, userID, sess.Page)
		L_info("commands: login finished", "user", userID, "outcome", outcome.String())

		if outcome != portal.OutcomeSuccess {
			h.registry.Close(userID)
		}
		return nil
	})
}

// Operate runs the post-login data-entry workflow on the existing
// session.
func (h *Handler) Operate(userID int64) error {
	return h.run(userID, "operations", func() error {
		sess, err := h.registry.GetOrCreate(userID)
		if err != nil {
			h.bridge.Notify(userID, "❌ Could not start a browser session. Please try again later.")
			return err
		}

		completed := h.orch.Operate(userID, sess.Page)
		L_info("commands: operations finished", "user", userID, "completed", completed)
		return nil
	})
}

// Logout tears the session down. It deliberately skips the busy gate so
// it can cancel an in-flight command: closing the browser makes that
// command's next page operation fail fast. The busy flag is cleared
// here and nowhere else outside run; a teardown inside a gated command
// (a failed login) must not release the gate, or the command's own
// deferred Exit would clear a successor's flag.
func (h *Handler) Logout(userID int64) {
	h.bridge.ClearStatus(userID)
	h.registry.Close(userID)
	h.gate.Exit(userID)
}

// run wraps a lifecycle command with the busy gate and the command
// boundary: the gate is released on every exit path and panics become a
// user-visible status instead of taking the process down.
func (h *Handler) run(userID int64, name string, fn func() error) error {
	if !h.gate.TryEnter(userID) {
		return ErrBusy
	}
	defer h.gate.Exit(userID)

	defer func() {
		if r := recover(); r != nil {
			L_error("commands: panic during command", "user", userID, "command", name, "panic", r)
			h.bridge.Notify(userID, fmt.Sprintf("❌ Something went wrong during %s. Use /logout to reset.", name))
		}
	}()

	h.bridge.ClearStatus(userID)
	return fn()
}
