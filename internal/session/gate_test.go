package session

import "testing"

func TestGateTryEnterBlocksUntilExit(t *testing.T) {
	g := NewGate()

	if !g.TryEnter(1) {
		t.Fatal("first TryEnter should succeed")
	}
	if g.TryEnter(1) {
		t.Fatal("second TryEnter should fail while busy")
	}

	g.Exit(1)

	if !g.TryEnter(1) {
		t.Fatal("TryEnter should succeed after Exit")
	}
}

func TestGateExitIsIdempotent(t *testing.T) {
	g := NewGate()

	g.Exit(7) // never entered
	g.Exit(7)

	if !g.TryEnter(7) {
		t.Fatal("TryEnter should succeed after redundant exits")
	}

	g.Exit(7)
	g.Exit(7)

	if !g.TryEnter(7) {
		t.Fatal("TryEnter should succeed again")
	}
}

func TestGateIsPerUser(t *testing.T) {
	g := NewGate()

	if !g.TryEnter(1) {
		t.Fatal("user 1 should enter")
	}
	if !g.TryEnter(2) {
		t.Fatal("user 2 should enter independently of user 1")
	}
	if g.TryEnter(1) || g.TryEnter(2) {
		t.Fatal("both users should be busy")
	}

	g.Exit(1)
	if !g.Busy(2) {
		t.Fatal("user 2 should still be busy")
	}
	if g.Busy(1) {
		t.Fatal("user 1 should be free")
	}
}
