package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/mvanwyk/entrada/internal/portal"
)

// fakePage is a minimal portal.Page for registry tests.
type fakePage struct {
	alive    bool
	closed   bool
	closeErr error
}

func (p *fakePage) Navigate(string) error { return nil }

func (p *fakePage) Element(string) (portal.Element, error) { return nil, portal.ErrNotFound }

func (p *fakePage) Elements(string) ([]portal.Element, error) { return nil, nil }

func (p *fakePage) Alive() bool { return p.alive }

func (p *fakePage) Close() error {
	p.alive = false
	p.closed = true
	return p.closeErr
}

func TestRegistryReusesLiveSession(t *testing.T) {
	launches := 0
	r := NewRegistry(func(int64) (portal.Page, error) {
		launches++
		return &fakePage{alive: true}, nil
	})

	first, err := r.GetOrCreate(1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := r.GetOrCreate(1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	if first != second {
		t.Fatal("expected the same session to be reused")
	}
	if launches != 1 {
		t.Fatalf("expected 1 launch, got %d", launches)
	}
}

func TestRegistryRelaunchesDeadSession(t *testing.T) {
	launches := 0
	r := NewRegistry(func(int64) (portal.Page, error) {
		launches++
		return &fakePage{alive: true}, nil
	})

	sess, err := r.GetOrCreate(1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	sess.Page.(*fakePage).alive = false

	fresh, err := r.GetOrCreate(1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if fresh == sess {
		t.Fatal("expected a fresh session for a dead page")
	}
	if launches != 2 {
		t.Fatalf("expected 2 launches, got %d", launches)
	}
}

func TestRegistryCloseCreatesFreshHandle(t *testing.T) {
	launches := 0
	r := NewRegistry(func(int64) (portal.Page, error) {
		launches++
		return &fakePage{alive: true}, nil
	})

	sess, err := r.GetOrCreate(1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	page := sess.Page.(*fakePage)

	r.Close(1)

	if !page.closed {
		t.Fatal("expected the page to be closed")
	}

	fresh, err := r.GetOrCreate(1)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if fresh.Page == sess.Page {
		t.Fatal("expected a fresh handle after Close, not the disposed one")
	}
	if launches != 2 {
		t.Fatalf("expected 2 launches, got %d", launches)
	}
}

func TestRegistryCloseSwallowsReleaseFailure(t *testing.T) {
	r := NewRegistry(func(int64) (portal.Page, error) {
		return &fakePage{alive: true, closeErr: errors.New("browser already gone")}, nil
	})

	if _, err := r.GetOrCreate(1); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	r.Close(1) // must not panic or leave the entry behind

	if r.Count() != 0 {
		t.Fatalf("expected 0 sessions, got %d", r.Count())
	}
}

func TestRegistryLaunchFailureLeavesNoEntry(t *testing.T) {
	r := NewRegistry(func(int64) (portal.Page, error) {
		return nil, errors.New("no browser available")
	})

	if _, err := r.GetOrCreate(1); err == nil {
		t.Fatal("expected launch error")
	}
	if r.Count() != 0 {
		t.Fatalf("expected 0 sessions after failed launch, got %d", r.Count())
	}
}

func TestRegistryLaunchDoesNotBlockOtherUsers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := NewRegistry(func(userID int64) (portal.Page, error) {
		if userID == 1 {
			close(started)
			<-release
		}
		return &fakePage{alive: true}, nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := r.GetOrCreate(1); err != nil {
			t.Errorf("GetOrCreate(1) failed: %v", err)
		}
	}()
	<-started

	// User 1's launch is parked; user 2 and the registry accessors must
	// not queue behind it
	if _, err := r.GetOrCreate(2); err != nil {
		t.Fatalf("GetOrCreate(2) failed: %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 session while user 1 is still launching, got %d", r.Count())
	}
	r.Close(2)
	if r.Count() != 0 {
		t.Fatalf("expected 0 sessions after closing user 2, got %d", r.Count())
	}

	close(release)
	<-done

	if r.Count() != 1 {
		t.Fatalf("expected user 1's session installed, got %d", r.Count())
	}
}

func TestRegistryConcurrentLaunchesForSameUserKeepOneSession(t *testing.T) {
	var launched sync.WaitGroup
	launched.Add(2)
	proceed := make(chan struct{})

	var mu sync.Mutex
	var pages []*fakePage

	r := NewRegistry(func(int64) (portal.Page, error) {
		p := &fakePage{alive: true}
		mu.Lock()
		pages = append(pages, p)
		mu.Unlock()
		launched.Done()
		<-proceed
		return p, nil
	})

	results := make(chan *Session, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s, err := r.GetOrCreate(1)
			if err != nil {
				t.Errorf("GetOrCreate failed: %v", err)
			}
			results <- s
		}()
	}
	launched.Wait()
	close(proceed)

	first, second := <-results, <-results
	if first != second {
		t.Fatal("expected both callers to end up with the same session")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Count())
	}

	closed := 0
	for _, p := range pages {
		if p.closed {
			closed++
		}
	}
	if closed != 1 {
		t.Fatalf("expected exactly the redundant launch to be closed, got %d closed pages", closed)
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry(func(int64) (portal.Page, error) {
		return &fakePage{alive: true}, nil
	})

	for id := int64(1); id <= 3; id++ {
		if _, err := r.GetOrCreate(id); err != nil {
			t.Fatalf("GetOrCreate(%d) failed: %v", id, err)
		}
	}

	r.CloseAll()

	if r.Count() != 0 {
		t.Fatalf("expected 0 sessions after CloseAll, got %d", r.Count())
	}
}
