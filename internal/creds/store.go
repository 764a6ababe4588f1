// Package creds persists per-user portal credentials.
//
// The store is a single JSON file keyed by user ID, read in full and
// rewritten in full on every mutation. Credentials must be replayable
// against the portal's login form, so they are stored as entered.
package creds

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/mvanwyk/entrada/internal/config"
)

// Credentials is one user's saved portal login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Store reads and writes the credential file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Lookup returns the user's saved credentials, or ok=false when absent.
// A missing store file counts as empty, not an error.
func (s *Store) Lookup(userID int64) (Credentials, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return Credentials{}, false, err
	}

	c, ok := all[key(userID)]
	return c, ok, nil
}

// Save records the user's credentials, replacing any previous entry.
func (s *Store) Save(userID int64, c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	all[key(userID)] = c
	return s.writeAll(all)
}

// Delete removes the user's credentials. Deleting an absent entry is a
// no-op.
func (s *Store) Delete(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	if _, ok := all[key(userID)]; !ok {
		return nil
	}

	delete(all, key(userID))
	return s.writeAll(all)
}

func (s *Store) readAll() (map[string]Credentials, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]Credentials), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential store: %w", err)
	}

	all := make(map[string]Credentials)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &all); err != nil {
			return nil, fmt.Errorf("failed to parse credential store: %w", err)
		}
	}
	return all, nil
}

func (s *Store) writeAll(all map[string]Credentials) error {
	return config.AtomicWriteJSON(s.path, all, 0600)
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
