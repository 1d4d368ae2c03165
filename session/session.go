// Package session persists the dashboard session between runs.
//
// A Store is the only place the token lives. Writers are limited to the login
// command, the logout command and the auth gate on rejection; they always set
// or clear the three fields together.
package session

import (
	"sync"

	"github.com/etnz/loandash"
)

// Store holds the current session.
type Store interface {
	// Get returns the current session, the zero Session when logged out.
	Get() loandash.Session
	// Set replaces the whole session.
	Set(token, userID, email string) error
	// Clear removes all fields at once.
	Clear() error
}

// MemoryStore is a Store that lives as long as the process.
type MemoryStore struct {
	mu sync.RWMutex
	s  loandash.Session
}

// NewMemoryStore returns a store holding s.
func NewMemoryStore(s loandash.Session) *MemoryStore { return &MemoryStore{s: s} }

func (m *MemoryStore) Get() loandash.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s
}

func (m *MemoryStore) Set(token, userID, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = loandash.Session{Token: token, UserID: userID, Email: email}
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = loandash.Session{}
	return nil
}
