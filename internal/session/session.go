// Package session holds the project record that phase calls operate on.
package session

import (
	"context"
	"sync"

	"github.com/HendryAvila/devflow/internal/project"
)

// Loader is the part of the store a session needs to resume a project.
type Loader interface {
	Load(ctx context.Context, id string) (*project.Record, error)
}

// Session holds at most one active record. Callers get copies, so a failed
// phase call can never leave a half-mutated record behind.
type Session struct {
	mu     sync.RWMutex
	active *project.Record
}

// New returns a session with no active project.
func New() *Session {
	return &Session{}
}

// Active returns a copy of the active record, or nil.
func (s *Session) Active() *project.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	return s.active.Clone()
}

// ActiveID returns the id of the active record, or "".
func (s *Session) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID
}

// Set makes a copy of rec the active record, replacing any previous one.
func (s *Session) Set(rec *project.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec == nil {
		s.active = nil
		return
	}
	s.active = rec.Clone()
}

// Clear drops the active record.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = nil
}

// Resume loads a stored project and makes it active.
func (s *Session) Resume(ctx context.Context, store Loader, id string) (*project.Record, error) {
	rec, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Set(rec)
	return rec, nil
}
