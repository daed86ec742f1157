package vehicletracker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/travigo/fleettracker/pkg/ctdf"
)

// sessionEntry owns one session. Every read or write of session goes through mu.
type sessionEntry struct {
	mu      sync.Mutex
	session *ctdf.TrackingSession
	rules   []*compiledRule

	// readable without mu so the store never has to take a session lock
	dirty    atomic.Bool
	terminal atomic.Bool
	endedAt  atomic.Int64
}

func (e *sessionEntry) markTerminal(at time.Time) {
	e.endedAt.Store(at.UnixNano())
	e.terminal.Store(true)
}

// SessionStore maps session identifiers to their entries.
// The store lock is never held while a session lock is being acquired.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	byTrip   map[string]string
	byBus    map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: map[string]*sessionEntry{},
		byTrip:   map[string]string{},
		byBus:    map[string]string{},
	}
}

// Create registers a new session, a trip may only have one live session at a time
func (s *SessionStore) Create(session *ctdf.TrackingSession, rules []*compiledRule) (*sessionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.PrimaryIdentifier]; exists {
		return nil, newConflictError("session %s already exists", session.PrimaryIdentifier)
	}

	if existingID, exists := s.byTrip[session.TripRef]; exists {
		if existing := s.sessions[existingID]; existing != nil && !existing.terminal.Load() {
			return nil, newConflictError("trip %s already has live session %s", session.TripRef, existingID)
		}
	}

	entry := &sessionEntry{
		session: session,
		rules:   rules,
	}
	entry.dirty.Store(true)
	if session.Status.IsTerminal() {
		entry.markTerminal(session.EndDateTime)
	}

	s.sessions[session.PrimaryIdentifier] = entry
	s.byTrip[session.TripRef] = session.PrimaryIdentifier
	if session.BusRef != "" {
		s.byBus[session.BusRef] = session.PrimaryIdentifier
	}

	return entry, nil
}

func (s *SessionStore) get(identifier string) (*sessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.sessions[identifier]
	return entry, exists
}

// WithSession runs fn while holding the session lock
func (s *SessionStore) WithSession(identifier string, fn func(entry *sessionEntry) error) error {
	entry, exists := s.get(identifier)
	if !exists {
		return newNotFoundError("session", identifier)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return fn(entry)
}

// Entries returns a point in time list of every entry
func (s *SessionStore) Entries() []*sessionEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, entry := range s.sessions {
		entries = append(entries, entry)
	}

	return entries
}

// FindLiveByBus returns the live session currently tracking the vehicle
func (s *SessionStore) FindLiveByBus(busRef string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identifier, exists := s.byBus[busRef]
	if !exists {
		return "", false
	}

	entry := s.sessions[identifier]
	if entry == nil || entry.terminal.Load() {
		return "", false
	}

	return identifier, true
}

func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// EvictTerminal drops ended sessions that finished before the cutoff. When requireClean is set
// sessions with unwritten changes are kept.
func (s *SessionStore) EvictTerminal(before time.Time, requireClean bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for identifier, entry := range s.sessions {
		if !entry.terminal.Load() || entry.endedAt.Load() >= before.UnixNano() {
			continue
		}
		if requireClean && entry.dirty.Load() {
			continue
		}

		delete(s.sessions, identifier)
		evicted++

		for _, index := range []map[string]string{s.byTrip, s.byBus} {
			for key, value := range index {
				if value == identifier {
					delete(index, key)
				}
			}
		}
	}

	return evicted
}
