package session

import (
	"sync"

	"github.com/hupe1980/a2ahost/core"
)

// InMemoryStore is a volatile ConversationStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demos. Reads hand back defensive copies so
// callers can never mutate stored history.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[core.SessionKey]*core.Session
}

var _ core.ConversationStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[core.SessionKey]*core.Session)}
}

// Append records one turn at the end of the session history, creating the
// session lazily on first use.
func (s *InMemoryStore) Append(key core.SessionKey, turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionLocked(key).AppendTurn(turn)

	return nil
}

// Read returns up to limit most recent turns in chronological order. A
// never-seen key yields an empty history and creates nothing.
func (s *InMemoryStore) Read(key core.SessionKey, limit int) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}

	return sess.History(limit), nil
}

// RecordTaskRef stores the outstanding task id for an agent, creating the
// session lazily on first use.
func (s *InMemoryStore) RecordTaskRef(key core.SessionKey, agentAddress, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessionLocked(key).SetTaskRef(agentAddress, taskID)

	return nil
}

// TaskRef reports the outstanding task id recorded for an agent.
func (s *InMemoryStore) TaskRef(key core.SessionKey, agentAddress string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return "", false
	}

	return sess.TaskRef(agentAddress)
}

// ClearTaskRef removes the outstanding task reference for an agent. Clearing
// an absent reference (or an unknown session) is a no-op.
func (s *InMemoryStore) ClearTaskRef(key core.SessionKey, agentAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}

	sess.ClearTaskRef(agentAddress)

	return nil
}

// Session returns a clone of the stored session, when present.
func (s *InMemoryStore) Session(key core.SessionKey) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}

	return sess.Clone(), true
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// sessionLocked returns the session for key, allocating it when absent.
// Caller must hold the write lock.
func (s *InMemoryStore) sessionLocked(key core.SessionKey) *core.Session {
	sess, ok := s.sessions[key]
	if !ok {
		sess = core.NewSession(key)
		s.sessions[key] = sess
	}

	return sess
}
