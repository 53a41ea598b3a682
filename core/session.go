package core

import (
	"sync"
	"time"
)

// SessionKey identifies a conversation by user and chat. Distinct keys are
// fully independent conversations: the same user in two chats yields two
// sessions that never observe each other.
type SessionKey struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
}

// String renders the key in user:chat form.
func (k SessionKey) String() string {
	return k.UserID + ":" + k.ChatID
}

// Session is a conversational container tracking an ordered turn history plus
// the outstanding task reference per remote agent. It is safe for concurrent
// access.
//
// Contract:
//   - AppendTurn preserves arrival order and updates the Updated timestamp
//   - History returns a defensive copy, oldest turn first
//   - TaskRefs map agent address -> task id for exchanges awaiting follow-up
//   - Clone deep copies turns and refs for safe divergence.
type Session struct {
	Key      SessionKey        `json:"key"`
	Turns    []Turn            `json:"turns"`
	TaskRefs map[string]string `json:"task_refs,omitempty"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	mu       sync.RWMutex
}

// NewSession creates an empty session for the given key.
func NewSession(key SessionKey) *Session {
	now := time.Now().UTC()
	return &Session{Key: key, Turns: []Turn{}, TaskRefs: map[string]string{}, Created: now, Updated: now}
}

// AppendTurn appends a turn to the history updating the Updated timestamp.
func (s *Session) AppendTurn(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Turns = append(s.Turns, t)
	s.Updated = time.Now().UTC()
}

// History returns up to limit most recent turns in chronological order. A
// non-positive limit returns the full history.
func (s *Session) History(limit int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := s.Turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Len returns the number of recorded turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Turns)
}

// SetTaskRef records the outstanding task id for an agent address, replacing
// any previous reference.
func (s *Session) SetTaskRef(agentAddress, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.TaskRefs == nil {
		s.TaskRefs = map[string]string{}
	}
	s.TaskRefs[agentAddress] = taskID
	s.Updated = time.Now().UTC()
}

// TaskRef returns the outstanding task id recorded for an agent address.
func (s *Session) TaskRef(agentAddress string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.TaskRefs[agentAddress]
	return id, ok
}

// ClearTaskRef removes the outstanding task reference for an agent address.
// Clearing an absent reference is a no-op.
func (s *Session) ClearTaskRef(agentAddress string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.TaskRefs[agentAddress]; !ok {
		return
	}
	delete(s.TaskRefs, agentAddress)
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{
		Key:      s.Key,
		Turns:    make([]Turn, len(s.Turns)),
		TaskRefs: make(map[string]string, len(s.TaskRefs)),
		Created:  s.Created,
		Updated:  s.Updated,
	}
	copy(clone.Turns, s.Turns)
	for k, v := range s.TaskRefs {
		clone.TaskRefs[k] = v
	}
	return clone
}

// ConversationStore persists conversation sessions keyed by (user, chat).
// Implementations must be safe for concurrent use and must serialize
// mutations within one session so arrival order is preserved.
//
// A never-seen key is not an error: Read returns an empty history and
// TaskRef reports absence. Only infrastructure faults (for example an
// unwritable snapshot directory) surface as errors, wrapped with
// ErrStorageUnavailable.
type ConversationStore interface {
	// Append records one turn at the end of the session history, creating
	// the session on first use.
	Append(key SessionKey, turn Turn) error

	// Read returns up to limit most recent turns in chronological order. A
	// non-positive limit returns the full history.
	Read(key SessionKey, limit int) ([]Turn, error)

	// RecordTaskRef stores the outstanding task id for an agent within the
	// session, replacing any previous reference.
	RecordTaskRef(key SessionKey, agentAddress, taskID string) error

	// TaskRef reports the outstanding task id recorded for an agent.
	TaskRef(key SessionKey, agentAddress string) (string, bool)

	// ClearTaskRef removes the outstanding task reference for an agent.
	// Clearing an absent reference is a no-op.
	ClearTaskRef(key SessionKey, agentAddress string) error
}
