package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/a2ahost/core"
	"github.com/hupe1980/a2ahost/logging"
)

// FileStoreOptions contains options for the file-backed store.
type FileStoreOptions struct {
	// Logger receives load and persistence events.
	Logger logging.Logger
}

// FileStore is a ConversationStore that snapshots every session as a JSON
// file named <user>_<chat>.json under its directory. All snapshots are loaded
// once at construction; every successful mutation rewrites the owning
// session's file atomically (write to temp, rename over), so a crashed write
// never corrupts the previous snapshot.
//
// The session key is read from the file contents, never parsed back out of
// the filename, so sanitized names stay unambiguous.
type FileStore struct {
	dir    string
	logger logging.Logger

	mu       sync.RWMutex
	sessions map[core.SessionKey]*core.Session
}

var _ core.ConversationStore = (*FileStore)(nil)

// NewFileStore creates a file-backed conversation store rooted at dir,
// creating the directory when missing and loading every existing snapshot.
// Malformed snapshot files are logged and skipped, not fatal.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create session dir %s: %v", core.ErrStorageUnavailable, dir, err)
	}

	s := &FileStore{
		dir:      dir,
		logger:   logging.OrNoOp(opts.Logger),
		sessions: make(map[core.SessionKey]*core.Session),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	return s, nil
}

// Append records one turn at the end of the session history and persists the
// snapshot. When the write fails neither memory nor disk change.
func (s *FileStore) Append(key core.SessionKey, turn core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.nextLocked(key)
	next.AppendTurn(turn)

	if err := s.persistLocked(next); err != nil {
		return err
	}

	s.sessions[key] = next

	return nil
}

// Read returns up to limit most recent turns in chronological order. A
// never-seen key yields an empty history and creates nothing.
func (s *FileStore) Read(key core.SessionKey, limit int) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}

	return sess.History(limit), nil
}

// RecordTaskRef stores the outstanding task id for an agent and persists the
// snapshot.
func (s *FileStore) RecordTaskRef(key core.SessionKey, agentAddress, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.nextLocked(key)
	next.SetTaskRef(agentAddress, taskID)

	if err := s.persistLocked(next); err != nil {
		return err
	}

	s.sessions[key] = next

	return nil
}

// TaskRef reports the outstanding task id recorded for an agent.
func (s *FileStore) TaskRef(key core.SessionKey, agentAddress string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return "", false
	}

	return sess.TaskRef(agentAddress)
}

// ClearTaskRef removes the outstanding task reference for an agent and
// persists the snapshot. Clearing an absent reference is a no-op without I/O.
func (s *FileStore) ClearTaskRef(key core.SessionKey, agentAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil
	}

	if _, ok := sess.TaskRef(agentAddress); !ok {
		return nil
	}

	next := sess.Clone()
	next.ClearTaskRef(agentAddress)

	if err := s.persistLocked(next); err != nil {
		return err
	}

	s.sessions[key] = next

	return nil
}

// Session returns a clone of the stored session, when present.
func (s *FileStore) Session(key core.SessionKey) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}

	return sess.Clone(), true
}

// Len returns the number of stored sessions.
func (s *FileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

// nextLocked returns a mutable working copy of the session for key, starting
// from an empty session when unknown. Caller must hold the write lock.
func (s *FileStore) nextLocked(key core.SessionKey) *core.Session {
	if sess, ok := s.sessions[key]; ok {
		return sess.Clone()
	}

	return core.NewSession(key)
}

// load reads every *.json snapshot under the store directory into the index.
func (s *FileStore) load() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("%w: read session dir %s: %v", core.ErrStorageUnavailable, s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("skipping unreadable session snapshot", "file", entry.Name(), "error", err)

			continue
		}

		var sess core.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			s.logger.Warn("skipping malformed session snapshot", "file", entry.Name(), "error", err)

			continue
		}

		if sess.Key.UserID == "" && sess.Key.ChatID == "" {
			s.logger.Warn("skipping session snapshot without a key", "file", entry.Name())

			continue
		}

		s.sessions[sess.Key] = sess.Clone()
	}

	s.logger.Debug("session snapshots loaded", "dir", s.dir, "sessions", len(s.sessions))

	return nil
}

// persistLocked atomically writes the session snapshot. Caller must hold the
// write lock.
func (s *FileStore) persistLocked(sess *core.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal session %s: %v", core.ErrStorageUnavailable, sess.Key, err)
	}

	path := s.path(sess.Key)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write session snapshot %s: %v", core.ErrStorageUnavailable, sess.Key, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: replace session snapshot %s: %v", core.ErrStorageUnavailable, sess.Key, err)
	}

	return nil
}

// path renders the snapshot filename for a session key.
func (s *FileStore) path(key core.SessionKey) string {
	return filepath.Join(s.dir, sanitize(key.UserID)+"_"+sanitize(key.ChatID)+".json")
}

// sanitize replaces filesystem-hostile runes so keys map to portable
// filenames.
func sanitize(s string) string {
	var sb strings.Builder

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteRune('-')
		}
	}

	if sb.Len() == 0 {
		return "unknown"
	}

	return sb.String()
}
