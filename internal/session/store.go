// ===============================
// File: internal/session/store.go
// ===============================
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Store persists sessions as one JSON document per session inside a fixed
// directory. Files are read then rewritten wholesale on each mutation;
// concurrent recovery runs against the same ledger are not supported and must
// be serialized externally.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("session store directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger.Named("session-store")}, nil
}

func (st *Store) pathFor(id string) string {
	return filepath.Join(st.dir, "session_"+id+".json")
}

// Save rewrites the session file in full.
func (st *Store) Save(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	path := st.pathFor(s.ID)
	// Ledger files contain private keys, hence the tight mode.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", path, err)
	}
	st.logger.Debug("Session saved",
		zap.String("session_id", s.ID),
		zap.String("path", path),
		zap.String("status", string(s.Status)))
	return nil
}

// LoadFile reads a session from an explicit path.
func (st *Store) LoadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session file %s: %w", path, err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("session file %s has no sessionId", path)
	}
	return &s, nil
}

// Load reads a session by id from the store directory.
func (st *Store) Load(id string) (*Session, error) {
	return st.LoadFile(st.pathFor(id))
}

// List returns every persisted session, newest first.
func (st *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory %s: %w", st.dir, err)
	}

	var sessions []*Session
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		s, err := st.LoadFile(filepath.Join(st.dir, name))
		if err != nil {
			st.logger.Warn("Skipping unreadable session file",
				zap.String("file", name),
				zap.Error(err))
			continue
		}
		sessions = append(sessions, s)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// LoadLatest returns the most recently created session.
func (st *Store) LoadLatest() (*Session, error) {
	sessions, err := st.List()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no sessions found in %s", st.dir)
	}
	return sessions[0], nil
}
