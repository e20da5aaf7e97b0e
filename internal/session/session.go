// Package session persists the authenticated dashboard session for Opsdesk.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Session holds the bearer token and the identity it was issued to.
type Session struct {
	// Token is the bearer token sent on every API request.
	Token string `yaml:"token,omitempty"`
	// UserID is the authenticated team member's ID.
	UserID string `yaml:"user_id,omitempty"`
	// UserName is the human-readable name (for display).
	UserName string `yaml:"user_name,omitempty"`
	// BaseURL is the API the session was issued by.
	BaseURL string `yaml:"base_url,omitempty"`
	// CreatedAt is when the session was saved.
	CreatedAt time.Time `yaml:"created_at,omitempty"`
}

// IsEmpty returns true if no session is set.
func (s *Session) IsEmpty() bool {
	return s.Token == ""
}

// Store manages loading and saving the session file.
type Store struct {
	path string
	mu   sync.RWMutex
}

// NewStore creates a session store at path.
// If path is empty, uses the default path (~/.config/opsdesk/session.yaml).
func NewStore(path string) *Store {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "opsdesk", "session.yaml")
	}
	return &Store{path: path}
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the session from disk.
// Returns an empty session if the file doesn't exist.
func (s *Store) Load() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess := &Session{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return sess, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	if err := yaml.Unmarshal(data, sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	return sess, nil
}

// Save writes the session to disk. The file carries a credential, so it is
// written 0600.
func (s *Store) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Clear removes the session file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
