// Package snapshot caches the last successfully fetched inbox state in a
// local SQLite database. The cache seeds views at startup and keeps stale
// data on screen when a refresh fails; it is never authoritative.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opsdeskhq/opsdesk/internal/inbox"
)

// ErrMiss means nothing has been cached under the requested key yet.
var ErrMiss = errors.New("snapshot miss")

// Store is a local conversation cache.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the snapshot database at path.
func Open(path string, busyTimeoutMs int) (*Store, error) {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)", path, busyTimeoutMs)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to snapshot database: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		// One cached list page per filter key. Position preserves the
		// server's ordering; the payload is the conversation as received.
		`CREATE TABLE IF NOT EXISTS list_entries (
			filter_key TEXT NOT NULL,
			position INTEGER NOT NULL,
			conversation_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			PRIMARY KEY (filter_key, position)
		)`,
		`CREATE TABLE IF NOT EXISTS list_meta (
			filter_key TEXT PRIMARY KEY,
			total INTEGER NOT NULL,
			saved_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			saved_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize snapshot schema: %w", err)
		}
	}
	return nil
}

// ListPage is a cached conversation list page.
type ListPage struct {
	Total         int
	Conversations []inbox.Conversation
	SavedAt       time.Time
}

// SaveListPage replaces the cached page for filterKey with the given
// server result.
func (s *Store) SaveListPage(ctx context.Context, filterKey string, total int, conversations []inbox.Conversation) error {
	if s == nil || s.db == nil {
		return errors.New("snapshot store unavailable")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM list_entries WHERE filter_key = ?`, filterKey); err != nil {
		return fmt.Errorf("failed to clear cached page: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO list_entries (filter_key, position, conversation_id, payload)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, conv := range conversations {
		payload, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to encode conversation %s: %w", conv.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, filterKey, i, conv.ID, string(payload)); err != nil {
			return fmt.Errorf("failed to write cached page: %w", err)
		}
	}

	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO list_meta (filter_key, total, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(filter_key) DO UPDATE SET total = excluded.total, saved_at = excluded.saved_at
	`, filterKey, total, savedAt); err != nil {
		return fmt.Errorf("failed to write page metadata: %w", err)
	}

	return tx.Commit()
}

// LoadListPage returns the cached page for filterKey, or ErrMiss when no
// page has been cached yet.
func (s *Store) LoadListPage(ctx context.Context, filterKey string) (*ListPage, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("snapshot store unavailable")
	}

	var total int
	var savedAtRaw string
	err := s.db.QueryRowContext(ctx, `SELECT total, saved_at FROM list_meta WHERE filter_key = ?`, filterKey).
		Scan(&total, &savedAtRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page metadata: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM list_entries WHERE filter_key = ? ORDER BY position ASC
	`, filterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached page: %w", err)
	}
	defer rows.Close()

	var conversations []inbox.Conversation
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan cached page: %w", err)
		}
		var conv inbox.Conversation
		if err := json.Unmarshal([]byte(payload), &conv); err != nil {
			return nil, fmt.Errorf("failed to decode cached conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cached page: %w", err)
	}

	savedAt, _ := time.Parse(time.RFC3339Nano, savedAtRaw)
	return &ListPage{Total: total, Conversations: conversations, SavedAt: savedAt}, nil
}

// SaveConversation caches one conversation with its full message history.
func (s *Store) SaveConversation(ctx context.Context, conv *inbox.Conversation) error {
	if s == nil || s.db == nil {
		return errors.New("snapshot store unavailable")
	}

	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode conversation %s: %w", conv.ID, err)
	}

	savedAt := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, conv.ID, string(payload), savedAt)
	if err != nil {
		return fmt.Errorf("failed to write cached conversation: %w", err)
	}
	return nil
}

// LoadConversation returns the cached conversation, or ErrMiss.
func (s *Store) LoadConversation(ctx context.Context, id string) (*inbox.Conversation, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("snapshot store unavailable")
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM conversations WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cached conversation: %w", err)
	}

	var conv inbox.Conversation
	if err := json.Unmarshal([]byte(payload), &conv); err != nil {
		return nil, fmt.Errorf("failed to decode cached conversation: %w", err)
	}
	return &conv, nil
}

// DeleteConversation drops a cached conversation, e.g. after the server
// reports it gone.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("snapshot store unavailable")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete cached conversation: %w", err)
	}
	return nil
}
