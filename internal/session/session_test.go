package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStore_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewStore(filepath.Join(tmpDir, "session.yaml"))

	sess := &Session{
		Token:     "tok_abc123",
		UserID:    "user_1",
		UserName:  "Jane Doe",
		BaseURL:   "https://ops.example.com",
		CreatedAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}

	if err := store.Save(sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Token != sess.Token {
		t.Errorf("Token = %v, want %v", loaded.Token, sess.Token)
	}
	if loaded.UserID != sess.UserID {
		t.Errorf("UserID = %v, want %v", loaded.UserID, sess.UserID)
	}
	if loaded.UserName != sess.UserName {
		t.Errorf("UserName = %v, want %v", loaded.UserName, sess.UserName)
	}
	if loaded.BaseURL != sess.BaseURL {
		t.Errorf("BaseURL = %v, want %v", loaded.BaseURL, sess.BaseURL)
	}
}

func TestStore_SavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.yaml")
	store := NewStore(path)

	if err := store.Save(&Session{Token: "tok"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("session file mode = %o, want 0600", perm)
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewStore(filepath.Join(tmpDir, "session.yaml"))

	// Load non-existent file should return empty session
	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !loaded.IsEmpty() {
		t.Error("Load() should return empty session for non-existent file")
	}
}

func TestStore_Clear(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.yaml")
	store := NewStore(path)

	if err := store.Save(&Session{Token: "tok"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("session file should exist after save")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("session file should be removed after clear")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() after Clear() error = %v", err)
	}
	if !loaded.IsEmpty() {
		t.Error("Load() after Clear() should return empty session")
	}
}
