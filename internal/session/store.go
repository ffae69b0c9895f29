package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"contactdesk/internal/logging"
)

var errCorruptFile = errors.New("failed to parse session file")

// fileRecord is the on-disk format. Theme survives logout.
type fileRecord struct {
	Version  int    `json:"version"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role,omitempty"`
	Token    string `json:"token,omitempty"`
	Theme    string `json:"theme,omitempty"`
}

// FileStore persists the session as JSON with owner-only permissions.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) read() (fileRecord, error) {
	var rec fileRecord
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return rec, nil
		}
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: %w", errCorruptFile, err)
	}
	return rec, nil
}

// current reads the record before a rewrite. An unparseable file is moved to
// <path>.corrupt so the rewrite does not destroy it; other errors are returned.
func (fs *FileStore) current() (fileRecord, error) {
	rec, err := fs.read()
	if !errors.Is(err, errCorruptFile) {
		return rec, err
	}
	aside := fs.path + ".corrupt"
	logging.Get(logging.CategorySession).Warn("%v; moving it to %s", err, aside)
	if err := os.Rename(fs.path, aside); err != nil {
		return fileRecord{}, fmt.Errorf("failed to set aside corrupt session file: %w", err)
	}
	return fileRecord{}, nil
}

func (fs *FileStore) write(rec fileRecord) error {
	rec.Version = 1
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return os.WriteFile(fs.path, data, 0600)
}

// Load reads the persisted session. A missing file is an empty session.
func (fs *FileStore) Load() (Session, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, err := fs.read()
	if err != nil {
		return Session{}, err
	}
	return Session{Username: rec.Username, Role: rec.Role, Token: rec.Token}, nil
}

// Save writes s, keeping the stored theme.
func (fs *FileStore) Save(s Session) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, err := fs.current()
	if err != nil {
		return err
	}
	rec.Username, rec.Role, rec.Token = s.Username, s.Role, s.Token
	return fs.write(rec)
}

// Clear erases the identity and token, keeping the stored theme.
func (fs *FileStore) Clear() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, err := fs.current()
	if err != nil {
		return err
	}
	if rec.Theme == "" {
		if err := os.Remove(fs.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return fs.write(fileRecord{Theme: rec.Theme})
}

// Theme returns the persisted theme preference, or "".
func (fs *FileStore) Theme() string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, err := fs.read()
	if err != nil {
		logging.Get(logging.CategorySession).Warn("theme preference unavailable: %v", err)
	}
	return rec.Theme
}

// SetTheme persists the theme preference.
func (fs *FileStore) SetTheme(theme string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	rec, err := fs.current()
	if err != nil {
		return err
	}
	rec.Theme = theme
	return fs.write(rec)
}
