package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// FileSessionStore keeps one browser session blob per retailer on disk
type FileSessionStore struct {
	dir   string
	mutex sync.Mutex
}

func NewFileSessionStore(dir string) *FileSessionStore {
	return &FileSessionStore{dir: dir}
}

func (s *FileSessionStore) path(retailer string) string {
	name := unsafeFileChars.ReplaceAllString(retailer, "_")
	if name == "" {
		name = "_"
	}
	return filepath.Join(s.dir, name+"_session.json")
}

// Load returns the saved session for a retailer. A missing session is not an error.
func (s *FileSessionStore) Load(retailer string) ([]byte, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := os.ReadFile(s.path(retailer))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read session for %s: %w", retailer, err)
	}
	return data, true, nil
}

// Save replaces the retailer's saved session
func (s *FileSessionStore) Save(retailer string, blob []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".session_*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", retailer, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to save session for %s: %w", retailer, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save session for %s: %w", retailer, err)
	}
	if err := os.Rename(tmp.Name(), s.path(retailer)); err != nil {
		return fmt.Errorf("failed to save session for %s: %w", retailer, err)
	}
	return nil
}
