// Side-channel persistence for the "last joined group" id.
//
// This is a single string value outside the consistency model: read at
// startup to rehydrate the previous group, written on join/create, and
// cleared on leave or when the group turns out to be deleted.
package session

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// GroupMemory is the local single-value store remembering the last joined
// group across restarts.
type GroupMemory interface {
	// Load returns the remembered group id, or "" when none is stored.
	Load() (string, error)
	// Store remembers groupID.
	Store(groupID string) error
	// Clear forgets the remembered id. Clearing an empty store is not an
	// error.
	Clear() error
}

// FileGroupMemory keeps the value as a small file under Dir, alongside
// the persisted identity.
type FileGroupMemory struct {
	Dir string
}

func (m *FileGroupMemory) path() string {
	return filepath.Join(m.Dir, "last_group")
}

// Load implements GroupMemory.
func (m *FileGroupMemory) Load() (string, error) {
	b, err := os.ReadFile(m.path())
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

// Store implements GroupMemory.
func (m *FileGroupMemory) Store(groupID string) error {
	if err := os.MkdirAll(m.Dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(m.path(), []byte(groupID+"\n"), 0o600)
}

// Clear implements GroupMemory.
func (m *FileGroupMemory) Clear() error {
	err := os.Remove(m.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
