// Package artifact manages the transient local archive written for a deploy.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	apperrors "github.com/jayteealao/distpush/internal/errors"
)

// FileName is the fixed name of the archive, locally and on the remote host.
const FileName = "dist.zip"

// Manager owns the lifecycle of the local archive file.
type Manager struct {
	path string
}

// NewManager creates a manager for the archive inside dir, usually the
// invocation directory.
func NewManager(dir string) *Manager {
	return &Manager{path: filepath.Join(dir, FileName)}
}

// Path returns the archive location.
func (m *Manager) Path() string {
	return m.path
}

// Exists reports whether an archive, possibly left over from a failed run,
// is present.
func (m *Manager) Exists() bool {
	info, err := os.Stat(m.path)
	return err == nil && !info.IsDir()
}

// Remove deletes the archive. A missing file is an error: the archive is
// expected to exist after a successful upload.
func (m *Manager) Remove() error {
	if err := os.Remove(m.path); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrLocalCleanupFailed, err)
	}
	return nil
}

// RemoveResidue deletes a leftover archive if one exists. Returns true when
// a file was removed.
func (m *Manager) RemoveResidue() (bool, error) {
	if !m.Exists() {
		return false, nil
	}
	if err := os.Remove(m.path); err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", m.path, err)
	}
	return true, nil
}
