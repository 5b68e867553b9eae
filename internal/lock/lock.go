// Package lock serializes deploys that share an invocation directory, using
// flock plus a PID file for stale lock detection.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/jayteealao/distpush/internal/errors"
)

// Lock is a held run lock.
type Lock struct {
	flock    *flock.Flock
	pidFile  string
	lockPath string
	key      string
}

// Manager hands out run locks stored under <dataDir>/locks.
type Manager struct {
	lockDir string
}

// NewManager creates a lock manager.
func NewManager(dataDir string) (*Manager, error) {
	lockDir := filepath.Join(dataDir, "locks")
	if err := os.MkdirAll(lockDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Manager{lockDir: lockDir}, nil
}

// KeyForDir derives a stable lock key from a directory. Two invocations in
// the same directory share the dist.zip path and therefore the key.
func KeyForDir(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(dir))).String()
}

func (m *Manager) paths(key string) (lockPath, pidFile string) {
	return filepath.Join(m.lockDir, key+".lock"), filepath.Join(m.lockDir, key+".pid")
}

// Acquire takes the lock for key without waiting. If another live process
// holds it, ErrProjectLocked is returned.
func (m *Manager) Acquire(key string) (*Lock, error) {
	lockPath, pidFile := m.paths(key)

	m.cleanStaleLock(pidFile, lockPath)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		if pid, err := readPIDFile(pidFile); err == nil {
			return nil, fmt.Errorf("%w: held by PID %d", errors.ErrProjectLocked, pid)
		}
		return nil, errors.ErrProjectLocked
	}

	if err := writePIDFile(pidFile); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	return &Lock{
		flock:    fl,
		pidFile:  pidFile,
		lockPath: lockPath,
		key:      key,
	}, nil
}

// IsLocked reports whether key is held, and by which PID when known.
func (m *Manager) IsLocked(key string) (bool, int, error) {
	lockPath, pidFile := m.paths(key)

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return false, 0, fmt.Errorf("failed to check lock: %w", err)
	}
	if locked {
		fl.Unlock()
		return false, 0, nil
	}

	pid, err := readPIDFile(pidFile)
	if err != nil {
		return true, 0, nil
	}
	return true, pid, nil
}

// cleanStaleLock removes lock files left by a process that no longer runs.
func (m *Manager) cleanStaleLock(pidFile, lockPath string) {
	pid, err := readPIDFile(pidFile)
	if err != nil {
		return
	}
	if isProcessRunning(pid) {
		return
	}
	os.Remove(pidFile)
	os.Remove(lockPath)
}

// Release releases the lock and removes its files.
func (l *Lock) Release() error {
	os.Remove(l.pidFile)

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	os.Remove(l.lockPath)
	return nil
}

// Key returns the key this lock was taken for.
func (l *Lock) Key() string {
	return l.key
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds; signal 0 probes for existence.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "process already finished") ||
		strings.Contains(errStr, "no such process") ||
		strings.Contains(errStr, "Access is denied") {
		return false
	}

	// Unknown: assume it is alive.
	return true
}
