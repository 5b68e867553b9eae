// Package git reads the revision of the directory being deployed via the
// git CLI.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Manager handles git queries for a working tree.
type Manager struct {
	repoPath string
}

// Revision identifies what was checked out when a deploy ran.
type Revision struct {
	Commit string
	Branch string
	Dirty  bool
}

// String formats r as "abc1234 (main, dirty)".
func (r *Revision) String() string {
	if r == nil || r.Commit == "" {
		return ""
	}
	var notes []string
	if r.Branch != "" {
		notes = append(notes, r.Branch)
	}
	if r.Dirty {
		notes = append(notes, "dirty")
	}
	if len(notes) == 0 {
		return ShortSHA(r.Commit)
	}
	return fmt.Sprintf("%s (%s)", ShortSHA(r.Commit), strings.Join(notes, ", "))
}

// NewManager creates a new git manager for the given directory.
func NewManager(repoPath string) *Manager {
	return &Manager{repoPath: repoPath}
}

// RepoPath returns the repository path.
func (m *Manager) RepoPath() string {
	return m.repoPath
}

// IsGitRepo checks if the path is inside a git working tree.
func (m *Manager) IsGitRepo(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "rev-parse", "--is-inside-work-tree")
	return cmd.Run() == nil
}

// GetCurrentCommit returns the current HEAD commit of the repository.
func (m *Manager) GetCurrentCommit(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get current commit: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// GetBranch returns the checked out branch, or "" when HEAD is detached.
func (m *Manager) GetBranch(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "rev-parse", "--abbrev-ref", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get branch: %w", err)
	}
	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return "", nil
	}
	return branch, nil
}

// IsDirty reports whether the working tree has uncommitted changes.
func (m *Manager) IsDirty(ctx context.Context) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", m.repoPath, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to get status: %w", err)
	}
	return strings.TrimSpace(string(output)) != "", nil
}

// Revision returns the current revision. It returns nil without an error
// when the directory is not a git working tree or has no commits yet.
func (m *Manager) Revision(ctx context.Context) (*Revision, error) {
	if !m.IsGitRepo(ctx) {
		return nil, nil
	}

	commit, err := m.GetCurrentCommit(ctx)
	if err != nil {
		// No commits yet
		return nil, nil
	}

	branch, err := m.GetBranch(ctx)
	if err != nil {
		return nil, err
	}

	dirty, err := m.IsDirty(ctx)
	if err != nil {
		return nil, err
	}

	return &Revision{Commit: commit, Branch: branch, Dirty: dirty}, nil
}

// ShortSHA returns the 7-character short SHA.
func ShortSHA(fullSHA string) string {
	if len(fullSHA) < 7 {
		return fullSHA
	}
	return fullSHA[:7]
}
