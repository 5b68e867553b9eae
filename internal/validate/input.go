// Package validate provides input validation for distpush.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jayteealao/distpush/internal/config"
	"github.com/jayteealao/distpush/internal/errors"
)

// environmentNameRegex matches environment keys: lowercase alphanumeric with
// hyphens or underscores, starting and ending with an alphanumeric.
var environmentNameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9_-]{0,62}[a-z0-9])?$`)

// webDirForbidden lists characters that would break out of the remote
// "cd <dir> && unzip ..." command even after quoting, or that make the
// target ambiguous.
var webDirForbidden = []string{"\n", "\r", "\x00", "`", "$(", ";", "&", "|"}

// DeployConfig checks that cfg has everything the pipeline needs. The
// authentication mode is not checked: a target with neither password nor
// key fails at the connect stage.
func DeployConfig(cfg config.DeployConfig) error {
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("%w: host is required", errors.ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return fmt.Errorf("%w: username is required", errors.ErrInvalidConfig)
	}
	if strings.TrimSpace(cfg.DistPath) == "" {
		return fmt.Errorf("%w: distPath is required", errors.ErrInvalidConfig)
	}
	if err := Port(cfg.Port); err != nil {
		return err
	}
	return WebDir(cfg.WebDir)
}

// BuildScript checks that there is a build command to run. It is only
// required when the build stage is not skipped.
func BuildScript(script string) error {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("%w: script is required (or pass --skip-build)", errors.ErrInvalidConfig)
	}
	return nil
}

// Port validates a TCP port.
func Port(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range 1-65535", errors.ErrInvalidConfig, port)
	}
	return nil
}

// WebDir validates the remote target directory.
func WebDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: webDir is required", errors.ErrInvalidConfig)
	}
	for _, s := range webDirForbidden {
		if strings.Contains(dir, s) {
			return fmt.Errorf("%w: webDir contains invalid sequence %q", errors.ErrInvalidConfig, s)
		}
	}
	return nil
}

// EnvironmentName validates a name given on the command line.
func EnvironmentName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: environment name cannot be empty", errors.ErrInvalidConfig)
	}

	// Check for path traversal attempts
	if strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return fmt.Errorf("%w: path traversal not allowed in environment name", errors.ErrInvalidConfig)
	}

	if !environmentNameRegex.MatchString(strings.ToLower(name)) {
		return fmt.Errorf("%w: invalid environment name %q", errors.ErrInvalidConfig, name)
	}
	return nil
}
