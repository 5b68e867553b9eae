package build

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands below assume a POSIX shell")
	}

	tests := []struct {
		name       string
		script     string
		wantErr    bool
		wantStdout string
	}{
		{
			name:       "successful command",
			script:     "echo built",
			wantStdout: "built\n",
		},
		{
			name:    "non-zero exit",
			script:  "exit 3",
			wantErr: true,
		},
		{
			name:    "unknown binary",
			script:  "definitely-not-a-real-binary-xyz",
			wantErr: true,
		},
		{
			name:    "empty command",
			script:  "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			r := NewRunner(t.TempDir())
			r.SetOutputStreams(&stdout, &stderr)

			err := r.Run(context.Background(), tt.script)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrBuildFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStdout, stdout.String())
		})
	}
}

func TestRunner_RunsInWorkingDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands below assume a POSIX shell")
	}

	dir := t.TempDir()
	r := NewRunner(dir)
	r.SetOutputStreams(&bytes.Buffer{}, &bytes.Buffer{})

	require.NoError(t, r.Run(context.Background(), "mkdir -p dist && echo ok > dist/index.html"))

	data, err := os.ReadFile(filepath.Join(dir, "dist", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "ok\n", string(data))
	assert.Equal(t, dir, r.WorkingDir())
}

func TestRunner_ExitCodeInError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands below assume a POSIX shell")
	}

	r := NewRunner(t.TempDir())
	r.SetOutputStreams(&bytes.Buffer{}, &bytes.Buffer{})

	err := r.Run(context.Background(), "exit 7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 7")
}
