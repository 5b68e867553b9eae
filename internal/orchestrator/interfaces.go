package orchestrator

import (
	"context"

	"github.com/jayteealao/distpush/internal/archive"
	"github.com/jayteealao/distpush/internal/artifact"
	"github.com/jayteealao/distpush/internal/build"
	"github.com/jayteealao/distpush/internal/remote"
)

// Builder runs the project's build command.
type Builder interface {
	Run(ctx context.Context, script string) error
}

// Archiver packages a directory into a single archive file.
type Archiver interface {
	Create(ctx context.Context, srcDir, dest string) error
}

// Session is an authenticated connection to the target host.
type Session interface {
	Upload(ctx context.Context, localPath, remotePath string) error
	Exec(ctx context.Context, command string) (*remote.Result, error)
	Close() error
}

// Dialer opens a Session.
type Dialer func(ctx context.Context, opts remote.Options) (Session, error)

// Artifacts owns the local archive file.
type Artifacts interface {
	Path() string
	Remove() error
}

// DialSSH is the Dialer backed by a real SSH connection.
func DialSSH(ctx context.Context, opts remote.Options) (Session, error) {
	sess, err := remote.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Ensure the concrete implementations satisfy the interfaces
var (
	_ Builder   = (*build.Runner)(nil)
	_ Archiver  = (*archive.Builder)(nil)
	_ Session   = (*remote.Session)(nil)
	_ Artifacts = (*artifact.Manager)(nil)
	_ Dialer    = DialSSH
)
