// Package remote provides the SSH session used to upload and unpack a
// release on the target host.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	apperrors "github.com/jayteealao/distpush/internal/errors"
)

// Options describes how to reach and authenticate against the host.
type Options struct {
	Host       string
	Port       int
	Username   string
	Password   string
	PrivateKey string // path or inline PEM
	Passphrase string
	KnownHosts string // optional known_hosts file
}

// Address returns host:port.
func (o Options) Address() string {
	port := o.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(port))
}

// Session owns one authenticated SSH connection for the length of a deploy.
type Session struct {
	client *ssh.Client
	addr   string
}

// Dial opens and authenticates the connection. No timeout is applied; the
// call blocks until the handshake succeeds or the network gives up.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	auth, err := authMethods(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectFailed, err)
	}
	hostKey, err := hostKeyCallback(opts.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectFailed, err)
	}

	cfg := &ssh.ClientConfig{
		User:            opts.Username,
		Auth:            auth,
		HostKeyCallback: hostKey,
	}

	addr := opts.Address()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectFailed, err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	stop()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConnectFailed, err)
	}

	return &Session{
		client: ssh.NewClient(c, chans, reqs),
		addr:   addr,
	}, nil
}

// Addr returns the address the session is connected to.
func (s *Session) Addr() string {
	return s.addr
}

// Upload copies the local file to remotePath over SFTP, replacing any
// existing file. A failed transfer may leave a partial remote file.
func (s *Session) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	defer src.Close()

	client, err := sftp.NewClient(s.client)
	if err != nil {
		return fmt.Errorf("%w: failed to start sftp: %v", apperrors.ErrUploadFailed, err)
	}
	defer client.Close()

	stop := context.AfterFunc(ctx, func() { client.Close() })
	defer stop()

	dst, err := client.Create(sftpPath(remotePath))
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", apperrors.ErrUploadFailed, remotePath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: failed to close %s: %v", apperrors.ErrUploadFailed, remotePath, err)
	}
	return nil
}

// sftpPath maps "~/x" to "x": SFTP servers resolve relative paths against
// the login directory and do not expand "~".
func sftpPath(p string) string {
	if rest, ok := strings.CutPrefix(p, "~/"); ok {
		return rest
	}
	return p
}

// Exec runs command in a new SSH channel and waits for it to exit. A
// non-zero exit status is not an error: it is returned in Result.Code so the
// caller can decide. An error means the command could not be run to
// completion.
func (s *Session) Exec(ctx context.Context, command string) (*Result, error) {
	sess, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	stop := context.AfterFunc(ctx, func() { sess.Close() })
	defer stop()

	result := &Result{Command: command}
	err = sess.Run(command)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.Code = exitErr.ExitStatus()
			return result, nil
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("remote command cancelled: %w", ctx.Err())
		}
		return result, fmt.Errorf("remote command failed: %w", err)
	}
	return result, nil
}

// Close tears down the connection.
func (s *Session) Close() error {
	return s.client.Close()
}
