package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// newClientKey returns a PEM-encoded ed25519 key and its public half.
func newClientKey(t *testing.T, passphrase string) (string, ssh.PublicKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	}
	require.NoError(t, err)

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(block)), sshPub
}

func dialTestServer(t *testing.T, opts Options) *Session {
	t.Helper()
	sess, err := Dial(context.Background(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestDial(t *testing.T) {
	srv := newTestServer(t)

	inlineKey, inlinePub := newClientKey(t, "")
	protectedKey, protectedPub := newClientKey(t, "open sesame")
	keyFile := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyFile, []byte(protectedKey), 0600))

	tests := []struct {
		name      string
		authorize ssh.PublicKey
		opts      func(Options) Options
		wantErr   bool
	}{
		{
			name: "password",
			opts: func(o Options) Options { return o },
		},
		{
			name: "wrong password",
			opts: func(o Options) Options {
				o.Password = "wrong"
				return o
			},
			wantErr: true,
		},
		{
			name:      "inline private key",
			authorize: inlinePub,
			opts: func(o Options) Options {
				o.Password = ""
				o.PrivateKey = inlineKey
				return o
			},
		},
		{
			name:      "private key file with passphrase",
			authorize: protectedPub,
			opts: func(o Options) Options {
				o.Password = ""
				o.PrivateKey = keyFile
				o.Passphrase = "open sesame"
				return o
			},
		},
		{
			name:      "wrong passphrase",
			authorize: protectedPub,
			opts: func(o Options) Options {
				o.Password = ""
				o.PrivateKey = keyFile
				o.Passphrase = "nope"
				return o
			},
			wantErr: true,
		},
		{
			name: "missing key file",
			opts: func(o Options) Options {
				o.PrivateKey = filepath.Join(t.TempDir(), "absent")
				return o
			},
			wantErr: true,
		},
		{
			name: "no credentials",
			opts: func(o Options) Options {
				o.Password = ""
				return o
			},
			wantErr: true,
		},
		{
			name: "nothing listening",
			opts: func(o Options) Options {
				o.Host = "127.0.0.1"
				o.Port = 1
				return o
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv.authorize(tt.authorize)

			sess, err := Dial(context.Background(), tt.opts(srv.options()))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrConnectFailed)
				assert.Nil(t, sess)
				return
			}
			require.NoError(t, err)
			defer sess.Close()
			assert.Equal(t, srv.options().Address(), sess.Addr())
		})
	}
}

func TestDial_KnownHosts(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()

	t.Run("matching host key", func(t *testing.T) {
		path := filepath.Join(dir, "known_hosts")
		line := knownhosts.Line([]string{srv.options().Address()}, srv.hostKey.PublicKey())
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))

		opts := srv.options()
		opts.KnownHosts = path
		sess, err := Dial(context.Background(), opts)
		require.NoError(t, err)
		sess.Close()
	})

	t.Run("mismatched host key", func(t *testing.T) {
		_, other := newClientKey(t, "")
		path := filepath.Join(dir, "known_hosts_other")
		line := knownhosts.Line([]string{srv.options().Address()}, other)
		require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0600))

		opts := srv.options()
		opts.KnownHosts = path
		_, err := Dial(context.Background(), opts)
		assert.ErrorIs(t, err, apperrors.ErrConnectFailed)
	})

	t.Run("missing known_hosts file", func(t *testing.T) {
		opts := srv.options()
		opts.KnownHosts = filepath.Join(dir, "absent")
		_, err := Dial(context.Background(), opts)
		assert.ErrorIs(t, err, apperrors.ErrConnectFailed)
	})
}

func TestSession_Upload(t *testing.T) {
	srv := newTestServer(t)
	sess := dialTestServer(t, srv.options())

	local := filepath.Join(t.TempDir(), "dist.zip")
	payload := []byte(strings.Repeat("zipdata", 10000))
	require.NoError(t, os.WriteFile(local, payload, 0644))

	t.Run("writes file into remote directory", func(t *testing.T) {
		webDir := t.TempDir()
		remotePath := filepath.ToSlash(filepath.Join(webDir, "dist.zip"))

		require.NoError(t, sess.Upload(context.Background(), local, remotePath))

		got, err := os.ReadFile(filepath.Join(webDir, "dist.zip"))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("replaces an existing remote file", func(t *testing.T) {
		webDir := t.TempDir()
		remote := filepath.Join(webDir, "dist.zip")
		require.NoError(t, os.WriteFile(remote, []byte(strings.Repeat("x", 200000)), 0644))

		require.NoError(t, sess.Upload(context.Background(), local, filepath.ToSlash(remote)))

		got, err := os.ReadFile(remote)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("missing remote directory", func(t *testing.T) {
		remotePath := filepath.ToSlash(filepath.Join(t.TempDir(), "missing", "dist.zip"))
		err := sess.Upload(context.Background(), local, remotePath)
		assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
	})

	t.Run("missing local file", func(t *testing.T) {
		remotePath := filepath.ToSlash(filepath.Join(t.TempDir(), "dist.zip"))
		err := sess.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.zip"), remotePath)
		assert.ErrorIs(t, err, apperrors.ErrUploadFailed)
	})
}

func TestSession_Exec(t *testing.T) {
	srv := newTestServer(t)
	sess := dialTestServer(t, srv.options())

	t.Run("zero exit", func(t *testing.T) {
		srv.setExec(func(cmd string) (string, string, uint32) {
			return "inflating: index.html\n", "", 0
		})

		res, err := sess.Exec(context.Background(), "unzip -o dist.zip")
		require.NoError(t, err)
		assert.True(t, res.OK())
		assert.Equal(t, "unzip -o dist.zip", res.Command)
		assert.Equal(t, "inflating: index.html\n", res.Stdout)
	})

	t.Run("non-zero exit is reported in result", func(t *testing.T) {
		srv.setExec(func(cmd string) (string, string, uint32) {
			return "", "unzip: cannot find dist.zip\n", 9
		})

		res, err := sess.Exec(context.Background(), "unzip -o dist.zip")
		require.NoError(t, err)
		assert.False(t, res.OK())
		assert.Equal(t, 9, res.Code)
		assert.Contains(t, res.Stderr, "cannot find")
	})

	assert.Equal(t, []string{"unzip -o dist.zip", "unzip -o dist.zip"}, srv.executed())
}
