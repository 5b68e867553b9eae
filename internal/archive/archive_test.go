package archive

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	apperrors "github.com/jayteealao/distpush/internal/errors"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> content) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// readTree returns every regular file under root keyed by slash path.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

var sampleSite = map[string]string{
	"index.html":           "<html>home</html>",
	"css/app.css":          "body { color: red; }",
	"js/app.js":            "console.log('hi')",
	"assets/img/logo.svg":  "<svg/>",
	"assets/fonts/a.woff2": string([]byte{0, 1, 2, 3, 255}),
}

func TestBuilder_RoundTrip(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, sampleSite)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0755))

	dest := filepath.Join(t.TempDir(), "dist.zip")
	require.NoError(t, NewBuilder().Create(context.Background(), src, dest))

	out := t.TempDir()
	require.NoError(t, Extract(dest, out))

	assert.Equal(t, sampleSite, readTree(t, out))
	info, err := os.Stat(filepath.Join(out, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBuilder_EntriesHaveNoEnclosingFolder(t *testing.T) {
	src := filepath.Join(t.TempDir(), "dist")
	writeTree(t, src, map[string]string{"index.html": "x", "a/b.txt": "y"})

	dest := filepath.Join(t.TempDir(), "dist.zip")
	require.NoError(t, NewBuilder().Create(context.Background(), src, dest))

	names, err := Entries(dest)
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"a/", "a/b.txt", "index.html"}, names)
}

func TestBuilder_UsesDeflate(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"big.txt": string(make([]byte, 64*1024))})

	dest := filepath.Join(t.TempDir(), "dist.zip")
	require.NoError(t, NewBuilder().Create(context.Background(), src, dest))

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 1)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)
	assert.Less(t, zr.File[0].CompressedSize64, zr.File[0].UncompressedSize64)
}

func TestBuilder_OverwritesExistingArchive(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"index.html": "new"})

	dest := filepath.Join(t.TempDir(), "dist.zip")
	require.NoError(t, os.WriteFile(dest, []byte("stale bytes from a previous run"), 0644))

	require.NoError(t, NewBuilder().Create(context.Background(), src, dest))

	names, err := Entries(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, names)
}

func TestBuilder_SkipsItsOwnOutput(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"index.html": "x"})

	dest := filepath.Join(src, "dist.zip")
	require.NoError(t, NewBuilder().Create(context.Background(), src, dest))

	names, err := Entries(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, names)
}

func TestBuilder_Errors(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name string
		src  string
		dest string
	}{
		{"missing source", filepath.Join(tmp, "nope"), filepath.Join(tmp, "a.zip")},
		{"source is a file", file, filepath.Join(tmp, "b.zip")},
		{"unwritable destination", tmp, filepath.Join(tmp, "missing", "dir", "c.zip")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBuilder().Create(context.Background(), tt.src, tt.dest)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrArchiveFailed)
		})
	}
}

func TestBuilder_CancelledContext(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, sampleSite)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewBuilder().Create(ctx, src, filepath.Join(t.TempDir(), "dist.zip"))
	assert.ErrorIs(t, err, apperrors.ErrArchiveFailed)
}

func TestExtract_RejectsPathTraversal(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(dest)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escaped.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(t.TempDir(), "out")
	err = Extract(dest, out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
	_, statErr := os.Stat(filepath.Join(filepath.Dir(out), "escaped.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtract_OverwritesExistingFiles(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"index.html": "v2"})
	dest := filepath.Join(t.TempDir(), "dist.zip")
	require.NoError(t, NewBuilder().Create(context.Background(), src, dest))

	out := t.TempDir()
	writeTree(t, out, map[string]string{"index.html": "v1 with a longer body", "keep.txt": "k"})

	require.NoError(t, Extract(dest, out))
	assert.Equal(t, map[string]string{"index.html": "v2", "keep.txt": "k"}, readTree(t, out))
}

func TestBuilder_FollowsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	tmp := t.TempDir()
	src := filepath.Join(tmp, "dist")
	shared := filepath.Join(tmp, "shared")
	writeTree(t, src, map[string]string{"index.html": "<html/>"})
	writeTree(t, shared, map[string]string{"logo.png": "png", "icons/a.svg": "<svg/>"})
	require.NoError(t, os.Symlink("../shared", filepath.Join(src, "assets")))
	require.NoError(t, os.Symlink("index.html", filepath.Join(src, "home.html")))

	dest := filepath.Join(tmp, "dist.zip")
	require.NoError(t, NewBuilder().Create(context.Background(), src, dest))

	names, err := Entries(dest)
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{
		"assets/", "assets/icons/", "assets/icons/a.svg", "assets/logo.png",
		"home.html", "index.html",
	}, names)

	out := t.TempDir()
	require.NoError(t, Extract(dest, out))
	assert.Equal(t, map[string]string{
		"index.html":         "<html/>",
		"home.html":          "<html/>",
		"assets/logo.png":    "png",
		"assets/icons/a.svg": "<svg/>",
	}, readTree(t, out))
}

func TestBuilder_SymlinkLoop(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	tests := []struct {
		name   string
		link   string
		target string
	}{
		{"to itself", "loop", "."},
		{"to an ancestor", "sub/up", ".."},
		{"to the parent of the source", "out", "../.."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "site", "dist")
			writeTree(t, src, map[string]string{"index.html": "x", "sub/page.html": "y"})
			require.NoError(t, os.Symlink(tt.target, filepath.Join(src, filepath.FromSlash(tt.link))))

			err := NewBuilder().Create(context.Background(), src, filepath.Join(t.TempDir(), "dist.zip"))
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrArchiveFailed)
			assert.Contains(t, err.Error(), "loops back")
		})
	}
}
