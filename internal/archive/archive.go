// Package archive packages a build output directory into a zip file and
// extracts it again.
package archive

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	apperrors "github.com/jayteealao/distpush/internal/errors"
)

// Builder writes a directory tree into a single zip archive.
type Builder struct {
	level int
}

// NewBuilder creates a builder using maximum deflate compression.
func NewBuilder() *Builder {
	return &Builder{level: flate.BestCompression}
}

// Create packages the contents of srcDir into dest. Entry names are relative
// to srcDir, so extracting dest reproduces srcDir's contents at the root of
// the target without an enclosing folder. An existing file at dest is
// truncated. A failure can leave a partially written dest behind.
func (b *Builder) Create(ctx context.Context, srcDir, dest string) error {
	info, err := os.Stat(srcDir)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrArchiveFailed, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", apperrors.ErrArchiveFailed, srcDir)
	}
	root, err := realPath(srcDir)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrArchiveFailed, err)
	}

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrArchiveFailed, err)
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(absDest)); err == nil {
		absDest = filepath.Join(dir, filepath.Base(absDest))
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: failed to create %s: %v", apperrors.ErrArchiveFailed, dest, err)
	}

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, b.level)
	})

	tw := &treeWriter{ctx: ctx, zw: zw, dest: absDest}
	walkErr := tw.addTree(root, "", nil)

	closeErr := zw.Close()
	fileErr := out.Close()

	switch {
	case walkErr != nil:
		return fmt.Errorf("%w: %v", apperrors.ErrArchiveFailed, walkErr)
	case closeErr != nil:
		return fmt.Errorf("%w: failed to finalize archive: %v", apperrors.ErrArchiveFailed, closeErr)
	case fileErr != nil:
		return fmt.Errorf("%w: failed to close %s: %v", apperrors.ErrArchiveFailed, dest, fileErr)
	}
	return nil
}

func realPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// treeWriter adds directory trees to a zip. Symlinks are archived as what
// they point to; a linked directory is walked under the link's own name.
type treeWriter struct {
	ctx  context.Context
	zw   *zip.Writer
	dest string
}

// addTree archives the contents of dir (a resolved path) with entry names
// under prefix. linkDirs holds the directories whose symlinks led here.
func (t *treeWriter) addTree(dir, prefix string, linkDirs []string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := t.ctx.Err(); err != nil {
			return err
		}
		// The archive must not contain itself when dest lies inside the tree.
		if p == dir || p == t.dest {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		name := path.Join(prefix, filepath.ToSlash(rel))

		if d.Type()&fs.ModeSymlink != 0 {
			return t.addLink(p, name, linkDirs)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if d.IsDir() {
			return writeDir(t.zw, name, info)
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return writeFile(t.zw, name, p, info)
	})
}

func (t *treeWriter) addLink(p, name string, linkDirs []string) error {
	target, err := filepath.EvalSymlinks(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		if !info.Mode().IsRegular() {
			return nil
		}
		return writeFile(t.zw, name, target, info)
	}

	chain := append(linkDirs[:len(linkDirs):len(linkDirs)], filepath.Dir(p))
	for _, dir := range chain {
		if within(dir, target) {
			return fmt.Errorf("symlink %s loops back to %s", name, target)
		}
	}
	if err := writeDir(t.zw, name, info); err != nil {
		return err
	}
	return t.addTree(target, name, chain)
}

// within reports whether dir is root or lies below it.
func within(dir, root string) bool {
	if dir == root {
		return true
	}
	return strings.HasPrefix(dir, strings.TrimSuffix(root, string(os.PathSeparator))+string(os.PathSeparator))
}

func writeDir(zw *zip.Writer, name string, info fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name + "/"
	hdr.Method = zip.Store
	_, err = zw.CreateHeader(hdr)
	return err
}

func writeFile(zw *zip.Writer, name, src string, info fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Extract unpacks the zip at src into destDir, overwriting existing files.
// Entries that would escape destDir are rejected.
func Extract(src, destDir string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Entries lists the entry names stored in the zip at src.
func Entries(src string) ([]string, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names, nil
}
