// Package extract unpacks downloaded build archives. Supported formats
// are .tar.xz and .zip; archives keep their single top-level folder,
// which is stripped so the destination directory is the build root.
package extract

import (
	"archive/tar"
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// UnsupportedFormatError is returned for archive extensions the
// extractor cannot handle (e.g. .dmg).
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported archive format %q", e.Ext)
}

// Archive dispatches extraction by file extension. It satisfies
// library.Extractor.
type Archive struct{}

func (Archive) Extract(ctx context.Context, archivePath, destDir string) error {
	switch {
	case strings.HasSuffix(archivePath, ".tar.xz"), strings.HasSuffix(archivePath, ".txz"):
		return extractTarXz(ctx, archivePath, destDir)
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(ctx, archivePath, destDir)
	default:
		ext := filepath.Ext(archivePath)
		return &UnsupportedFormatError{Ext: ext}
	}
}

func extractTarXz(ctx context.Context, archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", archivePath, err)
	}

	tr := tar.NewReader(xzr)
	extracted := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			if extracted == 0 {
				return fmt.Errorf("%s: no entries under a root folder", archivePath)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", archivePath, err)
		}

		target, ok, err := entryPath(destDir, hdr.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		extracted++

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := os.Symlink(hdr.Linkname, target); err != nil && !os.IsExist(err) {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
}

func extractZip(ctx context.Context, archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", archivePath, err)
	}
	defer zr.Close()

	extracted := 0
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, ok, err := entryPath(destDir, zf.Name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		extracted++

		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		rc, err := zf.Open()
		if err != nil {
			return err
		}
		err = writeFile(target, rc, zf.Mode().Perm())
		rc.Close()
		if err != nil {
			return err
		}
	}
	if extracted == 0 {
		return fmt.Errorf("%s: no entries under a root folder", archivePath)
	}
	return nil
}

// entryPath maps an archive entry name to its destination, skipping the
// root folder. Entries escaping the destination are rejected.
func entryPath(destDir, name string) (string, bool, error) {
	name = filepath.ToSlash(name)
	parts := strings.Split(strings.Trim(name, "/"), "/")
	if len(parts) < 2 {
		// The root folder itself, or a stray top-level file.
		return "", false, nil
	}
	rel := filepath.Join(parts[1:]...)
	target := filepath.Join(destDir, rel)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", false, fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, true, nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
