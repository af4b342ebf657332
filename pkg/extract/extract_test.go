package extract

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ulikunitz/xz"
)

type archiveEntry struct {
	name string
	body string
	dir  bool
}

func buildEntries() []archiveEntry {
	return []archiveEntry{
		{name: "blender-4.2.1-linux-x64/", dir: true},
		{name: "blender-4.2.1-linux-x64/blender", body: "#!binary"},
		{name: "blender-4.2.1-linux-x64/4.2/", dir: true},
		{name: "blender-4.2.1-linux-x64/4.2/scripts/startup.py", body: "import bpy"},
	}
}

func writeTarXz(t *testing.T, entries []archiveEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.tar.xz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	xzw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatalf("xz writer: %v", err)
	}
	tw := tar.NewWriter(xzw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o755}
		if e.dir {
			hdr.Typeflag = tar.TypeDir
		} else {
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if !e.dir {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("tar body: %v", err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := xzw.Close(); err != nil {
		t.Fatalf("xz close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func writeZip(t *testing.T, entries []archiveEntry) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, e := range entries {
		if e.dir {
			if _, err := zw.Create(e.name); err != nil {
				t.Fatalf("zip dir: %v", err)
			}
			continue
		}
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("zip body: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func checkExtracted(t *testing.T, dest string) {
	t.Helper()
	// The archive's root folder is stripped.
	got, err := os.ReadFile(filepath.Join(dest, "blender"))
	if err != nil {
		t.Fatalf("extracted executable missing: %v", err)
	}
	if string(got) != "#!binary" {
		t.Fatalf("unexpected content: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "4.2", "scripts", "startup.py")); err != nil {
		t.Fatalf("nested file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "blender-4.2.1-linux-x64")); !os.IsNotExist(err) {
		t.Fatalf("root folder was not stripped")
	}
}

func TestExtractTarXz(t *testing.T) {
	path := writeTarXz(t, buildEntries())
	dest := filepath.Join(t.TempDir(), "out")
	if err := (Archive{}).Extract(context.Background(), path, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}
	checkExtracted(t, dest)
}

func TestExtractZip(t *testing.T) {
	path := writeZip(t, buildEntries())
	dest := filepath.Join(t.TempDir(), "out")
	if err := (Archive{}).Extract(context.Background(), path, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}
	checkExtracted(t, dest)
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	entries := []archiveEntry{
		{name: "root/", dir: true},
		{name: "root/../../evil", body: "nope"},
	}
	path := writeTarXz(t, entries)
	dest := filepath.Join(t.TempDir(), "out")
	err := (Archive{}).Extract(context.Background(), path, dest)
	if err == nil {
		t.Fatalf("expected escape to be rejected")
	}
}

func TestExtractRejectsRootlessArchive(t *testing.T) {
	// Every entry is top level; nothing would be written, which must
	// surface as an error instead of a silently empty install.
	entries := []archiveEntry{
		{name: "README.txt", body: "hi"},
		{name: "blender", body: "#!binary"},
	}
	for _, path := range []string{writeTarXz(t, entries), writeZip(t, entries)} {
		dest := filepath.Join(t.TempDir(), "out")
		if err := (Archive{}).Extract(context.Background(), path, dest); err == nil {
			t.Fatalf("%s: expected error for archive without a root folder", path)
		}
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	err := (Archive{}).Extract(context.Background(), "build.dmg", t.TempDir())
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
	if ufe.Ext != ".dmg" {
		t.Fatalf("unexpected extension: %q", ufe.Ext)
	}
}

func TestExtractHonorsContextCancel(t *testing.T) {
	path := writeTarXz(t, buildEntries())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (Archive{}).Extract(ctx, path, filepath.Join(t.TempDir(), "out"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
