package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/storage"
)

// markerExtractor simulates unpacking by creating the destination with a
// single marker file. Failing mode leaves a partial directory behind, the
// way a truncated archive would.
type markerExtractor struct {
	fail bool
}

func (m markerExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}
	if m.fail {
		return errors.New("truncated archive")
	}
	return os.WriteFile(filepath.Join(destDir, "blender"), []byte("#!"), 0o755)
}

// renameTrasher moves paths into a directory instead of the real trash.
type renameTrasher struct {
	dir string
}

func (r renameTrasher) MoveToTrash(path string) error {
	return os.Rename(path, filepath.Join(r.dir, filepath.Base(path)))
}

func testLibrary(t *testing.T) (*Library, renameTrasher) {
	t.Helper()
	root := t.TempDir()
	db, err := storage.Open(filepath.Join(root, "state.sqlite"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	trash := renameTrasher{dir: t.TempDir()}
	return New(root, db, markerExtractor{}, trash), trash
}

func testRecord() build.Record {
	return build.Record{
		Repo:       "daily",
		Version:    build.Version{Major: 4, Minor: 2, Patch: 1},
		Branch:     "main",
		Hash:       "abc123",
		CommitTime: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestInstallAndList(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	ir, err := lib.Install(ctx, rec, "archive.tar.xz")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	wantDir := filepath.Join(lib.Root(), "daily", "4.2.1-abc123")
	if ir.Path != wantDir {
		t.Fatalf("expected install dir %s, got %s", wantDir, ir.Path)
	}
	if _, err := os.Stat(filepath.Join(ir.Path, "blender")); err != nil {
		t.Fatalf("extracted content missing: %v", err)
	}

	installs, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(installs) != 1 || installs[0].BuildHash != "abc123" {
		t.Fatalf("unexpected list result: %+v", installs)
	}
}

func TestInstallConflict(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	if _, err := lib.Install(ctx, rec, "a"); err != nil {
		t.Fatalf("first install: %v", err)
	}
	_, err := lib.Install(ctx, rec, "a")
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestInstallReclaimsVanishedDir(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	ir, err := lib.Install(ctx, rec, "a")
	if err != nil {
		t.Fatalf("first install: %v", err)
	}
	if err := os.RemoveAll(ir.Path); err != nil {
		t.Fatalf("removing dir: %v", err)
	}

	// The stale record must not block a reinstall.
	if _, err := lib.Install(ctx, rec, "a"); err != nil {
		t.Fatalf("reinstall over vanished dir: %v", err)
	}
}

func TestInstallRollbackOnExtractFailure(t *testing.T) {
	root := t.TempDir()
	db, err := storage.Open(filepath.Join(root, "state.sqlite"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	defer db.Close()
	lib := New(root, db, markerExtractor{fail: true}, renameTrasher{dir: t.TempDir()})
	ctx := context.Background()
	rec := testRecord()

	if _, err := lib.Install(ctx, rec, "a"); err == nil {
		t.Fatalf("expected extract failure")
	}
	if _, err := os.Stat(lib.InstallDir(rec)); !os.IsNotExist(err) {
		t.Fatalf("partial install dir left behind: %v", err)
	}
	if _, ok, err := lib.Get(ctx, rec.Hash); err != nil || ok {
		t.Fatalf("record written despite failed extract: ok=%v err=%v", ok, err)
	}
}

func TestListSelfHeals(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	ir, err := lib.Install(ctx, rec, "a")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := os.RemoveAll(ir.Path); err != nil {
		t.Fatalf("removing dir: %v", err)
	}

	installs, err := lib.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(installs) != 0 {
		t.Fatalf("expected vanished install to be dropped, got %+v", installs)
	}
	if _, ok, _ := lib.Get(ctx, rec.Hash); ok {
		t.Fatalf("stale record survived the list")
	}
}

func TestRemoveToTrash(t *testing.T) {
	lib, trash := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	ir, err := lib.Install(ctx, rec, "a")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := lib.Remove(ctx, rec.Hash, true); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(ir.Path); !os.IsNotExist(err) {
		t.Fatalf("install dir still present after trash")
	}
	if _, err := os.Stat(filepath.Join(trash.dir, filepath.Base(ir.Path))); err != nil {
		t.Fatalf("trashed dir not found: %v", err)
	}
	if _, ok, _ := lib.Get(ctx, rec.Hash); ok {
		t.Fatalf("install record survived removal")
	}
}

func TestRemoveDelete(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	ir, err := lib.Install(ctx, rec, "a")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := lib.Remove(ctx, rec.Hash, false); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(ir.Path); !os.IsNotExist(err) {
		t.Fatalf("install dir still present after delete")
	}
}

func TestRemoveAbsentDirIsCleanup(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	ir, err := lib.Install(ctx, rec, "a")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := os.RemoveAll(ir.Path); err != nil {
		t.Fatalf("removing dir: %v", err)
	}

	// The directory is already gone; removal still succeeds and drops
	// the record.
	if err := lib.Remove(ctx, rec.Hash, true); err != nil {
		t.Fatalf("remove of absent dir: %v", err)
	}
	if _, ok, _ := lib.Get(ctx, rec.Hash); ok {
		t.Fatalf("record survived cleanup removal")
	}
}

func TestInstallsKeepsVanishedRecords(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	ir, err := lib.Install(ctx, rec, "a")
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := os.RemoveAll(ir.Path); err != nil {
		t.Fatalf("removing dir: %v", err)
	}

	// Unlike List, Installs does not drop the stale record; a removal
	// matched against it can still clean up the state.
	installs, err := lib.Installs(ctx)
	if err != nil {
		t.Fatalf("installs: %v", err)
	}
	if len(installs) != 1 || installs[0].BuildHash != rec.Hash {
		t.Fatalf("expected vanished install to stay visible, got %+v", installs)
	}
	if err := lib.Remove(ctx, rec.Hash, false); err != nil {
		t.Fatalf("cleanup remove: %v", err)
	}
	if _, ok, _ := lib.Get(ctx, rec.Hash); ok {
		t.Fatalf("record survived cleanup removal")
	}
}

func TestRemoveNotInstalled(t *testing.T) {
	lib, _ := testLibrary(t)
	err := lib.Remove(context.Background(), "nope", true)
	if !errors.Is(err, ErrNotInstalled) {
		t.Fatalf("expected ErrNotInstalled, got %v", err)
	}
}

func TestAdopt(t *testing.T) {
	lib, _ := testLibrary(t)
	ctx := context.Background()
	rec := testRecord()

	dir := filepath.Join(lib.Root(), "daily", "4.2.1-abc123")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := lib.Adopt(ctx, rec, dir); err != nil {
		t.Fatalf("adopt: %v", err)
	}
	ir, ok, err := lib.Get(ctx, rec.Hash)
	if err != nil || !ok {
		t.Fatalf("adopted record missing: ok=%v err=%v", ok, err)
	}
	if ir.Path != dir {
		t.Fatalf("expected path %s, got %s", dir, ir.Path)
	}
}
