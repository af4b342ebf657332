// Package library tracks which catalog builds are installed on disk and
// drives install/trash/delete transitions.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/storage"
)

// ErrNotInstalled is returned by Remove when no install record exists
// for the requested hash.
var ErrNotInstalled = errors.New("build is not installed")

// ConflictError reports an install target already holding a build.
type ConflictError struct {
	Hash string
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("build %s is already installed at %s", e.Hash, e.Path)
}

// Extractor unpacks a downloaded archive into a destination directory.
// Archive codecs live outside the core.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// Trasher moves a path to the platform trash.
type Trasher interface {
	MoveToTrash(path string) error
}

// Library is the installed-build state over one on-disk library root.
// The root is assumed single-writer; concurrent invocations against the
// same library are undefined.
type Library struct {
	root      string
	db        *storage.DB
	extractor Extractor
	trasher   Trasher
	now       func() time.Time
}

func New(root string, db *storage.DB, extractor Extractor, trasher Trasher) *Library {
	return &Library{
		root:      root,
		db:        db,
		extractor: extractor,
		trasher:   trasher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (l *Library) Root() string { return l.root }

// InstallDir is where a record's build is unpacked:
// <root>/<repo>/<version>-<hash>.
func (l *Library) InstallDir(r build.Record) string {
	return filepath.Join(l.root, r.Repo, fmt.Sprintf("%s-%s", r.Version, r.Hash))
}

// Install unpacks archivePath for the given record and writes the
// install record. A partially written target is removed when extraction
// fails; the record is only written once extraction fully succeeded.
func (l *Library) Install(ctx context.Context, rec build.Record, archivePath string) (build.InstallRecord, error) {
	if existing, ok, err := l.db.GetInstall(ctx, rec.Hash); err != nil {
		return build.InstallRecord{}, err
	} else if ok {
		if _, statErr := os.Stat(existing.Path); statErr == nil {
			return build.InstallRecord{}, &ConflictError{Hash: rec.Hash, Path: existing.Path}
		}
		// Record points at a vanished directory; reclaim it.
		if err := l.db.DeleteInstall(ctx, rec.Hash); err != nil {
			return build.InstallRecord{}, err
		}
	}

	dest := l.InstallDir(rec)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return build.InstallRecord{}, err
	}

	if err := l.extractor.Extract(ctx, archivePath, dest); err != nil {
		_ = os.RemoveAll(dest)
		return build.InstallRecord{}, fmt.Errorf("extracting %s: %w", archivePath, err)
	}

	ir := build.InstallRecord{
		BuildHash:   rec.Hash,
		Repo:        rec.Repo,
		Version:     rec.Version,
		Branch:      rec.Branch,
		Path:        dest,
		InstalledAt: l.now(),
	}
	if err := l.db.PutInstall(ctx, ir); err != nil {
		return build.InstallRecord{}, err
	}
	return ir, nil
}

// List returns the install records whose directories still exist.
// Records pointing at vanished paths are dropped on the spot, keeping
// the state truthful to the filesystem without a repair command.
func (l *Library) List(ctx context.Context) ([]build.InstallRecord, error) {
	all, err := l.db.ListInstalls(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, rec := range all {
		if _, err := os.Stat(rec.Path); err != nil {
			if os.IsNotExist(err) {
				_ = l.db.DeleteInstall(ctx, rec.BuildHash)
				continue
			}
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Installs returns every install record as stored, including records
// whose directory no longer exists. Remove treats the absent-dir case as
// a state cleanup, so callers that feed it must see those records; use
// List when stale records should be dropped instead.
func (l *Library) Installs(ctx context.Context) ([]build.InstallRecord, error) {
	return l.db.ListInstalls(ctx)
}

// Get returns the install record for a hash, if any.
func (l *Library) Get(ctx context.Context, hash string) (build.InstallRecord, bool, error) {
	return l.db.GetInstall(ctx, hash)
}

// Remove uninstalls a build. With trash, the directory is moved to the
// platform trash; otherwise it is deleted outright. Deleting an
// already-absent directory succeeds as a state cleanup. The install
// record is only dropped when the operation fully succeeded, so a
// partial failure never orphans on-disk data.
func (l *Library) Remove(ctx context.Context, hash string, trash bool) error {
	rec, ok, err := l.db.GetInstall(ctx, hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", hash, ErrNotInstalled)
	}

	if trash {
		if _, statErr := os.Stat(rec.Path); statErr == nil {
			if err := l.trasher.MoveToTrash(rec.Path); err != nil {
				return fmt.Errorf("trashing %s: %w", rec.Path, err)
			}
		}
	} else {
		if err := os.RemoveAll(rec.Path); err != nil {
			return fmt.Errorf("deleting %s: %w", rec.Path, err)
		}
	}

	return l.db.DeleteInstall(ctx, hash)
}

// Adopt records an already-present on-disk build without extracting
// anything. Used by verify when it finds an untracked install.
func (l *Library) Adopt(ctx context.Context, rec build.Record, dir string) (build.InstallRecord, error) {
	ir := build.InstallRecord{
		BuildHash:   rec.Hash,
		Repo:        rec.Repo,
		Version:     rec.Version,
		Branch:      rec.Branch,
		Path:        dir,
		InstalledAt: l.now(),
	}
	if err := l.db.PutInstall(ctx, ir); err != nil {
		return build.InstallRecord{}, err
	}
	return ir, nil
}
