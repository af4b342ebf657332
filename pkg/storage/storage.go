// Package storage persists the build catalog cache and the installed
// build records between invocations, backed by SQLite.
package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeptofine/blrs-cli/pkg/build"

	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS builds (
  id            INTEGER PRIMARY KEY,
  repo          TEXT NOT NULL,
  hash          TEXT NOT NULL,
  major         INTEGER NOT NULL,
  minor         INTEGER NOT NULL,
  patch         INTEGER NOT NULL,
  branch        TEXT NOT NULL DEFAULT '',
  commit_time   INTEGER NOT NULL,
  platform      TEXT NOT NULL DEFAULT '',
  arch          TEXT NOT NULL DEFAULT '',
  download_url  TEXT NOT NULL DEFAULT '',
  checksum      TEXT NOT NULL DEFAULT '',
  first_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(repo, hash)
);
CREATE INDEX IF NOT EXISTS idx_builds_repo ON builds(repo);
CREATE TABLE IF NOT EXISTS repo_meta (
  repo         TEXT PRIMARY KEY,
  last_fetched INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS installs (
  build_hash   TEXT PRIMARY KEY,
  repo         TEXT NOT NULL,
  major        INTEGER NOT NULL,
  minor        INTEGER NOT NULL,
  patch        INTEGER NOT NULL,
  branch       TEXT NOT NULL DEFAULT '',
  install_path TEXT NOT NULL,
  installed_at INTEGER NOT NULL
);
	`); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveBuilds upserts a repo's records by (repo, hash). Rows absent from
// records are left alone; the persisted catalog never shrinks on refetch.
func (d *DB) SaveBuilds(ctx context.Context, repo string, records []build.Record) (err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range records {
		if r.Hash == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO builds(repo, hash, major, minor, patch, branch, commit_time, platform, arch, download_url, checksum)
VALUES(?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(repo, hash) DO UPDATE SET
  major = excluded.major, minor = excluded.minor, patch = excluded.patch,
  branch = excluded.branch, commit_time = excluded.commit_time,
  platform = excluded.platform, arch = excluded.arch,
  download_url = excluded.download_url, checksum = excluded.checksum`,
			repo, r.Hash, r.Version.Major, r.Version.Minor, r.Version.Patch,
			r.Branch, r.CommitTime.UTC().Unix(), r.Platform, r.Arch, r.DownloadURL, r.Checksum)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadBuilds returns a repo's cached records in first-seen order.
func (d *DB) LoadBuilds(ctx context.Context, repo string) ([]build.Record, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT hash, major, minor, patch, branch, commit_time, platform, arch, download_url, checksum
FROM builds WHERE repo = ? ORDER BY id`, repo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []build.Record
	for rows.Next() {
		var (
			r  build.Record
			ct int64
		)
		r.Repo = repo
		if err := rows.Scan(&r.Hash, &r.Version.Major, &r.Version.Minor, &r.Version.Patch,
			&r.Branch, &ct, &r.Platform, &r.Arch, &r.DownloadURL, &r.Checksum); err != nil {
			return nil, err
		}
		r.CommitTime = time.Unix(ct, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) SetLastFetched(ctx context.Context, repo string, t time.Time) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO repo_meta(repo, last_fetched) VALUES(?, ?)
ON CONFLICT(repo) DO UPDATE SET last_fetched = excluded.last_fetched`,
		repo, t.UTC().Unix())
	return err
}

// LastFetched returns the zero time when the repo has never been fetched.
func (d *DB) LastFetched(ctx context.Context, repo string) (time.Time, error) {
	var ts int64
	err := d.sql.QueryRowContext(ctx,
		"SELECT last_fetched FROM repo_meta WHERE repo = ?", repo).Scan(&ts)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(ts, 0).UTC(), nil
}

func (d *DB) PutInstall(ctx context.Context, rec build.InstallRecord) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO installs(build_hash, repo, major, minor, patch, branch, install_path, installed_at)
VALUES(?,?,?,?,?,?,?,?)
ON CONFLICT(build_hash) DO UPDATE SET
  repo = excluded.repo, major = excluded.major, minor = excluded.minor,
  patch = excluded.patch, branch = excluded.branch,
  install_path = excluded.install_path, installed_at = excluded.installed_at`,
		rec.BuildHash, rec.Repo, rec.Version.Major, rec.Version.Minor, rec.Version.Patch,
		rec.Branch, rec.Path, rec.InstalledAt.UTC().Unix())
	return err
}

func (d *DB) DeleteInstall(ctx context.Context, buildHash string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM installs WHERE build_hash = ?", buildHash)
	return err
}

func (d *DB) GetInstall(ctx context.Context, buildHash string) (build.InstallRecord, bool, error) {
	rec, err := scanInstall(d.sql.QueryRowContext(ctx, `
SELECT build_hash, repo, major, minor, patch, branch, install_path, installed_at
FROM installs WHERE build_hash = ?`, buildHash))
	if err == sql.ErrNoRows {
		return build.InstallRecord{}, false, nil
	}
	if err != nil {
		return build.InstallRecord{}, false, err
	}
	return rec, true, nil
}

func (d *DB) ListInstalls(ctx context.Context) ([]build.InstallRecord, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT build_hash, repo, major, minor, patch, branch, install_path, installed_at
FROM installs ORDER BY repo, major, minor, patch, build_hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []build.InstallRecord
	for rows.Next() {
		rec, err := scanInstall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstall(row rowScanner) (build.InstallRecord, error) {
	var (
		rec build.InstallRecord
		at  int64
	)
	err := row.Scan(&rec.BuildHash, &rec.Repo, &rec.Version.Major, &rec.Version.Minor,
		&rec.Version.Patch, &rec.Branch, &rec.Path, &at)
	if err != nil {
		return build.InstallRecord{}, err
	}
	rec.InstalledAt = time.Unix(at, 0).UTC()
	return rec, nil
}
