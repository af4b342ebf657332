package build

import "time"

// Record identifies one remote or local build.
//
// (Repo, Hash) is globally unique: a catalog never holds two records with
// the same hash under the same repo.
type Record struct {
	// Repo is the identifier of the source repository.
	Repo string

	Version Version

	// Branch the build was made from ("daily", "stable", ...). An empty
	// branch is its own category, not a wildcard.
	Branch string

	// Hash is the origin-specific build hash, unique within
	// (Repo, Version, Branch).
	Hash string

	// CommitTime is the UTC timestamp of the source commit. Used for
	// tie-breaking and @-filtering.
	CommitTime time.Time

	// Platform and Arch are target OS/architecture tags used for the
	// default advisory filtering.
	Platform string
	Arch     string

	DownloadURL string
	Checksum    string
}

// InstallRecord joins a catalog build to its on-disk install.
type InstallRecord struct {
	// BuildHash references the catalog Record this install came from.
	// The referenced record may be absent from a freshly re-fetched
	// catalog; installed builds stay installed regardless.
	BuildHash string

	Repo        string
	Version     Version
	Branch      string
	Path        string
	InstalledAt time.Time
}
