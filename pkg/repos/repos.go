// Package repos defines the configured remote repositories and the
// fetchers that turn their metadata into build records.
package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/zeptofine/blrs-cli/pkg/build"
)

// Kind is the closed set of supported repository source kinds. New
// sources are added by adding a kind and a Fetcher, not by subclassing.
type Kind string

const (
	// KindOfficialJSON is the builder's JSON API (e.g. the Blender
	// builder daily endpoint with ?format=json).
	KindOfficialJSON Kind = "official-json"

	// KindHTMLIndex is a plain directory-index page listing build
	// archives as links.
	KindHTMLIndex Kind = "html-index"
)

// RepoConfig is one configured source, loaded once at process start and
// passed into the core as an immutable value.
type RepoConfig struct {
	ID            string
	Nickname      string
	Kind          Kind
	URL           string
	FetchInterval time.Duration
}

// Name is the display name: the nickname when set, the ID otherwise.
func (r RepoConfig) Name() string {
	if r.Nickname != "" {
		return r.Nickname
	}
	return r.ID
}

// Config is the process-wide configuration handed down by the CLI layer.
type Config struct {
	LibraryPath  string
	DatabasePath string
	Repos        []RepoConfig
}

// Fetcher fetches one repository's metadata and parses it into build
// records. Implementations do the network I/O; callers decide when a
// fetch is due.
type Fetcher interface {
	Kind() Kind
	Fetch(ctx context.Context, repo RepoConfig) ([]build.Record, error)
}

// FetchError wraps a failed repository fetch with its origin.
type FetchError struct {
	Repo   string
	URL    string
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s from %s: unexpected status %d", e.Repo, e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s from %s: %v", e.Repo, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ForKind returns the default fetcher for a repository kind.
func ForKind(k Kind) (Fetcher, error) {
	switch k {
	case KindOfficialJSON:
		return NewJSONAPIFetcher(), nil
	case KindHTMLIndex:
		return NewHTMLIndexFetcher(), nil
	default:
		return nil, fmt.Errorf("unknown repository kind %q", k)
	}
}
