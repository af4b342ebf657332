// Package catalog holds the in-memory, per-repository collection of
// build records merged from remote metadata.
package catalog

import (
	"time"

	"github.com/zeptofine/blrs-cli/pkg/build"
)

// Catalog is one repository's known builds, keyed by hash and kept in
// insertion order, with staleness tracking for cache-refresh decisions.
type Catalog struct {
	repo     string
	interval time.Duration

	order       []string
	byHash      map[string]build.Record
	lastFetched time.Time
}

func New(repo string, fetchInterval time.Duration) *Catalog {
	return &Catalog{
		repo:     repo,
		interval: fetchInterval,
		byHash:   make(map[string]build.Record),
	}
}

func (c *Catalog) Repo() string { return c.repo }

// Ingest merges newly fetched records by upsert-on-hash: newer metadata
// for a known hash replaces the old record, unseen hashes are appended.
// Records absent from the new fetch are never removed; upstream pruning
// must not delete local knowledge of a build a user may have installed.
func (c *Catalog) Ingest(records []build.Record) {
	for _, r := range records {
		if r.Hash == "" {
			continue
		}
		r.Repo = c.repo
		if _, known := c.byHash[r.Hash]; !known {
			c.order = append(c.order, r.Hash)
		}
		c.byHash[r.Hash] = r
	}
}

// Builds returns the records in insertion order.
func (c *Catalog) Builds() []build.Record {
	out := make([]build.Record, 0, len(c.order))
	for _, h := range c.order {
		out = append(out, c.byHash[h])
	}
	return out
}

// Get looks up a record by hash.
func (c *Catalog) Get(hash string) (build.Record, bool) {
	r, ok := c.byHash[hash]
	return r, ok
}

func (c *Catalog) Len() int { return len(c.order) }

// IsStale reports whether the catalog is due for a refetch. A catalog
// that has never been fetched is always stale.
func (c *Catalog) IsStale(now time.Time) bool {
	if c.lastFetched.IsZero() {
		return true
	}
	return !now.Before(c.lastFetched.Add(c.interval))
}

// NextFetch returns when the catalog becomes stale. Zero if it already is.
func (c *Catalog) NextFetch(now time.Time) time.Time {
	if c.IsStale(now) {
		return time.Time{}
	}
	return c.lastFetched.Add(c.interval)
}

func (c *Catalog) MarkFetched(t time.Time) { c.lastFetched = t }
func (c *Catalog) LastFetched() time.Time  { return c.lastFetched }
func (c *Catalog) Interval() time.Duration { return c.interval }

// Set is the merged view over every configured repository's catalog,
// in configuration order.
type Set struct {
	order  []string
	byRepo map[string]*Catalog
}

func NewSet() *Set {
	return &Set{byRepo: make(map[string]*Catalog)}
}

// Add registers a repo catalog. Adding an already-known repo replaces it.
func (s *Set) Add(c *Catalog) {
	if _, known := s.byRepo[c.repo]; !known {
		s.order = append(s.order, c.repo)
	}
	s.byRepo[c.repo] = c
}

func (s *Set) Repo(repo string) (*Catalog, bool) {
	c, ok := s.byRepo[repo]
	return c, ok
}

// Repos returns the catalogs in configuration order.
func (s *Set) Repos() []*Catalog {
	out := make([]*Catalog, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byRepo[id])
	}
	return out
}

// All returns every known record across repos, repo by repo in
// configuration order.
func (s *Set) All() []build.Record {
	var out []build.Record
	for _, id := range s.order {
		out = append(out, s.byRepo[id].Builds()...)
	}
	return out
}

// Find looks a record up by hash across all repos.
func (s *Set) Find(hash string) (build.Record, bool) {
	for _, id := range s.order {
		if r, ok := s.byRepo[id].Get(hash); ok {
			return r, true
		}
	}
	return build.Record{}, false
}
