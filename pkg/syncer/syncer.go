// Package syncer orchestrates fetching every configured repository's
// catalog and merging the results back into the build catalog.
package syncer

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/catalog"
	"github.com/zeptofine/blrs-cli/pkg/repos"
	"github.com/zeptofine/blrs-cli/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Options control a single sync run.
type Options struct {
	// Force fetches every repo even when its catalog is fresh.
	Force bool

	// Parallel runs independent repo fetches concurrently. Sequential
	// mode exists to respect per-source rate limits; it is a user-facing
	// trade-off, not an optimization detail.
	Parallel bool

	// IgnoreErrors attempts every repo regardless of earlier failures.
	// Either way the report's first error drives the exit status.
	IgnoreErrors bool

	// Now is the staleness reference time; zero means time.Now.
	Now time.Time

	// Fetchers overrides fetcher construction per kind (tests).
	Fetchers map[repos.Kind]repos.Fetcher

	Log Logger
}

// RepoStatus is a repo's outcome within one sync run.
type RepoStatus uint8

const (
	// StatusFetched means the repo was fetched and merged.
	StatusFetched RepoStatus = iota
	// StatusFresh means the fetch was skipped because the catalog is not
	// stale and the run was not forced.
	StatusFresh
	// StatusFailed means the fetch or parse errored.
	StatusFailed
	// StatusNotRun means the fetch never started because an earlier repo
	// failed and IgnoreErrors was off.
	StatusNotRun
)

func (s RepoStatus) String() string {
	switch s {
	case StatusFetched:
		return "fetched"
	case StatusFresh:
		return "fresh"
	case StatusFailed:
		return "failed"
	default:
		return "not run"
	}
}

// RepoResult is one repo's independent outcome.
type RepoResult struct {
	Repo   string
	Status RepoStatus
	Count  int
	Err    error
}

// Report collects every repo outcome of a sync run, in configuration
// order.
type Report struct {
	Results []RepoResult
}

// FirstErr returns the first failure in configuration order, or nil.
func (r Report) FirstErr() error {
	for _, res := range r.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return nil
}

// Fetched sums the record counts of successfully fetched repos.
func (r Report) Fetched() int {
	n := 0
	for _, res := range r.Results {
		if res.Status == StatusFetched {
			n += res.Count
		}
	}
	return n
}

// Syncer drives per-repo fetches and owns merging into the catalog set.
// Merging happens only on the coordinating goroutine, so Ingest needs no
// lock.
type Syncer struct {
	cfg repos.Config
	set *catalog.Set
	db  *storage.DB // optional; nil skips persistence
}

func New(cfg repos.Config, set *catalog.Set, db *storage.DB) *Syncer {
	return &Syncer{cfg: cfg, set: set, db: db}
}

// Sync fetches each configured repository, honoring force, parallel and
// ignore-errors policy, and merges results into the catalog. The returned
// error is the report's first failure, for the caller to report and to
// drive the process exit status.
func (s *Syncer) Sync(ctx context.Context, opts Options) (Report, error) {
	log := opts.Log
	if log == nil {
		log = nopLogger{}
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	type outcome struct {
		records []build.Record
		err     error
		ran     bool
	}
	outcomes := make([]outcome, len(s.cfg.Repos))

	// failed flips once a fetch errors; with IgnoreErrors off it stops
	// new fetches from starting. In-flight fetches always finish.
	var failed atomic.Bool

	runOne := func(ctx context.Context, i int) {
		rc := s.cfg.Repos[i]
		if failed.Load() && !opts.IgnoreErrors {
			return
		}
		outcomes[i].ran = true

		log.Infof("Fetching %s from %s", rc.Name(), rc.URL)
		fetcher, err := s.fetcherFor(rc.Kind, opts)
		if err == nil {
			outcomes[i].records, err = fetcher.Fetch(ctx, rc)
		}
		if err != nil {
			log.Errorf("Failed fetching %s: %v", rc.Name(), err)
			outcomes[i].err = err
			failed.Store(true)
			return
		}
		log.Debugf("Fetched %d builds from %s", len(outcomes[i].records), rc.Name())
	}

	skip := make([]bool, len(s.cfg.Repos))
	for i, rc := range s.cfg.Repos {
		cat := s.catalogFor(rc)
		if !opts.Force && !cat.IsStale(now) {
			skip[i] = true
			log.Debugf("Skipping %s: catalog is fresh until %s", rc.Name(), cat.NextFetch(now))
		}
	}

	if opts.Parallel {
		g := new(errgroup.Group)
		for i := range s.cfg.Repos {
			if skip[i] {
				continue
			}
			i := i
			g.Go(func() error {
				runOne(ctx, i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range s.cfg.Repos {
			if skip[i] {
				continue
			}
			runOne(ctx, i)
		}
	}

	// Merge sequentially in configuration order: ingest is commutative
	// per hash, so the final catalog does not depend on completion order.
	var report Report
	for i, rc := range s.cfg.Repos {
		res := RepoResult{Repo: rc.Name()}
		o := outcomes[i]
		switch {
		case skip[i]:
			res.Status = StatusFresh
		case !o.ran:
			res.Status = StatusNotRun
		case o.err != nil:
			res.Status = StatusFailed
			res.Err = o.err
		default:
			res.Status = StatusFetched
			res.Count = len(o.records)
			cat := s.catalogFor(rc)
			cat.Ingest(o.records)
			cat.MarkFetched(now)
			if err := s.persist(ctx, rc.ID, cat, now); err != nil {
				log.Warnf("Failed persisting catalog for %s: %v", rc.Name(), err)
				res.Status = StatusFailed
				res.Err = err
			}
		}
		report.Results = append(report.Results, res)
	}

	return report, report.FirstErr()
}

// Stale reports whether any repo is due for a fetch, and the earliest
// time one becomes due otherwise.
func (s *Syncer) Stale(now time.Time) (bool, time.Time) {
	var next time.Time
	for _, rc := range s.cfg.Repos {
		cat := s.catalogFor(rc)
		if cat.IsStale(now) {
			return true, time.Time{}
		}
		if due := cat.NextFetch(now); next.IsZero() || due.Before(next) {
			next = due
		}
	}
	return false, next
}

func (s *Syncer) catalogFor(rc repos.RepoConfig) *catalog.Catalog {
	if cat, ok := s.set.Repo(rc.ID); ok {
		return cat
	}
	cat := catalog.New(rc.ID, rc.FetchInterval)
	s.set.Add(cat)
	return cat
}

func (s *Syncer) fetcherFor(kind repos.Kind, opts Options) (repos.Fetcher, error) {
	if f, ok := opts.Fetchers[kind]; ok {
		return f, nil
	}
	return repos.ForKind(kind)
}

func (s *Syncer) persist(ctx context.Context, repoID string, cat *catalog.Catalog, now time.Time) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.SaveBuilds(ctx, repoID, cat.Builds()); err != nil {
		return err
	}
	return s.db.SetLastFetched(ctx, repoID, now)
}
