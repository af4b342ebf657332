// Package match resolves queries against sets of candidate build records.
//
// Resolution is two-phase: exact version components and the hash filter
// prune the pool first, then wildcard components resolve left to right,
// each narrowing the pool before the next, because "newest minor within
// the newest major" differs from "newest minor overall". A wildcard
// therefore always picks its extreme within the set the fixed
// constraints allow. Resolution is deterministic regardless of candidate
// input order; ties on commit time break by hash ascending.
package match

import (
	"sort"
	"strings"

	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/query"
)

// Resolve returns the candidates matching q. An empty result is a normal
// outcome, not an error. When platformFilter is set, candidates are first
// narrowed by the advisory target filter; that pass never participates in
// version or hash matching.
func Resolve(q query.Query, candidates []build.Record, platformFilter bool) []build.Record {
	pool := make([]build.Record, 0, len(candidates))
	target := build.CurrentTarget()
	for _, r := range candidates {
		if q.Repo != "" && r.Repo != q.Repo {
			continue
		}
		if q.Branch != "" && r.Branch != q.Branch {
			continue
		}
		if platformFilter && !build.MatchesTarget(r, target) {
			continue
		}
		pool = append(pool, r)
	}

	// Canonical order makes wildcard resolution independent of the
	// caller's candidate order.
	sortRecords(pool)

	type axis struct {
		comp  query.Component
		field func(build.Record) int
	}
	axes := []axis{
		{q.Major, func(r build.Record) int { return r.Version.Major }},
		{q.Minor, func(r build.Record) int { return r.Version.Minor }},
		{q.Patch, func(r build.Record) int { return r.Version.Patch }},
	}

	// Exact components and the hash filter prune before any wildcard
	// resolves: "^.5.*" means the newest major among minor=5 builds, not
	// the newest major overall.
	for _, a := range axes {
		if a.comp.Placement == query.Exact {
			pool = narrowComponent(pool, a.comp, a.field)
		}
	}
	switch q.HashMode {
	case query.HashExact:
		pool = filterRecords(pool, func(r build.Record) bool { return r.Hash == q.Hash })
	case query.HashPrefix:
		pool = filterRecords(pool, func(r build.Record) bool { return strings.HasPrefix(r.Hash, q.Hash) })
	}

	// Wildcards resolve left to right over the pruned pool.
	for _, a := range axes {
		if a.comp.Placement == query.Newest || a.comp.Placement == query.Oldest {
			pool = narrowComponent(pool, a.comp, a.field)
		}
	}

	switch q.CommitTime {
	case query.Newest:
		pool = pickByTime(pool, true)
	case query.Oldest:
		pool = pickByTime(pool, false)
	}

	return pool
}

// ResolveOne narrows to a single record. When several candidates survive
// every filter and no wildcard forced a unique pick, the newest by commit
// time wins (hash ascending on ties); this keeps single-target commands
// ergonomic instead of failing.
func ResolveOne(q query.Query, candidates []build.Record, platformFilter bool) (build.Record, bool) {
	pool := Resolve(q, candidates, platformFilter)
	switch len(pool) {
	case 0:
		return build.Record{}, false
	case 1:
		return pool[0], true
	default:
		pool = pickByTime(pool, true)
		return pool[0], true
	}
}

func narrowComponent(pool []build.Record, c query.Component, field func(build.Record) int) []build.Record {
	switch c.Placement {
	case query.Exact:
		return filterRecords(pool, func(r build.Record) bool { return field(r) == c.Num })
	case query.Newest, query.Oldest:
		if len(pool) == 0 {
			return pool
		}
		best := field(pool[0])
		for _, r := range pool[1:] {
			v := field(r)
			if (c.Placement == query.Newest && v > best) || (c.Placement == query.Oldest && v < best) {
				best = v
			}
		}
		return filterRecords(pool, func(r build.Record) bool { return field(r) == best })
	default:
		return pool
	}
}

// pickByTime narrows the pool to the single record with the max (or min)
// commit time. Ties break by hash ascending for newest and descending for
// oldest, keeping both directions deterministic.
func pickByTime(pool []build.Record, newest bool) []build.Record {
	if len(pool) == 0 {
		return pool
	}
	best := pool[0]
	for _, r := range pool[1:] {
		if timeBetter(r, best, newest) {
			best = r
		}
	}
	return []build.Record{best}
}

func timeBetter(r, best build.Record, newest bool) bool {
	if !r.CommitTime.Equal(best.CommitTime) {
		if newest {
			return r.CommitTime.After(best.CommitTime)
		}
		return r.CommitTime.Before(best.CommitTime)
	}
	if newest {
		return r.Hash < best.Hash
	}
	return r.Hash > best.Hash
}

func filterRecords(pool []build.Record, keep func(build.Record) bool) []build.Record {
	out := pool[:0:len(pool)]
	for _, r := range pool {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func sortRecords(pool []build.Record) {
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if c := a.Version.Compare(b.Version); c != 0 {
			return c < 0
		}
		if !a.CommitTime.Equal(b.CommitTime) {
			return a.CommitTime.Before(b.CommitTime)
		}
		return a.Hash < b.Hash
	})
}
