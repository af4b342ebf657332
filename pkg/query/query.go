// Package query implements the textual build query grammar:
//
//	[repo "/"] major "." minor ["." patch] ["-" branch] [("+"|"#") hash] ["@" timewild]
//
// where each version component is a number, "^" (newest), "-" (oldest) or
// "*" (any), and timewild is one of "^", "*", "-". The grammar is the
// stable contract scripts depend on; parsing is purely syntactic and does
// no catalog lookups.
package query

import (
	"strconv"
	"strings"

	"github.com/zeptofine/blrs-cli/pkg/build"
)

// Placement is how a single wildcard axis narrows candidates.
type Placement uint8

const (
	Any Placement = iota
	Newest
	Oldest
	Exact
)

func (p Placement) String() string {
	switch p {
	case Newest:
		return "^"
	case Oldest:
		return "-"
	case Exact:
		return "="
	default:
		return "*"
	}
}

// Component is one version component of a query: a wildcard or an exact
// number.
type Component struct {
	Placement Placement
	Num       int // valid only when Placement == Exact
}

func ExactComp(n int) Component { return Component{Placement: Exact, Num: n} }

func (c Component) String() string {
	if c.Placement == Exact {
		return strconv.Itoa(c.Num)
	}
	return c.Placement.String()
}

// HashMode distinguishes prefix from exact hash lookup intent.
type HashMode uint8

const (
	HashNone   HashMode = iota
	HashPrefix          // "+" marker
	HashExact           // "#" marker
)

// Query is a filter specification over build records. The zero value
// matches nothing useful; use Parse or FromRecord.
type Query struct {
	// Repo filters by exact repo name; empty means all configured repos.
	Repo string

	Major Component
	Minor Component
	Patch Component

	// Branch filters by exact branch name; empty means any branch.
	Branch string

	HashMode HashMode
	Hash     string

	// CommitTime is restricted by the grammar to the three wildcard
	// forms; a literal timestamp is never accepted.
	CommitTime Placement
}

// FromRecord builds the query that identifies exactly r. Formatting it
// with String and re-parsing round-trips to the same query.
func FromRecord(r build.Record) Query {
	q := Query{
		Repo:       r.Repo,
		Major:      ExactComp(r.Version.Major),
		Minor:      ExactComp(r.Version.Minor),
		Patch:      ExactComp(r.Version.Patch),
		Branch:     r.Branch,
		CommitTime: Any,
	}
	if r.Hash != "" {
		q.HashMode = HashExact
		q.Hash = r.Hash
	}
	return q
}

// String renders the query back into grammar form. A defaulted patch is
// emitted as an explicit "*" and an "any" commit time is omitted, so
// Parse(q.String()) == q holds for any parsed query.
func (q Query) String() string {
	var b strings.Builder
	if q.Repo != "" {
		b.WriteString(q.Repo)
		b.WriteByte('/')
	}
	b.WriteString(q.Major.String())
	b.WriteByte('.')
	b.WriteString(q.Minor.String())
	b.WriteByte('.')
	b.WriteString(q.Patch.String())
	if q.Branch != "" {
		b.WriteByte('-')
		b.WriteString(q.Branch)
	}
	switch q.HashMode {
	case HashPrefix:
		b.WriteByte('+')
		b.WriteString(q.Hash)
	case HashExact:
		b.WriteByte('#')
		b.WriteString(q.Hash)
	}
	switch q.CommitTime {
	case Newest:
		b.WriteString("@^")
	case Oldest:
		b.WriteString("@-")
	}
	return b.String()
}
