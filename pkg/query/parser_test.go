package query

import "testing"

func TestParseFullQuery(t *testing.T) {
	q, err := Parse("daily/4.2.1-stable+abc123@^")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Repo != "daily" {
		t.Fatalf("expected repo daily, got %q", q.Repo)
	}
	if q.Major != ExactComp(4) || q.Minor != ExactComp(2) || q.Patch != ExactComp(1) {
		t.Fatalf("unexpected version components: %v %v %v", q.Major, q.Minor, q.Patch)
	}
	if q.Branch != "stable" {
		t.Fatalf("expected branch stable, got %q", q.Branch)
	}
	if q.HashMode != HashPrefix || q.Hash != "abc123" {
		t.Fatalf("expected +abc123, got mode=%v hash=%q", q.HashMode, q.Hash)
	}
	if q.CommitTime != Newest {
		t.Fatalf("expected newest commit time, got %v", q.CommitTime)
	}
}

func TestParseWildcards(t *testing.T) {
	q, err := Parse("^.*.-")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Major.Placement != Newest || q.Minor.Placement != Any || q.Patch.Placement != Oldest {
		t.Fatalf("unexpected placements: %v %v %v", q.Major, q.Minor, q.Patch)
	}
	if q.Repo != "" || q.Branch != "" || q.HashMode != HashNone {
		t.Fatalf("expected empty repo/branch/hash, got %+v", q)
	}
}

func TestParseMissingPatchDefaultsToAny(t *testing.T) {
	q, err := Parse("4.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Patch.Placement != Any {
		t.Fatalf("expected patch *, got %v", q.Patch)
	}
	if q.CommitTime != Any {
		t.Fatalf("expected commit time *, got %v", q.CommitTime)
	}
}

func TestParseBranchAfterWildcardPatch(t *testing.T) {
	q, err := Parse("4.^.^-daily")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Minor.Placement != Newest || q.Patch.Placement != Newest {
		t.Fatalf("unexpected components: %v %v", q.Minor, q.Patch)
	}
	if q.Branch != "daily" {
		t.Fatalf("expected branch daily, got %q", q.Branch)
	}
}

func TestParseOldestPatchThenBranch(t *testing.T) {
	// The "-" right after the dot is the oldest wildcard; the next "-"
	// starts the branch.
	q, err := Parse("4.2.--candidate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Patch.Placement != Oldest {
		t.Fatalf("expected patch oldest, got %v", q.Patch)
	}
	if q.Branch != "candidate" {
		t.Fatalf("expected branch candidate, got %q", q.Branch)
	}
}

func TestParseExactHash(t *testing.T) {
	q, err := Parse("*.*.*#deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.HashMode != HashExact || q.Hash != "deadbeef" {
		t.Fatalf("expected exact hash deadbeef, got mode=%v hash=%q", q.HashMode, q.Hash)
	}
}

func TestParseBranchWildcardNormalized(t *testing.T) {
	q, err := Parse("4.2.0-*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Branch != "" {
		t.Fatalf("expected wildcard branch to normalize to empty, got %q", q.Branch)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		in   string
		kind ParseErrorKind
	}{
		{"", ErrEmptyQuery},
		{"   ", ErrEmptyQuery},
		{"4", ErrInvalidVersionComponent},
		{"4.x", ErrInvalidVersionComponent},
		{"a.2.3", ErrInvalidVersionComponent},
		{"4.2.3x", ErrInvalidVersionComponent},
		{"4.2@2024-01-01", ErrInvalidTimeWildcard},
		{"4.2@x", ErrInvalidTimeWildcard},
		{"4.2-", ErrEmptyBranch},
		{"4.2.0-", ErrEmptyBranch},
		{"4.2+", ErrMalformedHashMarker},
		{"4.2#", ErrMalformedHashMarker},
		{"4.2+abc#def", ErrMalformedHashMarker},
	}
	for _, c := range cases {
		_, err := Parse(c.in)
		if err == nil {
			t.Fatalf("expected error for %q, got none", c.in)
		}
		pe, ok := err.(*ParseError)
		if !ok {
			t.Fatalf("expected *ParseError for %q, got %T", c.in, err)
		}
		if pe.Kind != c.kind {
			t.Fatalf("expected %v for %q, got %v", c.kind, c.in, pe.Kind)
		}
	}
}

func TestParseLiteralTimestampRejectedNotCoerced(t *testing.T) {
	_, err := Parse("4.2.0@1700000000")
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ErrInvalidTimeWildcard {
		t.Fatalf("expected invalid time wildcard error, got %v", err)
	}
}

func TestStringRoundTrip(t *testing.T) {
	inputs := []string{
		"daily/4.2.1-stable+abc123@^",
		"^.^.^",
		"4.2",
		"*.*.*#deadbeef",
		"4.^.--daily@-",
		"stable/4.5.0",
	}
	for _, in := range inputs {
		q, err := Parse(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		again, err := Parse(q.String())
		if err != nil {
			t.Fatalf("reparse %q (from %q): %v", q.String(), in, err)
		}
		if again != q {
			t.Fatalf("round trip mismatch for %q.\nwant: %#v\ngot:  %#v", in, q, again)
		}
	}
}
