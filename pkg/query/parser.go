package query

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseErrorKind classifies query parse failures.
type ParseErrorKind uint8

const (
	ErrEmptyQuery ParseErrorKind = iota
	ErrInvalidVersionComponent
	ErrInvalidTimeWildcard
	ErrMalformedHashMarker
	ErrEmptyBranch
)

func (k ParseErrorKind) String() string {
	switch k {
	case ErrEmptyQuery:
		return "empty query"
	case ErrInvalidVersionComponent:
		return "invalid version component"
	case ErrInvalidTimeWildcard:
		return "invalid time wildcard"
	case ErrMalformedHashMarker:
		return "malformed hash marker"
	case ErrEmptyBranch:
		return "empty branch name"
	default:
		return "parse error"
	}
}

// ParseError reports why a query string failed to parse.
type ParseError struct {
	Kind   ParseErrorKind
	Input  string
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s in query %q", e.Kind, e.Input)
	}
	return fmt.Sprintf("%s in query %q: %s", e.Kind, e.Input, e.Detail)
}

func parseErr(kind ParseErrorKind, input, detail string) error {
	return &ParseError{Kind: kind, Input: input, Detail: detail}
}

// Parse converts a query string into a Query. It performs no I/O.
func Parse(text string) (Query, error) {
	input := text
	s := strings.TrimSpace(text)
	if s == "" {
		return Query{}, parseErr(ErrEmptyQuery, input, "")
	}

	q := Query{CommitTime: Any}

	if i := strings.IndexByte(s, '/'); i >= 0 {
		q.Repo = s[:i]
		s = s[i+1:]
	}

	// The time wildcard is the only thing allowed after '@'. A literal
	// timestamp is rejected, not coerced.
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		switch s[i+1:] {
		case "^":
			q.CommitTime = Newest
		case "*", "":
			q.CommitTime = Any
		case "-":
			q.CommitTime = Oldest
		default:
			return Query{}, parseErr(ErrInvalidTimeWildcard, input,
				fmt.Sprintf("%q is not one of ^ * -", s[i+1:]))
		}
		s = s[:i]
	}

	if i := strings.IndexAny(s, "+#"); i >= 0 {
		hash := s[i+1:]
		if hash == "" {
			return Query{}, parseErr(ErrMalformedHashMarker, input, "hash marker without hash")
		}
		if strings.ContainsAny(hash, "+#") {
			return Query{}, parseErr(ErrMalformedHashMarker, input, "multiple hash markers")
		}
		if s[i] == '+' {
			q.HashMode = HashPrefix
		} else {
			q.HashMode = HashExact
		}
		q.Hash = hash
		s = s[:i]
	}

	var err error
	pos := 0
	if q.Major, pos, err = parseComponent(s, pos, input); err != nil {
		return Query{}, err
	}
	if pos >= len(s) || s[pos] != '.' {
		return Query{}, parseErr(ErrInvalidVersionComponent, input, "expected at least major.minor")
	}
	pos++
	if q.Minor, pos, err = parseComponent(s, pos, input); err != nil {
		return Query{}, err
	}

	// Missing patch defaults to the "any" wildcard.
	q.Patch = Component{Placement: Any}
	if pos < len(s) && s[pos] == '.' {
		pos++
		if q.Patch, pos, err = parseComponent(s, pos, input); err != nil {
			return Query{}, err
		}
	}

	if pos < len(s) {
		if s[pos] != '-' {
			return Query{}, parseErr(ErrInvalidVersionComponent, input,
				fmt.Sprintf("unexpected %q after version", s[pos:]))
		}
		q.Branch = s[pos+1:]
		if q.Branch == "" {
			return Query{}, parseErr(ErrEmptyBranch, input, "branch separator without a branch name")
		}
	}
	if q.Branch == "*" {
		q.Branch = ""
	}

	return q, nil
}

// parseComponent consumes one version component at s[pos]: a digit run or
// a single wildcard rune.
func parseComponent(s string, pos int, input string) (Component, int, error) {
	if pos >= len(s) {
		return Component{}, pos, parseErr(ErrInvalidVersionComponent, input, "missing component")
	}
	switch s[pos] {
	case '^':
		return Component{Placement: Newest}, pos + 1, nil
	case '*':
		return Component{Placement: Any}, pos + 1, nil
	case '-':
		return Component{Placement: Oldest}, pos + 1, nil
	}
	end := pos
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == pos {
		return Component{}, pos, parseErr(ErrInvalidVersionComponent, input,
			fmt.Sprintf("unexpected %q", s[pos:]))
	}
	n, err := strconv.Atoi(s[pos:end])
	if err != nil {
		return Component{}, pos, parseErr(ErrInvalidVersionComponent, input, err.Error())
	}
	return ExactComp(n), end, nil
}
