package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/zeptofine/blrs-cli/pkg/blendfile"
	"github.com/zeptofine/blrs-cli/pkg/library"
	"github.com/zeptofine/blrs-cli/pkg/query"
)

// usageError is a user input mistake: wrong arguments, missing query.
type usageError struct {
	msg string
}

func (e usageError) Error() string { return e.msg }

// noMatchError reports queries that resolved to nothing. This is a
// normal outcome of matching, surfaced as an error only by commands that
// need a target.
type noMatchError struct {
	queries []string
}

func (e *noMatchError) Error() string {
	return fmt.Sprintf("no matches for query(s) %s", strings.Join(e.queries, ", "))
}

// fetchTooSoonError is returned when every repo is still fresh and
// --force was not given.
type fetchTooSoonError struct {
	wait time.Duration
}

func (e *fetchTooSoonError) Error() string {
	return fmt.Sprintf("insufficient time has passed since the last fetch; "+
		"it is unlikely that new builds are available. Wait %ds or pass --force",
		int(e.wait.Seconds())+1)
}

// exitCode maps the first error of a run onto the process exit status:
// 2 for query/usage mistakes, 130 for cancellation, the child's own code
// for launched builds, 1 for everything else.
func exitCode(err error) int {
	var (
		parseErr *query.ParseError
		noMatch  *noMatchError
		tooSoon  *fetchTooSoonError
		usage    usageError
		exitErr  *exec.ExitError
	)
	switch {
	case errors.As(err, &parseErr),
		errors.As(err, &noMatch),
		errors.As(err, &tooSoon),
		errors.As(err, &usage),
		errors.Is(err, library.ErrNotInstalled),
		errors.Is(err, blendfile.ErrNoMatchingBuild):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	default:
		return 1
	}
}
