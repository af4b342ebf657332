package build

import (
	"runtime"
	"strings"
)

// Target describes the OS/arch pair builds are filtered against by
// default.
type Target struct {
	Platform string
	Arch     string
}

// CurrentTarget returns the running machine's target.
func CurrentTarget() Target {
	return Target{Platform: runtime.GOOS, Arch: runtime.GOARCH}
}

// NormalizeArch maps the architecture spellings found in remote build
// metadata onto Go's GOARCH names.
func NormalizeArch(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x86_64", "amd64", "x64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	case "x86", "i386", "386":
		return "386"
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}

// NormalizePlatform maps remote platform tags onto GOOS names.
func NormalizePlatform(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linux":
		return "linux"
	case "windows", "win", "win64":
		return "windows"
	case "darwin", "macos", "mac":
		return "darwin"
	default:
		return strings.ToLower(strings.TrimSpace(s))
	}
}

// MatchesTarget reports whether a record looks usable on the given
// target. This is the advisory platform filter: it is best-effort (it can
// both over- and under-match, hence the --all-builds escape hatch) and is
// applied as a separate pass, never inside hash/version matching.
func MatchesTarget(r Record, t Target) bool {
	if r.Platform != "" && NormalizePlatform(r.Platform) != t.Platform {
		return false
	}
	if r.Arch != "" && NormalizeArch(r.Arch) != t.Arch {
		return false
	}
	return true
}

// FilterTarget returns the records matching t, preserving order.
func FilterTarget(records []Record, t Target) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if MatchesTarget(r, t) {
			out = append(out, r)
		}
	}
	return out
}
