// Package render turns core build/install collections into the display
// formats the CLI exposes. It consumes the structures unmodified; sorting
// and formatting are display-layer concerns only.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pterm/pterm"

	"github.com/zeptofine/blrs-cli/pkg/build"
)

type Format string

const (
	FormatTree       Format = "tree"
	FormatPaths      Format = "paths"
	FormatJSON       Format = "json"
	FormatPrettyJSON Format = "pretty-json"
)

type SortKey string

const (
	SortVersion  SortKey = "version"
	SortDateTime SortKey = "datetime"
)

// Entry is one listed build: a catalog record plus its install state.
type Entry struct {
	Repo        string    `json:"repo"`
	Version     string    `json:"version"`
	Branch      string    `json:"branch,omitempty"`
	Hash        string    `json:"hash"`
	CommitTime  time.Time `json:"commit_time"`
	Platform    string    `json:"platform,omitempty"`
	Arch        string    `json:"arch,omitempty"`
	Installed   bool      `json:"installed"`
	InstallPath string    `json:"install_path,omitempty"`

	version build.Version
}

// RepoListing groups entries per repository.
type RepoListing struct {
	Repo    string  `json:"repo"`
	Entries []Entry `json:"builds"`
}

// Listing joins catalog records with install records. Installed builds
// whose catalog entry disappeared upstream are still listed, synthesized
// from the install record alone.
func Listing(records []build.Record, installs []build.InstallRecord, installedOnly bool, sortBy SortKey) []RepoListing {
	installed := make(map[string]build.InstallRecord, len(installs))
	for _, ir := range installs {
		installed[ir.BuildHash] = ir
	}

	perRepo := make(map[string][]Entry)
	var repoOrder []string
	add := func(repo string, e Entry) {
		if _, seen := perRepo[repo]; !seen {
			repoOrder = append(repoOrder, repo)
		}
		perRepo[repo] = append(perRepo[repo], e)
	}

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.Hash] = true
		ir, ok := installed[r.Hash]
		if installedOnly && !ok {
			continue
		}
		e := Entry{
			Repo:       r.Repo,
			Version:    r.Version.String(),
			Branch:     r.Branch,
			Hash:       r.Hash,
			CommitTime: r.CommitTime,
			Platform:   r.Platform,
			Arch:       r.Arch,
			version:    r.Version,
		}
		if ok {
			e.Installed = true
			e.InstallPath = ir.Path
		}
		add(r.Repo, e)
	}

	// Installed builds with no catalog record left.
	for _, ir := range installs {
		if seen[ir.BuildHash] {
			continue
		}
		add(ir.Repo, Entry{
			Repo:        ir.Repo,
			Version:     ir.Version.String(),
			Branch:      ir.Branch,
			Hash:        ir.BuildHash,
			Installed:   true,
			InstallPath: ir.Path,
			version:     ir.Version,
		})
	}

	sort.Strings(repoOrder)
	out := make([]RepoListing, 0, len(repoOrder))
	for _, repo := range repoOrder {
		entries := perRepo[repo]
		sortEntries(entries, sortBy)
		out = append(out, RepoListing{Repo: repo, Entries: entries})
	}
	return out
}

func sortEntries(entries []Entry, key SortKey) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if key == SortDateTime && !a.CommitTime.Equal(b.CommitTime) {
			return a.CommitTime.Before(b.CommitTime)
		}
		if c := a.version.Compare(b.version); c != 0 {
			return c < 0
		}
		if !a.CommitTime.Equal(b.CommitTime) {
			return a.CommitTime.Before(b.CommitTime)
		}
		return a.Hash < b.Hash
	})
}

// Render writes listings to w in the requested format.
func Render(w io.Writer, listings []RepoListing, format Format) error {
	switch format {
	case FormatTree, "":
		return renderTree(w, listings)
	case FormatPaths:
		for _, l := range listings {
			for _, e := range l.Entries {
				if e.Installed && e.InstallPath != "" {
					fmt.Fprintln(w, e.InstallPath)
				}
			}
		}
		return nil
	case FormatJSON:
		enc := json.NewEncoder(w)
		return enc.Encode(listings)
	case FormatPrettyJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	default:
		return fmt.Errorf("unknown list format %q", format)
	}
}

func renderTree(w io.Writer, listings []RepoListing) error {
	for _, l := range listings {
		root := pterm.TreeNode{Text: l.Repo}
		for _, e := range l.Entries {
			root.Children = append(root.Children, pterm.TreeNode{Text: entryLabel(e)})
		}
		s, err := pterm.DefaultTree.WithRoot(root).Srender()
		if err != nil {
			return err
		}
		fmt.Fprint(w, s)
	}
	return nil
}

func entryLabel(e Entry) string {
	label := e.Version
	if e.Branch != "" {
		label += "-" + e.Branch
	}
	label += "#" + e.Hash
	if !e.CommitTime.IsZero() {
		label += "  " + e.CommitTime.UTC().Format("2006-01-02 15:04")
	}
	if e.Installed {
		label += "  [installed]"
	}
	return label
}
