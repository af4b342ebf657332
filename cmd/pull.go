package cmd

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/zeptofine/blrs-cli/internal/utils"
	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/match"
	"github.com/zeptofine/blrs-cli/pkg/query"
	"github.com/zeptofine/blrs-cli/pkg/repos"
)

var pullCmd = &cobra.Command{
	Use:   "pull <query>...",
	Short: "Download and install builds matching the given queries",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		allPlatforms, _ := cmd.Flags().GetBool("all-platforms")

		queries, err := parseQueries(args)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		candidates := a.set.All()

		// Resolve every query before downloading anything, so one typo
		// doesn't leave a half-finished batch.
		chosen := make([]build.Record, 0, len(queries))
		var empty []string
		for i, q := range queries {
			rec, ok := match.ResolveOne(q, candidates, !allPlatforms)
			if !ok {
				empty = append(empty, args[i])
				continue
			}
			chosen = append(chosen, rec)
		}
		if len(empty) > 0 {
			return &noMatchError{queries: empty}
		}

		for _, rec := range chosen {
			if err := pullOne(ctx, a, rec); err != nil {
				return err
			}
		}

		utils.Log.Infof("Downloading builds finished successfully")
		return nil
	},
}

func pullOne(ctx context.Context, a *app, rec build.Record) error {
	utils.Log.Infof("Selected build %s/%s#%s for installation", rec.Repo, rec.Version, rec.Hash)

	archivePath := filepath.Join(a.cfg.LibraryPath, rec.Repo, archiveName(rec))

	if _, err := os.Stat(archivePath); err != nil {
		pb, _ := pterm.DefaultProgressbar.
			WithTitle("Downloading " + filepath.Base(archivePath)).
			WithShowCount(false).
			Start()
		var lastPct int
		err := repos.Download(ctx, rec.DownloadURL, archivePath, func(done, total int64) {
			if total <= 0 {
				return
			}
			if pct := int(done * 100 / total); pct > lastPct {
				pb.Total = 100
				pb.Add(pct - lastPct)
				lastPct = pct
			}
		})
		_, _ = pb.Stop()
		if err != nil {
			return err
		}
	} else {
		utils.Log.Debugf("Archive %s already downloaded", archivePath)
	}

	utils.Log.Infof("Extracting %s", archivePath)
	ir, err := a.lib.Install(ctx, rec, archivePath)
	if err != nil {
		return err
	}
	utils.Log.Infof("Installed to %s", ir.Path)

	// The archive has served its purpose.
	if err := os.Remove(archivePath); err != nil {
		utils.Log.Warnf("Failed to delete archive %s: %v", archivePath, err)
	}
	return nil
}

// archiveName derives the local archive filename from the download URL,
// falling back to a name derived from the build identity.
func archiveName(rec build.Record) string {
	if u, err := url.Parse(rec.DownloadURL); err == nil {
		if base := filepath.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return rec.Version.String() + "-" + rec.Hash + ".tar.xz"
}

func parseQueries(args []string) ([]query.Query, error) {
	out := make([]query.Query, 0, len(args))
	for _, arg := range args {
		q, err := query.Parse(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, usageError{"no query has been given but one is required"}
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(pullCmd)
	pullCmd.Flags().BoolP("all-platforms", "a", false, "Consider builds for every platform, not just this machine's.")
}
