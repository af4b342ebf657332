package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/zeptofine/blrs-cli/internal/utils"
	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/match"
)

var rmCmd = &cobra.Command{
	Use:   "rm <query>...",
	Short: "Uninstall builds, sending them to the trash by default",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noTrash, _ := cmd.Flags().GetBool("no-trash")

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

		candidates, err := removalCandidates(ctx, a)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		var targets []build.Record
		var empty []string
		for i, q := range queries {
			matched := match.Resolve(q, candidates, false)
			if len(matched) == 0 {
				empty = append(empty, args[i])
				continue
			}
			for _, rec := range matched {
				if !seen[rec.Hash] {
					seen[rec.Hash] = true
					targets = append(targets, rec)
				}
			}
		}
		if len(empty) > 0 {
			return &noMatchError{queries: empty}
		}

		// Attempt every removal; the first failure decides the exit
		// status but does not stop the rest.
		var firstErr error
		for _, rec := range targets {
			if noTrash {
				utils.Log.Infof("Deleting %s/%s#%s", rec.Repo, rec.Version, rec.Hash)
			} else {
				utils.Log.Infof("Trashing %s/%s#%s", rec.Repo, rec.Version, rec.Hash)
			}
			if err := a.lib.Remove(ctx, rec.Hash, !noTrash); err != nil {
				utils.Log.Errorf("Failure: %v", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			utils.Log.Infof("Success.")
		}
		return firstErr
	},
}

// installedRecords turns the library's install records into matchable
// build records, preferring catalog metadata when it is still around.
// It goes through the self-healing List, so vanished installs are gone.
func installedRecords(ctx context.Context, a *app) ([]build.Record, error) {
	installs, err := a.lib.List(ctx)
	if err != nil {
		return nil, err
	}
	return matchableRecords(a, installs), nil
}

// removalCandidates enumerates installs without self-healing: a record
// whose directory was deleted by hand must still be matchable so rm can
// clean up the record itself.
func removalCandidates(ctx context.Context, a *app) ([]build.Record, error) {
	installs, err := a.lib.Installs(ctx)
	if err != nil {
		return nil, err
	}
	return matchableRecords(a, installs), nil
}

func matchableRecords(a *app, installs []build.InstallRecord) []build.Record {
	out := make([]build.Record, 0, len(installs))
	for _, ir := range installs {
		if rec, ok := a.set.Find(ir.BuildHash); ok {
			out = append(out, rec)
			continue
		}
		// Upstream pruned the catalog entry; the install is still real.
		out = append(out, build.Record{
			Repo:    ir.Repo,
			Version: ir.Version,
			Branch:  ir.Branch,
			Hash:    ir.BuildHash,
		})
	}
	return out
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().BoolP("no-trash", "n", false, "Fully delete the build instead of sending it to the trash.")
}
