package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/zeptofine/blrs-cli/internal/utils"
	"github.com/zeptofine/blrs-cli/pkg/syncer"
)

// fetchCmd refreshes the build catalog. It downloads metadata only,
// never the builds themselves.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the latest build lists from the configured repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		parallel, _ := cmd.Flags().GetBool("parallel")
		ignoreErrors, _ := cmd.Flags().GetBool("ignore-errors")

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		now := time.Now().UTC()
		if !force {
			if stale, next := a.sync.Stale(now); !stale {
				return &fetchTooSoonError{wait: next.Sub(now)}
			}
		}

		report, err := a.sync.Sync(ctx, syncer.Options{
			Force:        force,
			Parallel:     parallel,
			IgnoreErrors: ignoreErrors,
			Now:          now,
			Log:          utils.Log,
		})
		for _, res := range report.Results {
			switch res.Status {
			case syncer.StatusFetched:
				utils.Log.Infof("%s: %d builds", res.Repo, res.Count)
			case syncer.StatusFresh:
				utils.Log.Debugf("%s: fresh, skipped", res.Repo)
			case syncer.StatusFailed:
				utils.Log.Errorf("%s: %v", res.Repo, res.Err)
			case syncer.StatusNotRun:
				utils.Log.Warnf("%s: not fetched (earlier repo failed)", res.Repo)
			}
		}
		if err != nil {
			// With --ignore-errors every repo was still attempted; the
			// exit status encodes the first failure regardless.
			return err
		}

		utils.Log.Infof("Fetching builds finished successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().BoolP("force", "f", false, "Ignore fetch timeouts.")
	fetchCmd.Flags().BoolP("parallel", "p", false, "Fetch repositories in parallel. Can trigger ratelimits if used recklessly.")
	fetchCmd.Flags().BoolP("ignore-errors", "i", false, "Keep fetching the remaining repositories when one fails. The exit status reflects the first error.")
}
