package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/render"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List builds available to download and builds that are installed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		sortBy, _ := cmd.Flags().GetString("sort-by")
		installedOnly, _ := cmd.Flags().GetBool("installed-only")
		allBuilds, _ := cmd.Flags().GetBool("all-builds")

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		records := a.set.All()
		if !allBuilds {
			records = build.FilterTarget(records, build.CurrentTarget())
		}

		installs, err := a.lib.List(ctx)
		if err != nil {
			return err
		}

		listings := render.Listing(records, installs, installedOnly, render.SortKey(sortBy))
		return render.Render(os.Stdout, listings, render.Format(format))
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().StringP("format", "F", "tree", "Output format: tree, paths, json, pretty-json")
	lsCmd.Flags().String("sort-by", "version", "Sort key: version, datetime")
	lsCmd.Flags().BoolP("installed-only", "i", false, "Only show builds that are installed.")
	lsCmd.Flags().BoolP("all-builds", "a", false, "Show all builds, even ones not for your target OS. Our filtering is not perfect; this may be necessary to find the proper build.")
}
