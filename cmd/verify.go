package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeptofine/blrs-cli/internal/utils"
	"github.com/zeptofine/blrs-cli/pkg/build"
)

// verifyCmd reconciles the install records with what is actually on
// disk: directories without a record are adopted, records without a
// directory are dropped.
var verifyCmd = &cobra.Command{
	Use:   "verify [repos...]",
	Short: "Verify that every build in the library has an install record",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// List self-heals: records whose directory vanished are dropped.
		installs, err := a.lib.List(ctx)
		if err != nil {
			return err
		}
		tracked := make(map[string]bool, len(installs))
		for _, ir := range installs {
			tracked[filepath.Clean(ir.Path)] = true
		}

		repoFilter := make(map[string]bool, len(args))
		for _, r := range args {
			repoFilter[r] = true
		}

		adopted, unknown := 0, 0
		repoDirs, err := os.ReadDir(a.cfg.LibraryPath)
		if err != nil {
			return err
		}
		for _, repoDir := range repoDirs {
			if !repoDir.IsDir() {
				continue
			}
			repo := repoDir.Name()
			if len(repoFilter) > 0 && !repoFilter[repo] {
				continue
			}
			buildDirs, err := os.ReadDir(filepath.Join(a.cfg.LibraryPath, repo))
			if err != nil {
				return err
			}
			for _, bd := range buildDirs {
				if !bd.IsDir() {
					continue
				}
				dir := filepath.Join(a.cfg.LibraryPath, repo, bd.Name())
				if tracked[dir] {
					continue
				}
				rec, ok := recordForDir(a, repo, bd.Name())
				if !ok {
					utils.Log.Warnf("%s does not look like a build directory, skipping", dir)
					unknown++
					continue
				}
				if _, err := a.lib.Adopt(ctx, rec, dir); err != nil {
					return err
				}
				utils.Log.Infof("Adopted %s as %s/%s#%s", dir, rec.Repo, rec.Version, rec.Hash)
				adopted++
			}
		}

		utils.Log.Infof("Verified library: %d tracked, %d adopted, %d unrecognized",
			len(installs), adopted, unknown)
		return nil
	},
}

// recordForDir reconstructs a build identity from an install directory
// named "<version>-<hash>", preferring catalog metadata when the hash is
// still known.
func recordForDir(a *app, repo, name string) (build.Record, bool) {
	i := strings.LastIndexByte(name, '-')
	if i <= 0 || i == len(name)-1 {
		return build.Record{}, false
	}
	ver, err := build.ParseVersion(name[:i])
	if err != nil {
		return build.Record{}, false
	}
	hash := name[i+1:]
	if rec, ok := a.set.Find(hash); ok {
		return rec, true
	}
	return build.Record{Repo: repo, Version: ver, Hash: hash}, true
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
