package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/zeptofine/blrs-cli/internal/utils"
	"github.com/zeptofine/blrs-cli/pkg/blendfile"
	"github.com/zeptofine/blrs-cli/pkg/build"
	"github.com/zeptofine/blrs-cli/pkg/match"
	"github.com/zeptofine/blrs-cli/pkg/query"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Launch a build",
}

var runBuildCmd = &cobra.Command{
	Use:   "build <query> [-- args...]",
	Short: "Launch a specific installed build of Blender",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := query.Parse(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return launchBuild(ctx, a, q, args[0], args[1:])
	},
}

var runFileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Open a .blend file with the build that made it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return launchFile(ctx, a, args[0])
	},
}

// launchAny handles the bare `blrs <arg>` form: a parseable query means
// `run build`, anything else is treated as a file. Oddly named
// blendfiles can false-positive into the query parser.
func launchAny(cmd *cobra.Command, arg string, extra []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if q, err := query.Parse(arg); err == nil {
		return launchBuild(ctx, a, q, arg, extra)
	}
	return launchFile(ctx, a, arg)
}

func launchBuild(ctx context.Context, a *app, q query.Query, raw string, extraArgs []string) error {
	candidates, err := installedRecords(ctx, a)
	if err != nil {
		return err
	}
	rec, ok := match.ResolveOne(q, candidates, false)
	if !ok {
		return &noMatchError{queries: []string{raw}}
	}
	return launch(ctx, a, rec, extraArgs)
}

func launchFile(ctx context.Context, a *app, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	candidates, err := installedRecords(ctx, a)
	if err != nil {
		return err
	}
	rec, err := blendfile.Identify(path, candidates)
	if err == nil {
		return launch(ctx, a, rec, []string{path})
	}

	// Distinguish "never installed" from "never even fetched" so the
	// user knows whether to pull or to fetch.
	if remote, remoteErr := blendfile.Identify(path, a.set.All()); remoteErr == nil {
		return fmt.Errorf("build %s/%s#%s matches %s but is not installed; pull it first",
			remote.Repo, remote.Version, remote.Hash, path)
	}
	return err
}

func launch(ctx context.Context, a *app, rec build.Record, args []string) error {
	ir, ok, err := a.lib.Get(ctx, rec.Hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("build %s/%s#%s is not installed", rec.Repo, rec.Version, rec.Hash)
	}

	exe := executablePath(ir.Path)
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("build at %s has no executable: %w", ir.Path, err)
	}

	c := exec.CommandContext(ctx, exe, args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	utils.Log.Infof("Running %s", c)
	return c.Run()
}

// executablePath locates the Blender entrypoint inside an install dir.
func executablePath(installDir string) string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(installDir, "blender.exe")
	case "darwin":
		return filepath.Join(installDir, "Blender.app", "Contents", "MacOS", "Blender")
	default:
		return filepath.Join(installDir, "blender")
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runBuildCmd)
	runCmd.AddCommand(runFileCmd)
}
