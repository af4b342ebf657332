package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeptofine/blrs-cli/internal/utils"

	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
// A bare argument is dispatched to `run build` when it parses as a query
// and to `run file` otherwise.
var rootCmd = &cobra.Command{
	Use:   "blrs [query or file]",
	Short: "Manage a library of Blender builds from the command line.",
	Long: `blrs keeps a local library of Blender builds fetched from the official
repositories. Search builds with the version query grammar, install and
switch between them, and launch the right build for a .blend file.

Query syntax: [repo/]<major>.<minor>[.<patch>][-<branch>][+ or #<build hash>][@<commit time>]
where version components are numbers, ^ (newest), * (any) or - (oldest),
and the commit time is one of ^ * -.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		if len(args) > 1 {
			return usageError{fmt.Sprintf("expected one query or file, got %d arguments", len(args))}
		}
		return launchAny(cmd, args[0], nil)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/blrs/config.yaml)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := utils.DefaultConfigDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// Set default values for all keys before reading.
	viper.SetDefault("library.path", "")
	viper.SetDefault("fetch.interval_minutes", 60)
	viper.SetDefault("repos", []map[string]interface{}{
		{
			"id":   "daily",
			"kind": "official-json",
			"url":  "https://builder.blender.org/download/daily/?format=json&v=1",
		},
	})

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			dir, dirErr := utils.DefaultConfigDir()
			if dirErr == nil {
				_ = os.MkdirAll(dir, 0o755)
				configPath := filepath.Join(dir, "config.yaml")
				if err := viper.SafeWriteConfigAs(configPath); err != nil {
					fmt.Printf("Error creating config file: %s", err)
				}
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
