package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	classDBPath string
	logLevel    string
	cfg         config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "assetfile",
	Short: "Inspect serialized object files and bundles",
	Long: `The assetfile utility reads serialized object files, either loose or packed
inside bundles. It lists display names of objects, extracts payloads that
objects store outside of their records, and dumps file metadata.

Configuration is read from the environment and from a .env file in the working
directory. ASSETFILE_CLASSDB names a class database file that supplements the
built-in layouts, and ASSETFILE_LOG_LEVEL sets the log level. A CPU profile is
written when ASSETFILE_PROFILE is set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(classDBPath, logLevel)
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&classDBPath, "classdb", "", "class database file (overrides ASSETFILE_CLASSDB)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides ASSETFILE_LOG_LEVEL)")
}
