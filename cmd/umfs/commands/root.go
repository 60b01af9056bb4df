// Package commands implements the umfs command line.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "umfs [mountpoint]",
	Short: "umfs - in-memory filesystem with undo/redo",
	Long: `umfs mounts an in-memory filesystem through FUSE and records every
change to it in an undo/redo journal. An interactive shell runs commands
inside the mount point; "undo" and "redo" step through their effects.

Nothing is persisted: unmounting discards all contents.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.config/umfs/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	addServeFlags(rootCmd)
}
