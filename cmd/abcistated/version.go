package main

import (
	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	gitCommit = "unknown"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("abcistated %s (%s)\n", version, gitCommit)
	},
}
