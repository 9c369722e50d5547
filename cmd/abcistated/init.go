package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blockberries/abcistate/config"
)

var initHome string

// initCmd writes a default config file.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file under the home directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		cfg := config.Default
		cfg.Home = initHome
		path := configPath
		if path == "" {
			path = filepath.Join(initHome, "config.toml")
		}
		if err := config.Write(path, cfg); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initHome, "home", config.Default.Home, "node home directory")
}
