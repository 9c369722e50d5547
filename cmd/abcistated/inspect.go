package main

import (
	"encoding/hex"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/blockberries/abcistate/config"
	"github.com/blockberries/abcistate/snapshot"
)

var inspectPrevious bool

// inspectCmd prints a snapshot without touching the files.
var inspectCmd = &cobra.Command{
	Use:   "inspect [dir]",
	Short: "Print the committed snapshot of a node",
	Long: `Print the committed snapshot of a node. The snapshot directory defaults
to the one named by the config file. Interrupted promotions are not
recovered, so inspect is safe to run against a live node.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		dir, err := snapshotDir(args)
		if err != nil {
			return err
		}
		store, err := snapshot.Open(dir)
		if err != nil {
			return err
		}
		var snap *snapshot.Snapshot
		if inspectPrevious {
			snap, err = store.Previous()
		} else {
			snap, err = store.Current()
		}
		if err != nil {
			return err
		}
		if snap == nil {
			return errors.Errorf("no snapshot in %s", dir)
		}
		out, err := json.MarshalIndent(struct {
			Height  int64  `json:"height"`
			AppHash string `json:"appHash"`
			State   any    `json:"state"`
			Context any    `json:"context"`
		}{snap.Height, hex.EncodeToString(snap.AppHash), snap.State, snap.Context}, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(out))
		return nil
	},
}

func snapshotDir(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := config.Load(configPath, config.DoNotValidate)
	if err != nil {
		return "", err
	}
	return cfg.SnapshotDir, nil
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectPrevious, "previous", false, "print the previous generation")
}
