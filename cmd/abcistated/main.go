// Command abcistated hosts the ABCI adapter with the counter state
// machine and offers client helpers for queries and transactions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "abcistated",
	Short: "ABCI state adapter daemon",
	Long:  "abcistated serves the ABCI protocol over gRPC, persisting state snapshots and per-block diffs.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")
	rootCmd.AddCommand(initCmd, startCmd, queryCmd, encodeTxCmd, inspectCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
