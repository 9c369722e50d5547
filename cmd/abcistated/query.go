package main

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	abcigrpc "github.com/blockberries/abcistate/grpc"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

// Flags
var (
	queryAddr    string
	queryHeight  int64
	queryDiff    bool
	queryTimeout time.Duration
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [path]",
	Short: "Query committed state or a block diff from a running node",
	Example: `  abcistated query count
  abcistated query --diff --height 12`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		req := types.QueryRequest{Height: queryHeight}
		if len(args) == 1 {
			req.Path = args[0]
		}
		if queryDiff {
			req.Data = []byte("diff")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
		defer cancel()
		client, err := abcigrpc.Dial(ctx, queryAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return err
		}
		defer client.Close()

		resp, err := client.Query(ctx, req)
		if err != nil {
			return err
		}
		out, err := formatQuery(resp)
		if err != nil {
			return err
		}
		cmd.Println(out)
		return nil
	},
}

// formatQuery renders a successful response as canonical JSON.
func formatQuery(resp types.QueryResponse) (string, error) {
	if !resp.IsOK() {
		return "", errors.Errorf("query failed with code %d: %s", resp.Code, resp.Log)
	}
	raw, err := base64.StdEncoding.DecodeString(string(resp.Value))
	if err != nil {
		return "", errors.Wrap(err, "invalid query value")
	}
	v, err := value.Parse(raw)
	if err != nil {
		return "", errors.Wrap(err, "invalid query value")
	}
	return v.String(), nil
}

func init() {
	queryCmd.Flags().StringVar(&queryAddr, "addr", "127.0.0.1:26658", "gRPC address of the node")
	queryCmd.Flags().Int64Var(&queryHeight, "height", 0, "block height, 0 for the default")
	queryCmd.Flags().BoolVar(&queryDiff, "diff", false, "query the diff journal instead of state")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 10*time.Second, "request timeout")
}
