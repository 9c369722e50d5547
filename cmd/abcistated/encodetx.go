package main

import (
	"encoding/base64"
	"encoding/hex"
	"math/rand/v2"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/blockberries/abcistate/txcodec"
	"github.com/blockberries/abcistate/value"
)

// randomNonceLimit matches the nonce range clients have historically used.
const randomNonceLimit = 2 << 12

// Flags
var (
	encodeNonce  int64
	encodeBase64 bool
)

// encodeTxCmd represents the encode-tx command
var encodeTxCmd = &cobra.Command{
	Use:     "encode-tx JSON",
	Short:   "Frame a JSON payload as a transaction",
	Example: `  abcistated encode-tx '{"by":2}' --nonce 7`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		payload, err := value.Parse([]byte(args[0]))
		if err != nil {
			return errors.Wrap(err, "invalid payload")
		}
		nonce, err := pickNonce(encodeNonce)
		if err != nil {
			return err
		}
		tx, err := txcodec.Encode(payload, nonce)
		if err != nil {
			return err
		}
		if encodeBase64 {
			cmd.Println(base64.StdEncoding.EncodeToString(tx))
		} else {
			cmd.Println(hex.EncodeToString(tx))
		}
		return nil
	},
}

// pickNonce returns n, or a random nonce when n is negative.
func pickNonce(n int64) (uint32, error) {
	if n < 0 {
		return uint32(rand.IntN(randomNonceLimit)), nil
	}
	if n > int64(^uint32(0)) {
		return 0, errors.Errorf("nonce %d out of range", n)
	}
	return uint32(n), nil
}

func init() {
	encodeTxCmd.Flags().Int64Var(&encodeNonce, "nonce", -1, "transaction nonce, random when negative")
	encodeTxCmd.Flags().BoolVar(&encodeBase64, "base64", false, "print base64 instead of hex")
}
