package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/config"
	"github.com/blockberries/abcistate/diffdb"
	"github.com/blockberries/abcistate/snapshot"
	"github.com/blockberries/abcistate/txcodec"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestEncodeTx(t *testing.T) {
	out, err := execute(t, "encode-tx", `{"by":2}`, "--nonce", "7", "--base64=false")
	require.NoError(t, err)

	raw, err := hex.DecodeString(strings.TrimSpace(out))
	require.NoError(t, err)
	tx, err := txcodec.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, uint32(7), tx.Nonce)
	require.True(t, value.MustParse(`{"by":2}`).Equal(tx.Payload))

	out, err = execute(t, "encode-tx", `{"by":2}`, "--nonce", "7", "--base64")
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(raw), strings.TrimSpace(out))
}

func TestEncodeTx_Invalid(t *testing.T) {
	_, err := execute(t, "encode-tx", `{"by":`, "--nonce", "1", "--base64=false")
	require.Error(t, err)

	_, err = execute(t, "encode-tx", `{}`, "--nonce", "4294967296", "--base64=false")
	require.Error(t, err)
}

func TestPickNonce(t *testing.T) {
	n, err := pickNonce(12)
	require.NoError(t, err)
	require.Equal(t, uint32(12), n)

	for i := 0; i < 100; i++ {
		n, err := pickNonce(-1)
		require.NoError(t, err)
		require.Less(t, n, uint32(randomNonceLimit))
	}
}

func TestInitWritesLoadableConfig(t *testing.T) {
	home := t.TempDir()
	out, err := execute(t, "init", "--config=", "--home", home)
	require.NoError(t, err)
	path := filepath.Join(home, "config.toml")
	require.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, home, cfg.Home)
	require.Equal(t, filepath.Join(home, "data"), cfg.SnapshotDir)

	// An existing config is never overwritten.
	_, err = execute(t, "init", "--config=", "--home", home)
	require.Error(t, err)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	store, err := snapshot.Open(dir, snapshot.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	for h := int64(1); h <= 2; h++ {
		_, err = store.Promote(snapshot.Snapshot{
			Height:  h,
			AppHash: []byte{0xab, byte(h)},
			State:   value.Mapping(map[string]value.Value{"count": value.Int(h * 10)}),
			Context: abcistate.Context{Validators: map[string]int64{"AQ==": 5}},
		})
		require.NoError(t, err)
	}

	out, err := execute(t, "inspect", "--config=", "--previous=false", dir)
	require.NoError(t, err)
	require.Contains(t, out, `"height": 2`)
	require.Contains(t, out, `"appHash": "ab02"`)
	require.Contains(t, out, `"count": 20`)
	require.Contains(t, out, `"AQ==": 5`)

	out, err = execute(t, "inspect", "--config=", "--previous", dir)
	require.NoError(t, err)
	require.Contains(t, out, `"height": 1`)

	_, err = execute(t, "inspect", "--config=", "--previous=false", t.TempDir())
	require.ErrorContains(t, err, "no snapshot")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "abcistated "+version)
}

func TestFormatQuery(t *testing.T) {
	out, err := formatQuery(types.QueryResponse{
		Value: []byte(base64.StdEncoding.EncodeToString([]byte(`{"b":1,"a":2}`))),
	})
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1}`, out)

	_, err = formatQuery(types.QueryResponse{Code: types.CodeInvalidQuery, Log: "invalid query: no such path"})
	require.ErrorContains(t, err, "no such path")

	_, err = formatQuery(types.QueryResponse{Value: []byte("!!")})
	require.Error(t, err)
}

func TestLoadGenesis(t *testing.T) {
	v, err := loadGenesis("")
	require.NoError(t, err)
	_, ok := v.Get("count")
	require.True(t, ok)

	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"count":5,"pending":0}`), 0o644))
	v, err = loadGenesis(path)
	require.NoError(t, err)
	require.True(t, value.MustParse(`{"count":5,"pending":0}`).Equal(v))

	require.NoError(t, os.WriteFile(path, []byte(`{"count":`), 0o644))
	_, err = loadGenesis(path)
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	home := t.TempDir()
	cfg := config.Default
	cfg.Home = home
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.MetricsAddress = ""
	cfg.DiffDB.Backend = diffdb.BackendBolt
	cfg = cfg.Resolve()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
	_, err := os.Stat(cfg.SnapshotDir)
	require.NoError(t, err)
}
