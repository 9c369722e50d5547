package local

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blockberries/abcistate/diffdb"
	"github.com/blockberries/abcistate/example/counter"
	"github.com/blockberries/abcistate/server"
	"github.com/blockberries/abcistate/snapshot"
	"github.com/blockberries/abcistate/types"
	"github.com/blockberries/abcistate/value"
)

type closingJournal struct {
	*diffdb.Journal
	closed int
}

func (j *closingJournal) Close(ctx context.Context) error {
	j.closed++
	return j.Journal.Close(ctx)
}

func newConnection(t *testing.T) (*Connection, *closingJournal) {
	t.Helper()
	store, err := snapshot.Open(t.TempDir(), snapshot.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	journal := &closingJournal{Journal: diffdb.NewJournal(diffdb.NewMemKVStore(), true)}
	conn := NewConnection(counter.New(), store, journal, counter.Genesis(), server.WithLogger(zap.NewNop()))
	return conn, journal
}

func runBlock(t *testing.T, conn *Connection, height int64, txs ...[]byte) types.CommitResponse {
	t.Helper()
	ctx := context.Background()
	_, err := conn.BeginBlock(ctx, types.BeginBlockRequest{Header: types.Header{Height: height}})
	require.NoError(t, err)
	for _, tx := range txs {
		resp, err := conn.DeliverTx(ctx, types.DeliverTxRequest{Tx: tx})
		require.NoError(t, err)
		require.True(t, resp.IsOK(), resp.Log)
	}
	_, err = conn.EndBlock(ctx, types.EndBlockRequest{Height: height})
	require.NoError(t, err)
	resp, err := conn.Commit(ctx)
	require.NoError(t, err)
	return resp
}

func queryValue(t *testing.T, conn *Connection, req types.QueryRequest) value.Value {
	t.Helper()
	resp, err := conn.Query(context.Background(), req)
	require.NoError(t, err)
	require.True(t, resp.IsOK(), resp.Log)
	raw, err := base64.StdEncoding.DecodeString(string(resp.Value))
	require.NoError(t, err)
	v, err := value.Parse(raw)
	require.NoError(t, err)
	return v
}

func TestLocalConnection_FullCycle(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	conn, _ := newConnection(t)
	defer conn.Close()

	info, err := conn.Info(ctx, types.InfoRequest{})
	require.NoError(err)
	require.Zero(info.LastBlockHeight)

	_, err = conn.InitChain(ctx, types.InitChainRequest{ChainID: "test"})
	require.NoError(err)

	first := runBlock(t, conn, 1, counter.IncrementTx(1, 1))
	require.NotEmpty(first.Data)
	second := runBlock(t, conn, 2)
	require.NotEqual(first.Data, second.Data)

	require.Equal(int64(2), conn.Adapter().Height())
	require.True(value.Int(1).Equal(queryValue(t, conn, types.QueryRequest{Path: "count"})))

	require.NoError(conn.Adapter().Flush(ctx))
	diff := queryValue(t, conn, types.QueryRequest{Data: []byte("diff"), Height: 2})
	count, ok := diff.Get("count")
	require.True(ok, "diff %s", diff)
	require.True(value.MustParse(`[0,1]`).Equal(count))

	info, err = conn.Info(ctx, types.InfoRequest{})
	require.NoError(err)
	require.Equal(int64(2), info.LastBlockHeight)
	require.Equal(second.Data, info.LastBlockAppHash)
}

func TestLocalConnection_ConcurrentCheckTx(t *testing.T) {
	ctx := context.Background()
	conn, _ := newConnection(t)
	defer conn.Close()

	_, err := conn.InitChain(ctx, types.InitChainRequest{ChainID: "test"})
	require.NoError(t, err)
	runBlock(t, conn, 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(nonce uint32) {
			defer wg.Done()
			resp, err := conn.CheckTx(ctx, types.CheckTxRequest{Tx: counter.IncrementTx(1, nonce)})
			if err != nil {
				t.Errorf("CheckTx failed: %v", err)
				return
			}
			if !resp.IsOK() {
				t.Errorf("CheckTx rejected: %s", resp.Log)
			}
		}(uint32(i))
	}
	wg.Wait()

	// CheckTx never mutates committed state.
	require.True(t, value.Int(0).Equal(queryValue(t, conn, types.QueryRequest{Path: "pending"})))
}

func TestLocalConnection_CloseReleasesJournal(t *testing.T) {
	conn, journal := newConnection(t)
	_, err := conn.InitChain(context.Background(), types.InitChainRequest{ChainID: "test"})
	require.NoError(t, err)
	runBlock(t, conn, 1)

	require.NoError(t, conn.Close())
	require.Equal(t, 1, journal.closed)
}
