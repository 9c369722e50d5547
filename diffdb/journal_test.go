package diffdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/abcistate"
	"github.com/blockberries/abcistate/value"
)

// faultyKVStore fails every operation.
type faultyKVStore struct{}

func (faultyKVStore) Start(context.Context) error { return nil }
func (faultyKVStore) Stop(context.Context) error  { return nil }
func (faultyKVStore) Put(string, []byte, []byte) error {
	return errors.Join(ErrIO, errors.New("disk on fire"))
}
func (faultyKVStore) Get(string, []byte) ([]byte, error) {
	return nil, errors.Join(ErrIO, errors.New("disk on fire"))
}

func TestJournal_AppendGet(t *testing.T) {
	for _, compress := range []bool{false, true} {
		j := NewJournal(NewMemKVStore(), compress)
		patch := value.MustParse(`{"count":[0,1]}`)

		require.NoError(t, j.Append(2, patch))
		got, err := j.Get(2)
		require.NoError(t, err)
		require.True(t, patch.Equal(got), "compress=%v got %s", compress, got)

		_, err = j.Get(3)
		require.ErrorIs(t, err, abcistate.ErrNotFound)
	}
}

func TestJournal_CompressionFlagIsPerRecord(t *testing.T) {
	kv := NewMemKVStore()
	patch := value.MustParse(`{"a":[1]}`)
	require.NoError(t, NewJournal(kv, true).Append(5, patch))

	got, err := NewJournal(kv, false).Get(5)
	require.NoError(t, err)
	require.True(t, patch.Equal(got))
}

func TestJournal_Faults(t *testing.T) {
	j := NewJournal(faultyKVStore{}, false)
	err := j.Append(2, value.Mapping(nil))
	require.ErrorIs(t, err, ErrIO)

	_, err = j.Get(2)
	require.ErrorIs(t, err, ErrIO)
	require.NotErrorIs(t, err, abcistate.ErrNotFound)
}

func TestJournal_CorruptRecord(t *testing.T) {
	kv := NewMemKVStore()
	require.NoError(t, kv.Put(diffNamespace, heightKey(4), []byte{encodingSnappy, 0xff, 0xff}))
	require.NoError(t, kv.Put(diffNamespace, heightKey(5), []byte{9, '{', '}'}))

	j := NewJournal(kv, false)
	_, err := j.Get(4)
	require.ErrorIs(t, err, ErrIO)
	_, err = j.Get(5)
	require.ErrorIs(t, err, ErrIO)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	j, err := Open(ctx, Config{Backend: BackendBolt, Path: t.TempDir(), NumRetries: 1, Compress: true})
	require.NoError(t, err)
	require.NoError(t, j.Append(2, value.MustParse(`{"x":[1,2]}`)))
	require.NoError(t, j.Close(ctx))
}

func TestHeightKey_Ordering(t *testing.T) {
	require.Less(t, string(heightKey(9)), string(heightKey(10)))
	require.Len(t, heightKey(1), 8)
}
