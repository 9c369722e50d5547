package diffdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/abcistate"
)

func backends(t *testing.T) map[string]Config {
	dir := t.TempDir()
	return map[string]Config{
		BackendMemory:  {Backend: BackendMemory},
		BackendBolt:    {Backend: BackendBolt, Path: filepath.Join(dir, "bolt"), NumRetries: 3},
		BackendBadger:  {Backend: BackendBadger, Path: filepath.Join(dir, "badger"), NumRetries: 3},
		BackendLevelDB: {Backend: BackendLevelDB, Path: filepath.Join(dir, "leveldb"), NumRetries: 3},
		BackendPebble:  {Backend: BackendPebble, Path: filepath.Join(dir, "pebble"), NumRetries: 3},
	}
}

func TestKVStore_Backends(t *testing.T) {
	for name, cfg := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			kv, err := NewKVStore(cfg)
			require.NoError(err)
			require.NoError(kv.Start(ctx))
			defer func() { require.NoError(kv.Stop(ctx)) }()

			_, err = kv.Get("ns", []byte("missing"))
			require.ErrorIs(err, ErrNotExist)
			require.ErrorIs(err, abcistate.ErrNotFound)

			require.NoError(kv.Put("ns", []byte("k"), []byte("v1")))
			v, err := kv.Get("ns", []byte("k"))
			require.NoError(err)
			require.Equal([]byte("v1"), v)

			require.NoError(kv.Put("ns", []byte("k"), []byte("v2")))
			v, err = kv.Get("ns", []byte("k"))
			require.NoError(err)
			require.Equal([]byte("v2"), v)

			_, err = kv.Get("other", []byte("k"))
			require.ErrorIs(err, ErrNotExist)
		})
	}
}

func TestKVStore_ReopenPersists(t *testing.T) {
	for name, cfg := range backends(t) {
		if name == BackendMemory {
			continue
		}
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			ctx := context.Background()

			kv, err := NewKVStore(cfg)
			require.NoError(err)
			require.NoError(kv.Start(ctx))
			require.NoError(kv.Put("diff", []byte{0, 1}, []byte("x")))
			require.NoError(kv.Stop(ctx))

			kv, err = NewKVStore(cfg)
			require.NoError(err)
			require.NoError(kv.Start(ctx))
			defer kv.Stop(ctx)
			v, err := kv.Get("diff", []byte{0, 1})
			require.NoError(err)
			require.Equal([]byte("x"), v)
		})
	}
}

func TestNewKVStore_UnknownBackend(t *testing.T) {
	_, err := NewKVStore(Config{Backend: "mongo"})
	require.Error(t, err)
	require.Equal(t, ErrUnknownBackend, errors.Cause(err))
}
