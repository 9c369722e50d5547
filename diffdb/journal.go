package diffdb

import (
	"context"
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/blockberries/abcistate/value"
)

const diffNamespace = "diff"

// Record encodings, stored as the first byte of every value.
const (
	encodingRaw    byte = 0
	encodingSnappy byte = 1
)

// Journal is the append-only log of per-height diffs. Records are
// immutable once written.
type Journal struct {
	kv       KVStore
	compress bool
}

// NewJournal wraps a started KV store.
func NewJournal(kv KVStore, compress bool) *Journal {
	return &Journal{kv: kv, compress: compress}
}

// Open creates, starts and wraps the backend selected by cfg.
func Open(ctx context.Context, cfg Config) (*Journal, error) {
	kv, err := NewKVStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := kv.Start(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to start %s diff store", cfg.Backend)
	}
	return NewJournal(kv, cfg.Compress), nil
}

// Close stops the underlying store.
func (j *Journal) Close(ctx context.Context) error {
	return j.kv.Stop(ctx)
}

// Append stores patch as the diff committed at height.
func (j *Journal) Append(height int64, patch value.Value) error {
	data, err := value.Canonical(patch)
	if err != nil {
		return errors.Wrapf(err, "failed to encode diff at height %d", height)
	}
	var rec []byte
	if j.compress {
		rec = append([]byte{encodingSnappy}, snappy.Encode(nil, data)...)
	} else {
		rec = append([]byte{encodingRaw}, data...)
	}
	return errors.WithMessagef(j.kv.Put(diffNamespace, heightKey(height), rec), "failed to append diff at height %d", height)
}

// Get returns the diff committed at height. The error wraps
// abcistate.ErrNotFound when no record exists and ErrIO on storage faults.
func (j *Journal) Get(height int64) (value.Value, error) {
	rec, err := j.kv.Get(diffNamespace, heightKey(height))
	if err != nil {
		return value.Value{}, errors.WithMessagef(err, "diff at height %d", height)
	}
	if len(rec) == 0 {
		return value.Value{}, errors.Wrapf(ErrIO, "empty diff record at height %d", height)
	}
	data := rec[1:]
	switch rec[0] {
	case encodingRaw:
	case encodingSnappy:
		if data, err = snappy.Decode(nil, data); err != nil {
			return value.Value{}, errors.Wrapf(ErrIO, "corrupt diff record at height %d: %v", height, err)
		}
	default:
		return value.Value{}, errors.Wrapf(ErrIO, "unknown diff encoding %d at height %d", rec[0], height)
	}
	patch, err := value.Parse(data)
	if err != nil {
		return value.Value{}, errors.Wrapf(ErrIO, "corrupt diff record at height %d: %v", height, err)
	}
	return patch, nil
}

func heightKey(height int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(height))
	return k
}
