package diffdb

import (
	"context"
	"syscall"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/blockberries/abcistate/log"
)

// pebbleDB is KVStore implementation based on pebble DB
type pebbleDB struct {
	db     *pebble.DB
	path   string
	config Config
}

// NewPebbleDB creates a pebble-backed store in cfg.Path.
func NewPebbleDB(cfg Config) KVStore {
	return &pebbleDB{path: cfg.Path, config: cfg}
}

// Start opens the DB (creates new file if not existing yet)
func (b *pebbleDB) Start(_ context.Context) error {
	db, err := pebble.Open(b.path, &pebble.Options{})
	if err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	b.db = db
	return nil
}

// Stop closes the DB
func (b *pebbleDB) Stop(_ context.Context) error {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return errors.Wrap(ErrIO, err.Error())
		}
	}
	return nil
}

// Get retrieves a record
func (b *pebbleDB) Get(ns string, key []byte) ([]byte, error) {
	v, closer, err := b.db.Get(nsKey(ns, key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, errors.Wrapf(ErrNotExist, "ns %s key = %x doesn't exist, %s", ns, key, err.Error())
		}
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	val := make([]byte, len(v))
	copy(val, v)
	return val, closer.Close()
}

// Put inserts a <key, value> record
func (b *pebbleDB) Put(ns string, key, value []byte) (err error) {
	for c := uint8(0); c < retries(b.config); c++ {
		if err = b.db.Set(nsKey(ns, key), value, pebble.Sync); err == nil {
			return nil
		}
		if errors.Is(err, syscall.ENOSPC) {
			log.L().Error("Diff database out of space.", zap.Error(err))
			break
		}
	}
	return errors.Wrap(ErrIO, err.Error())
}
