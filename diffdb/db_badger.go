package diffdb

import (
	"context"

	"github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
)

// badgerDB is KVStore implementation based on badger
type badgerDB struct {
	db     *badger.DB
	path   string
	config Config
}

// NewBadgerDB creates a badger-backed store in cfg.Path. An empty path
// opens an in-memory instance.
func NewBadgerDB(cfg Config) KVStore {
	return &badgerDB{path: cfg.Path, config: cfg}
}

// Start opens the badgerDB (creates new file if not existing yet)
func (b *badgerDB) Start(_ context.Context) error {
	opts := badger.DefaultOptions(b.path)
	if b.path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	b.db = db
	return nil
}

// Stop closes the badgerDB
func (b *badgerDB) Stop(_ context.Context) error {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return errors.Wrap(ErrIO, err.Error())
		}
	}
	return nil
}

// Put inserts a <key, value> record
func (b *badgerDB) Put(namespace string, key, value []byte) (err error) {
	for c := uint8(0); c < retries(b.config); c++ {
		err = b.db.Update(func(txn *badger.Txn) error {
			return txn.Set(nsKey(namespace, key), value)
		})
		if err == nil {
			break
		}
	}
	if err != nil {
		err = errors.Wrap(ErrIO, err.Error())
	}
	return err
}

// Get retrieves a record
func (b *badgerDB) Get(namespace string, key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nsKey(namespace, key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == nil {
		return value, nil
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errors.Wrapf(ErrNotExist, "ns %s key = %x doesn't exist", namespace, key)
	}
	return nil, errors.Wrap(ErrIO, err.Error())
}
