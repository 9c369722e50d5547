package diffdb

import (
	"context"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// levelDB is KVStore implementation based on goleveldb
type levelDB struct {
	db     *leveldb.DB
	path   string
	config Config
}

// NewLevelDB creates a leveldb-backed store in cfg.Path.
func NewLevelDB(cfg Config) KVStore {
	return &levelDB{path: cfg.Path, config: cfg}
}

// Start opens the database (creates new files if not existing yet)
func (l *levelDB) Start(_ context.Context) error {
	db, err := leveldb.OpenFile(l.path, nil)
	if err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	l.db = db
	return nil
}

// Stop closes the database
func (l *levelDB) Stop(_ context.Context) error {
	if l.db != nil {
		if err := l.db.Close(); err != nil {
			return errors.Wrap(ErrIO, err.Error())
		}
	}
	return nil
}

// Put inserts a <key, value> record
func (l *levelDB) Put(namespace string, key, value []byte) (err error) {
	for c := uint8(0); c < retries(l.config); c++ {
		if err = l.db.Put(nsKey(namespace, key), value, &opt.WriteOptions{Sync: true}); err == nil {
			break
		}
	}
	if err != nil {
		err = errors.Wrap(ErrIO, err.Error())
	}
	return err
}

// Get retrieves a record
func (l *levelDB) Get(namespace string, key []byte) ([]byte, error) {
	v, err := l.db.Get(nsKey(namespace, key), nil)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotExist, "ns %s key = %x doesn't exist", namespace, key)
	}
	return nil, errors.Wrap(ErrIO, err.Error())
}
