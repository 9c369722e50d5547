// Package diffdb stores per-height structural deltas of application state
// on a pluggable key-value backend.
package diffdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/blockberries/abcistate"
)

var (
	// ErrNotExist indicates certain item does not exist in the database.
	// It matches abcistate.ErrNotFound under errors.Is.
	ErrNotExist = errors.WithMessage(abcistate.ErrNotFound, "not exist in DB")
	// ErrIO indicates the generic error of DB I/O operation
	ErrIO = errors.New("DB I/O operation error")
	// ErrUnknownBackend is returned by NewKVStore for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown diffdb backend")
)

// KVStore is the interface of KV store.
type KVStore interface {
	// Start opens the store
	Start(context.Context) error
	// Stop closes the store
	Stop(context.Context) error
	// Put insert or update a record identified by (namespace, key)
	Put(string, []byte, []byte) error
	// Get gets a record by (namespace, key)
	Get(string, []byte) ([]byte, error)
}

// NewKVStore instantiates the backend named by cfg. The store still needs
// to be started.
func NewKVStore(cfg Config) (KVStore, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemKVStore(), nil
	case BackendBolt:
		return NewBoltDB(cfg), nil
	case BackendBadger:
		return NewBadgerDB(cfg), nil
	case BackendLevelDB:
		return NewLevelDB(cfg), nil
	case BackendPebble:
		return NewPebbleDB(cfg), nil
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "backend = %q", cfg.Backend)
	}
}

// memKVStore is the in-memory implementation of KVStore for testing purpose
type memKVStore struct {
	data *sync.Map
}

// NewMemKVStore instantiates an in-memory KV store
func NewMemKVStore() KVStore {
	return &memKVStore{data: &sync.Map{}}
}

func (m *memKVStore) Start(_ context.Context) error { return nil }

func (m *memKVStore) Stop(_ context.Context) error { return nil }

// Put inserts a <key, value> record
func (m *memKVStore) Put(namespace string, key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.data.Store(string(nsKey(namespace, key)), v)
	return nil
}

// Get retrieves a record
func (m *memKVStore) Get(namespace string, key []byte) ([]byte, error) {
	v, ok := m.data.Load(string(nsKey(namespace, key)))
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "ns %s key = %x doesn't exist", namespace, key)
	}
	stored := v.([]byte)
	out := make([]byte, len(stored))
	copy(out, stored)
	return out, nil
}

func nsKey(ns string, key []byte) []byte {
	nk := make([]byte, 0, len(ns)+len(key))
	nk = append(nk, ns...)
	return append(nk, key...)
}
