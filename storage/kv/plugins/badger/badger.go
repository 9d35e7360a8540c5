// Package badger implements a kv store on top of badger.
// Stores are either persistent (path) or purely in memory.
package badger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/utils/uuid"
)

const (
	// DriverName is the plugin name
	DriverName = "badger"
)

// Plugins returns the plugins defined by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BadgerPlugin{},
	}
}

// BadgerPlugin creates badger stores
type BadgerPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *BadgerPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore.
// Options:
//
//	path:        database directory
//	in_memory:   keep everything in memory, path must be unset
//	sync_writes: fsync every write
func (plugin *BadgerPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config BadgerStoreConfig

	if path, ok := options["path"]; ok {
		pathString, ok := path.(string)

		if !ok {
			return nil, fmt.Errorf("\"path\" must be a string")
		}

		config.Path = pathString
	}

	if inMemory, ok := options["in_memory"]; ok {
		inMemoryBool, ok := inMemory.(bool)

		if !ok {
			return nil, fmt.Errorf("\"in_memory\" must be a bool")
		}

		config.InMemory = inMemoryBool
	}

	if syncWrites, ok := options["sync_writes"]; ok {
		syncWritesBool, ok := syncWrites.(bool)

		if !ok {
			return nil, fmt.Errorf("\"sync_writes\" must be a bool")
		}

		config.SyncWrites = syncWritesBool
	}

	return New(config)
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *BadgerPlugin) NewTempStore() (kv.Store, error) {
	return New(BadgerStoreConfig{InMemory: true})
}

// BadgerStoreConfig configures a badger store
type BadgerStoreConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
}

var _ kv.Store = (*BadgerStore)(nil)
var _ kv.Observable = (*BadgerStore)(nil)
var _ kv.Batcher = (*BadgerStore)(nil)

// BadgerStore implements kv.Store
type BadgerStore struct {
	db        *badger.DB
	feed      *kv.Feed
	closeOnce sync.Once
	// writeMu orders publication of changes with
	// the commits that caused them
	writeMu sync.Mutex
}

// New opens a badger store
func New(config BadgerStoreConfig) (*BadgerStore, error) {
	if config.InMemory == (config.Path != "") {
		return nil, fmt.Errorf("exactly one of \"path\" or \"in_memory\" must be set")
	}

	opts := badger.DefaultOptions(config.Path).
		WithInMemory(config.InMemory).
		WithSyncWrites(config.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)

	if err != nil {
		return nil, fmt.Errorf("could not open badger store: %s", err)
	}

	return &BadgerStore{db: db, feed: kv.NewFeed()}, nil
}

// Get implements kv.Store.Get
func (store *BadgerStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, err
	}

	var value []byte

	err := store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)

		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)

		return err
	})

	if err != nil {
		return nil, wrapError("could not read key", err)
	}

	return value, nil
}

// Put implements kv.Store.Put
func (store *BadgerStore) Put(ctx context.Context, key, value []byte) error {
	return store.Batch(ctx, []kv.Op{kv.PutOp(key, value)})
}

// Delete implements kv.Store.Delete
func (store *BadgerStore) Delete(ctx context.Context, key []byte) error {
	return store.Batch(ctx, []kv.Op{kv.DeleteOp(key)})
}

// Post implements kv.Store.Post
func (store *BadgerStore) Post(ctx context.Context, value []byte) ([]byte, error) {
	if value == nil {
		return nil, kv.ErrInvalidValue
	}

	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	key := []byte(uuid.MustUUID())

	err := store.db.Update(func(txn *badger.Txn) error {
		for {
			_, err := txn.Get(key)

			if err == badger.ErrKeyNotFound {
				break
			} else if err != nil {
				return err
			}

			key = []byte(uuid.MustUUID())
		}

		return txn.Set(key, kv.Copy(value))
	})

	if err != nil {
		return nil, wrapError("could not post value", err)
	}

	store.feed.Publish(kv.Change{Origin: kv.Origin(ctx), Ops: []kv.Op{kv.PutOp(kv.Copy(key), kv.Copy(value))}})

	return key, nil
}

// Batch implements kv.Batcher.Batch
func (store *BadgerStore) Batch(ctx context.Context, ops []kv.Op) error {
	if err := kv.CheckOps(ops); err != nil {
		return err
	}

	if len(ops) == 0 {
		return nil
	}

	published := make([]kv.Op, len(ops))

	for i, op := range ops {
		published[i] = kv.Op{Type: op.Type, Key: kv.Copy(op.Key), Value: kv.Copy(op.Value)}
	}

	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	// badger holds on to the slices passed to Set until
	// the transaction commits so hand it the copies
	err := store.db.Update(func(txn *badger.Txn) error {
		for _, op := range published {
			var err error

			switch op.Type {
			case kv.OpPut:
				err = txn.Set(op.Key, op.Value)
			case kv.OpDelete:
				err = txn.Delete(op.Key)
			}

			if err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return wrapError("could not apply batch", err)
	}

	store.feed.Publish(kv.Change{Origin: kv.Origin(ctx), Batch: len(ops) != 1, Ops: published})

	return nil
}

// Keys implements kv.Store.Keys. The range is copied out of
// a single read-only transaction.
func (store *BadgerStore) Keys(ctx context.Context, keyRange keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	kvs := []kv.KV{}

	err := store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = order == kv.SortOrderDesc
		it := txn.NewIterator(opts)
		defer it.Close()

		if opts.Reverse {
			if keyRange.Max == nil {
				it.Rewind()
			} else {
				it.Seek(keyRange.Max)
			}
		} else {
			if keyRange.Min == nil {
				it.Rewind()
			} else {
				it.Seek(keyRange.Min)
			}
		}

		for ; it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)

			if opts.Reverse && keyRange.Min != nil && keys.Compare(key, keyRange.Min) < 0 {
				break
			}

			if !opts.Reverse && keyRange.Max != nil && keys.Compare(key, keyRange.Max) >= 0 {
				break
			}

			if !keyRange.Contains(key) {
				continue
			}

			value, err := item.ValueCopy(nil)

			if err != nil {
				return err
			}

			kvs = append(kvs, kv.NewKV(key, value))
		}

		return nil
	})

	if err != nil {
		return nil, wrapError("could not iterate keys", err)
	}

	return kv.NewSliceIterator(kvs), nil
}

// Changes implements kv.Observable.Changes
func (store *BadgerStore) Changes() *kv.Feed {
	return store.feed
}

// Close closes the database
func (store *BadgerStore) Close() error {
	var err error

	store.closeOnce.Do(func() {
		store.feed.Close()

		if closeErr := store.db.Close(); closeErr != nil {
			err = fmt.Errorf("could not close store: %s", closeErr)
		}
	})

	return err
}

func wrapError(wrap string, err error) error {
	switch err {
	case badger.ErrKeyNotFound:
		return kv.ErrNotFound
	case badger.ErrDBClosed:
		return kv.ErrClosed
	case nil:
		return err
	}

	return fmt.Errorf("%s: %s", wrap, err)
}
