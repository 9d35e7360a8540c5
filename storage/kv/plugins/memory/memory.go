// Package memory implements an in-memory kv store. It is
// ordered, observable and loses its contents on Close.
package memory

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/utils/uuid"
)

const (
	// DriverName is the plugin name
	DriverName = "memory"
)

// Plugins returns the plugins defined by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&Plugin{},
	}
}

// Plugin creates memory stores
type Plugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore. It takes no options.
func (plugin *Plugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	return New(), nil
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *Plugin) NewTempStore() (kv.Store, error) {
	return New(), nil
}

var _ kv.Store = (*Store)(nil)
var _ kv.Observable = (*Store)(nil)
var _ kv.Batcher = (*Store)(nil)

// Store is an in-memory implementation of kv.Store
// backed by a tree map
type Store struct {
	mu     sync.RWMutex
	m      *treemap.Map
	feed   *kv.Feed
	closed bool
}

// New creates an empty store
func New() *Store {
	return &Store{
		m:    treemap.NewWithStringComparator(),
		feed: kv.NewFeed(),
	}
}

// Get implements kv.Store.Get
func (store *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, err
	}

	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, kv.ErrClosed
	}

	v, ok := store.m.Get(string(key))

	if !ok {
		return nil, kv.ErrNotFound
	}

	return kv.Copy(v.([]byte)), nil
}

// Put implements kv.Store.Put
func (store *Store) Put(ctx context.Context, key, value []byte) error {
	return store.Batch(ctx, []kv.Op{kv.PutOp(key, value)})
}

// Delete implements kv.Store.Delete
func (store *Store) Delete(ctx context.Context, key []byte) error {
	return store.Batch(ctx, []kv.Op{kv.DeleteOp(key)})
}

// Post implements kv.Store.Post
func (store *Store) Post(ctx context.Context, value []byte) ([]byte, error) {
	if err := kv.CheckPut([]byte{0}, value); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil, kv.ErrClosed
	}

	key := []byte(uuid.MustUUID())

	for _, exists := store.m.Get(string(key)); exists; _, exists = store.m.Get(string(key)) {
		key = []byte(uuid.MustUUID())
	}

	store.apply(ctx, false, []kv.Op{kv.PutOp(key, value)})

	return kv.Copy(key), nil
}

// Batch implements kv.Batcher.Batch
func (store *Store) Batch(ctx context.Context, ops []kv.Op) error {
	if err := kv.CheckOps(ops); err != nil {
		return err
	}

	if len(ops) == 0 {
		return nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return kv.ErrClosed
	}

	store.apply(ctx, len(ops) != 1, ops)

	return nil
}

// apply must be called with the write lock held so
// changes are published in the order they were applied
func (store *Store) apply(ctx context.Context, batch bool, ops []kv.Op) {
	published := make([]kv.Op, len(ops))

	for i, op := range ops {
		switch op.Type {
		case kv.OpPut:
			store.m.Put(string(op.Key), kv.Copy(op.Value))
			published[i] = kv.PutOp(kv.Copy(op.Key), kv.Copy(op.Value))
		case kv.OpDelete:
			store.m.Remove(string(op.Key))
			published[i] = kv.DeleteOp(kv.Copy(op.Key))
		}
	}

	store.feed.Publish(kv.Change{Origin: kv.Origin(ctx), Batch: batch, Ops: published})
}

// Keys implements kv.Store.Keys. The iterator reads from a
// snapshot of the range taken when Keys is called.
func (store *Store) Keys(ctx context.Context, keyRange keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, kv.ErrClosed
	}

	kvs := []kv.KV{}
	iter := store.m.Iterator()

	if order == kv.SortOrderDesc {
		for iter.End(); iter.Prev(); {
			if key := []byte(iter.Key().(string)); keyRange.Contains(key) {
				kvs = append(kvs, kv.NewKV(key, kv.Copy(iter.Value().([]byte))))
			}
		}
	} else {
		for iter.Begin(); iter.Next(); {
			if key := []byte(iter.Key().(string)); keyRange.Contains(key) {
				kvs = append(kvs, kv.NewKV(key, kv.Copy(iter.Value().([]byte))))
			}
		}
	}

	return kv.NewSliceIterator(kvs), nil
}

// Changes implements kv.Observable.Changes
func (store *Store) Changes() *kv.Feed {
	return store.feed
}

// Len returns the number of keys in the store
func (store *Store) Len() int {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.m.Size()
}

// Close discards the contents of the store and
// ends every change subscription
func (store *Store) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil
	}

	store.closed = true
	store.m.Clear()
	store.feed.Close()

	return nil
}
