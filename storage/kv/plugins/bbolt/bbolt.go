// Package bbolt implements a persistent kv store on top of
// a single bbolt bucket.
package bbolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	// DriverName is the plugin name
	DriverName = "bbolt"
	// DefaultBucket is the bucket used when none is configured
	DefaultBucket = "kv"
)

// Plugins returns the plugins defined by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BBoltPlugin{},
	}
}

// BBoltPlugin creates bbolt stores
type BBoltPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore.
// Options:
//
//	path:   database file (required)
//	bucket: bucket name (default "kv")
func (plugin *BBoltPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config BBoltStoreConfig

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	if bucket, ok := options["bucket"]; ok {
		bucketString, ok := bucket.(string)

		if !ok || bucketString == "" {
			return nil, fmt.Errorf("\"bucket\" must be a non-empty string")
		}

		config.Bucket = bucketString
	}

	return New(config)
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *BBoltPlugin) NewTempStore() (kv.Store, error) {
	return New(BBoltStoreConfig{
		Path:      filepath.Join(os.TempDir(), fmt.Sprintf("bbolt-%s", uuid.MustUUID())),
		Temporary: true,
	})
}

// BBoltStoreConfig configures a bbolt store
type BBoltStoreConfig struct {
	Path   string
	Bucket string
	// Temporary stores delete their file on Close
	Temporary bool
}

var _ kv.Store = (*BBoltStore)(nil)
var _ kv.Observable = (*BBoltStore)(nil)
var _ kv.Batcher = (*BBoltStore)(nil)

// BBoltStore implements kv.Store
type BBoltStore struct {
	db        *bolt.DB
	bucket    []byte
	temporary bool
	feed      *kv.Feed
	// writeMu orders publication of changes with
	// the commits that caused them
	writeMu sync.Mutex
}

// New opens or creates the bbolt database at config.Path
func New(config BBoltStoreConfig) (*BBoltStore, error) {
	if config.Bucket == "" {
		config.Bucket = DefaultBucket
	}

	db, err := bolt.Open(config.Path, 0666, nil)

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %s", config.Path, err)
	}

	if err := db.Update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists([]byte(config.Bucket))

		return err
	}); err != nil {
		db.Close()

		return nil, fmt.Errorf("could not ensure bucket %s exists: %s", config.Bucket, err)
	}

	return &BBoltStore{
		db:        db,
		bucket:    []byte(config.Bucket),
		temporary: config.Temporary,
		feed:      kv.NewFeed(),
	}, nil
}

// Get implements kv.Store.Get
func (store *BBoltStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, err
	}

	var value []byte

	err := store.db.View(func(txn *bolt.Tx) error {
		v := txn.Bucket(store.bucket).Get(key)

		if v == nil {
			return kv.ErrNotFound
		}

		value = kv.Copy(v)

		return nil
	})

	if err != nil {
		return nil, wrapError("could not read key", err)
	}

	return value, nil
}

// Put implements kv.Store.Put
func (store *BBoltStore) Put(ctx context.Context, key, value []byte) error {
	return store.Batch(ctx, []kv.Op{kv.PutOp(key, value)})
}

// Delete implements kv.Store.Delete
func (store *BBoltStore) Delete(ctx context.Context, key []byte) error {
	return store.Batch(ctx, []kv.Op{kv.DeleteOp(key)})
}

// Post implements kv.Store.Post. Keys are generated from
// the bucket sequence so they sort in insertion order.
func (store *BBoltStore) Post(ctx context.Context, value []byte) ([]byte, error) {
	if value == nil {
		return nil, kv.ErrInvalidValue
	}

	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	var key []byte

	err := store.db.Update(func(txn *bolt.Tx) error {
		bucket := txn.Bucket(store.bucket)

		for {
			seq, err := bucket.NextSequence()

			if err != nil {
				return err
			}

			key = keys.Uint64ToKey(seq)

			// keys written directly with Put may occupy a
			// sequence number
			if bucket.Get(key) == nil {
				break
			}
		}

		return bucket.Put(key, value)
	})

	if err != nil {
		return nil, wrapError("could not post value", err)
	}

	store.feed.Publish(kv.Change{Origin: kv.Origin(ctx), Ops: []kv.Op{kv.PutOp(kv.Copy(key), kv.Copy(value))}})

	return key, nil
}

// Batch implements kv.Batcher.Batch
func (store *BBoltStore) Batch(ctx context.Context, ops []kv.Op) error {
	if err := kv.CheckOps(ops); err != nil {
		return err
	}

	if len(ops) == 0 {
		return nil
	}

	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	err := store.db.Update(func(txn *bolt.Tx) error {
		bucket := txn.Bucket(store.bucket)

		for _, op := range ops {
			var err error

			switch op.Type {
			case kv.OpPut:
				err = bucket.Put(op.Key, op.Value)
			case kv.OpDelete:
				err = bucket.Delete(op.Key)
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

	published := make([]kv.Op, len(ops))

	for i, op := range ops {
		published[i] = kv.Op{Type: op.Type, Key: kv.Copy(op.Key), Value: kv.Copy(op.Value)}
	}

	store.feed.Publish(kv.Change{Origin: kv.Origin(ctx), Batch: len(ops) != 1, Ops: published})

	return nil
}

// Keys implements kv.Store.Keys. The range is read in a
// single read-only transaction and copied out so the
// iterator does not pin the transaction.
func (store *BBoltStore) Keys(ctx context.Context, keyRange keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	kvs := []kv.KV{}

	err := store.db.View(func(txn *bolt.Tx) error {
		cursor := txn.Bucket(store.bucket).Cursor()

		if order == kv.SortOrderDesc {
			var k, v []byte

			if keyRange.Max == nil {
				k, v = cursor.Last()
			} else if k, v = cursor.Seek(keyRange.Max); k == nil {
				k, v = cursor.Last()
			}

			for ; k != nil; k, v = cursor.Prev() {
				if keyRange.Min != nil && keys.Compare(k, keyRange.Min) < 0 {
					break
				}

				if keyRange.Contains(k) {
					kvs = append(kvs, kv.NewKV(kv.Copy(k), kv.Copy(v)))
				}
			}

			return nil
		}

		k, v := cursor.First()

		if keyRange.Min != nil {
			k, v = cursor.Seek(keyRange.Min)
		}

		for ; k != nil && (keyRange.Max == nil || keys.Compare(k, keyRange.Max) < 0); k, v = cursor.Next() {
			kvs = append(kvs, kv.NewKV(kv.Copy(k), kv.Copy(v)))
		}

		return nil
	})

	if err != nil {
		return nil, wrapError("could not iterate keys", err)
	}

	return kv.NewSliceIterator(kvs), nil
}

// Changes implements kv.Observable.Changes
func (store *BBoltStore) Changes() *kv.Feed {
	return store.feed
}

// Close closes the database. Temporary stores
// are deleted.
func (store *BBoltStore) Close() error {
	store.feed.Close()
	path := store.db.Path()

	if err := store.db.Close(); err != nil {
		return fmt.Errorf("could not close store: %s", err)
	}

	if store.temporary {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("could not remove path %s: %s", path, err)
		}
	}

	return nil
}

func wrapError(wrap string, err error) error {
	switch err {
	case bolt.ErrDatabaseNotOpen:
		return kv.ErrClosed
	case kv.ErrNotFound:
		fallthrough
	case nil:
		return err
	}

	return fmt.Errorf("%s: %s", wrap, err)
}
