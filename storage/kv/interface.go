package kv

import (
	"context"
	"errors"

	"github.com/jrife/kvmux/storage/kv/keys"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("store was closed")
	// ErrNotFound indicates that the requested key does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidKey is returned when a key is nil or empty
	ErrInvalidKey = errors.New("key must not be empty")
	// ErrInvalidValue is returned when a value is nil
	ErrInvalidValue = errors.New("value must not be nil")
	// ErrInvalidOp is returned when a batch contains an operation
	// of unknown type
	ErrInvalidOp = errors.New("unknown operation type")
)

// SortOrder describes the order in which keys are iterated
type SortOrder int

const (
	// SortOrderAsc iterates keys in ascending byte order
	SortOrderAsc SortOrder = iota
	// SortOrderDesc iterates keys in descending byte order
	SortOrderDesc
)

// PluginOptions is a generic set of options
// passed to a plugin when it creates a store
type PluginOptions map[string]interface{}

// Plugin represents a kv storage plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// NewStore returns an instance of the plugin store
	NewStore(options PluginOptions) (Store, error)
	// NewTempStore returns an instance of the plugin store
	// initialized with some sane defaults. It is meant for
	// tests that need an initialized instance of the plugin's
	// store without knowing how to initialize it. Closing a
	// temp store discards its contents.
	NewTempStore() (Store, error)
}

// Store is the capability every backing store must provide.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get reads a key. It must return ErrNotFound if the key
	// does not exist and ErrInvalidKey if the key is nil or empty.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Put writes a key, overwriting any existing value.
	// It must return ErrInvalidKey if the key is nil or empty
	// and ErrInvalidValue if the value is nil.
	Put(ctx context.Context, key, value []byte) error
	// Delete deletes a key. If the key doesn't exist it has no
	// effect and returns nil.
	Delete(ctx context.Context, key []byte) error
	// Post inserts the value under a fresh key chosen by the
	// store and returns that key. Keys returned by Post must
	// never collide with a key already in the store.
	Post(ctx context.Context, value []byte) ([]byte, error)
	// Keys creates an iterator that iterates over the range
	// of keys in the given order. The iterator must be closed.
	Keys(ctx context.Context, keys keys.Range, order SortOrder) (Iterator, error)
}

// Opener is implemented by stores that must be
// opened before use
type Opener interface {
	Open(ctx context.Context) error
}

// Observable is implemented by stores that publish
// their mutations. Changes must return the same feed
// on every call.
type Observable interface {
	Changes() *Feed
}

// Batcher is implemented by stores that can apply several
// operations atomically. A successful batch is published
// as a single batch change.
type Batcher interface {
	Batch(ctx context.Context, ops []Op) error
}

// Iterator iterates over a set of keys. It must only be
// used by one goroutine at a time.
type Iterator interface {
	// Next advances the iterator to the next key
	// A fresh iterator must call Next once to
	// advance to the first key. Next returns false
	// if there is no next key or if it encounters an
	// error.
	Next() bool
	// Key returns the current key
	Key() []byte
	// Value returns the current value
	Value() []byte
	// Error returns the error, if any.
	Error() error
	// Close releases any resources held by the iterator
	Close() error
}

// KV is a single key-value pair
type KV struct {
	key   []byte
	value []byte
}

// NewKV creates a KV
func NewKV(key, value []byte) KV {
	return KV{key: key, value: value}
}

// Key returns the key
func (kv KV) Key() []byte {
	return kv.key
}

// Value returns the value
func (kv KV) Value() []byte {
	return kv.value
}
