// Package marshaled provides typed views over a kv.Store
package marshaled

import (
	"context"

	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/utils/stream"
)

// Marshalable describes a type that
// can be marshaled to a series of bytes
type Marshalable interface {
	Marshal() ([]byte, error)
}

// Unmarshaler is a function that unmarshals bytes into some type
type Unmarshaler func(data []byte) (interface{}, error)

// Map is like kv.Store except it marshals values on
// the way in and unmarshals them on the way out
type Map struct {
	Store     kv.Store
	Unmarshal Unmarshaler
}

// Get is like kv.Store.Get except it unmarshals the value
func (m *Map) Get(ctx context.Context, key []byte) (interface{}, error) {
	value, err := m.Store.Get(ctx, key)

	if err != nil {
		return nil, err
	}

	return m.Unmarshal(value)
}

// Put is like kv.Store.Put except it marshals the value
func (m *Map) Put(ctx context.Context, key []byte, value Marshalable) error {
	marshaledValue, err := value.Marshal()

	if err != nil {
		return err
	}

	return m.Store.Put(ctx, key, marshaledValue)
}

// Delete is the same as kv.Store.Delete
func (m *Map) Delete(ctx context.Context, key []byte) error {
	return m.Store.Delete(ctx, key)
}

// Keys is like kv.Store.Keys except the returned iterator unmarshals values
func (m *Map) Keys(ctx context.Context, keys keys.Range, order kv.SortOrder) (*Iterator, error) {
	iter, err := m.Store.Keys(ctx, keys, order)

	if err != nil {
		return nil, err
	}

	return &Iterator{
		Iterator:  iter,
		unmarshal: m.Unmarshal,
	}, nil
}

// Iterator is like kv.Iterator except it unmarshals values
type Iterator struct {
	kv.Iterator
	unmarshal Unmarshaler
	value     interface{}
	err       error
}

// Next is like kv.Iterator.Next. It stops at the first
// value that fails to unmarshal.
func (iterator *Iterator) Next() bool {
	if iterator.err != nil {
		return false
	}

	if !iterator.Iterator.Next() {
		iterator.value = nil
		iterator.err = iterator.Iterator.Error()

		return false
	}

	iterator.value, iterator.err = iterator.unmarshal(iterator.Iterator.Value())

	return iterator.err == nil
}

// Value returns the unmarshaled value at the current iterator position
func (iterator *Iterator) Value() interface{} {
	return iterator.value
}

// Error returns the first error encountered by the iterator
func (iterator *Iterator) Error() error {
	return iterator.err
}

// KV represents a key-value pair whose
// value has been unmarshaled
type KV struct {
	key   []byte
	value interface{}
}

// Key returns the key
func (kv KV) Key() []byte {
	return kv.key
}

// Value returns the value
func (kv KV) Value() interface{} {
	return kv.value
}

// Stream wraps the iterator in a stream
// whose values are KV instances
func Stream(iter *Iterator) stream.Stream {
	return &kvStream{iter}
}

type kvStream struct {
	iter *Iterator
}

func (stream *kvStream) Next() bool {
	return stream.iter.Next()
}

func (stream *kvStream) Value() interface{} {
	return KV{stream.iter.Key(), stream.iter.Value()}
}

func (stream *kvStream) Error() error {
	return stream.iter.Error()
}

func (stream *kvStream) Close() error {
	return stream.iter.Close()
}
