package multiplex

import (
	"context"

	"github.com/jrife/kvmux/multiplex/multiplexpb"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/storage/kv/marshaled"
)

// index maps logical keys to the pointer records
// describing where their copies live
type index struct {
	store kv.Store
	m     *marshaled.Map
}

func newIndex(store kv.Store) *index {
	return &index{
		store: store,
		m: &marshaled.Map{
			Store:     store,
			Unmarshal: unmarshalPointerRecord,
		},
	}
}

// Get reads the record for key. It returns kv.ErrNotFound
// if there is none.
func (index *index) Get(ctx context.Context, key string) (*multiplexpb.PointerRecord, error) {
	record, err := index.m.Get(ctx, []byte(key))

	if err != nil {
		return nil, wrapError("could not read pointer record", err)
	}

	return record.(*multiplexpb.PointerRecord), nil
}

// Put writes the record for key, replacing any existing record
func (index *index) Put(ctx context.Context, key string, record *multiplexpb.PointerRecord) error {
	return wrapError("could not write pointer record", index.m.Put(ctx, []byte(key), pointerRecord{record}))
}

// Delete deletes the record for key. It succeeds if there is none.
func (index *index) Delete(ctx context.Context, key string) error {
	return wrapError("could not delete pointer record", index.m.Delete(ctx, []byte(key)))
}

// Keys iterates over the records whose keys lie in the range
func (index *index) Keys(ctx context.Context, keys keys.Range, order kv.SortOrder) (*marshaled.Iterator, error) {
	iter, err := index.m.Keys(ctx, keys, order)

	if err != nil {
		return nil, wrapError("could not iterate pointer records", err)
	}

	return iter, nil
}

// pointerRecord adapts a record to marshaled.Marshalable
type pointerRecord struct {
	*multiplexpb.PointerRecord
}

func (record pointerRecord) Marshal() ([]byte, error) {
	data, err := record.Encode()

	if err != nil {
		return nil, err
	}

	// an empty message encodes to nil, which stores reject
	if data == nil {
		data = []byte{}
	}

	return data, nil
}

func unmarshalPointerRecord(data []byte) (interface{}, error) {
	return multiplexpb.DecodePointerRecord(data)
}
