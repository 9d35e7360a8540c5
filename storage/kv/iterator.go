package kv

var _ Iterator = (*SliceIterator)(nil)

// SliceIterator iterates over a materialized list of
// key-value pairs. Stores whose native cursors cannot
// outlive a transaction copy the range into one of these.
type SliceIterator struct {
	kvs     []KV
	current int
}

// NewSliceIterator creates an iterator over kvs
func NewSliceIterator(kvs []KV) *SliceIterator {
	return &SliceIterator{kvs: kvs, current: -1}
}

// Next implements Iterator.Next
func (iter *SliceIterator) Next() bool {
	if iter.current >= len(iter.kvs) {
		return false
	}

	iter.current++

	return iter.current < len(iter.kvs)
}

// Key implements Iterator.Key
func (iter *SliceIterator) Key() []byte {
	if iter.current < 0 || iter.current >= len(iter.kvs) {
		return nil
	}

	return iter.kvs[iter.current].key
}

// Value implements Iterator.Value
func (iter *SliceIterator) Value() []byte {
	if iter.current < 0 || iter.current >= len(iter.kvs) {
		return nil
	}

	return iter.kvs[iter.current].value
}

// Error implements Iterator.Error
func (iter *SliceIterator) Error() error {
	return nil
}

// Close implements Iterator.Close
func (iter *SliceIterator) Close() error {
	iter.kvs = nil
	iter.current = 0

	return nil
}
