package kv

import (
	"github.com/jrife/kvmux/utils/stream"
)

// CheckKey returns ErrInvalidKey if key is nil or empty
func CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}

	return nil
}

// CheckPut validates the arguments of a put
func CheckPut(key, value []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}

	if value == nil {
		return ErrInvalidValue
	}

	return nil
}

// CheckOps validates every operation of a batch
func CheckOps(ops []Op) error {
	for _, op := range ops {
		switch op.Type {
		case OpPut:
			if err := CheckPut(op.Key, op.Value); err != nil {
				return err
			}
		case OpDelete:
			if err := CheckKey(op.Key); err != nil {
				return err
			}
		default:
			return ErrInvalidOp
		}
	}

	return nil
}

// Copy returns a copy of b. It returns nil if b is nil.
func Copy(b []byte) []byte {
	if b == nil {
		return nil
	}

	c := make([]byte, len(b))
	copy(c, b)

	return c
}

// Stream wraps the iterator in a stream
// whose values are KV instances
func Stream(iter Iterator) stream.Stream {
	return &kvStream{iter}
}

type kvStream struct {
	iter Iterator
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
