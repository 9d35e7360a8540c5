package multiplex

import (
	"context"

	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/utils/log"
	"github.com/jrife/kvmux/utils/stream"
	"go.uber.org/zap"
)

// IterateOptions selects the keys visited by Iterate
type IterateOptions struct {
	Range keys.Range
	Order kv.SortOrder
	// Limit is the maximum number of pairs returned.
	// Limit <= 0 means no limit.
	Limit int
}

// KV is a logical key and its value
type KV struct {
	Key   string
	Value []byte
}

// Iterate walks the index over the selected range and reads
// the value of each key as Get would, repairs included. Keys
// that are deleted or whose copies are all lost by the time
// they are read are skipped.
func (multiplexer *Multiplexer) Iterate(ctx context.Context, options IterateOptions) (*Iterator, error) {
	logger := log.WithContext(ctx, multiplexer.logger).With(zap.String("operation", "Iterate"))
	logger.Debug("start Iterate()", zap.ByteString("min", options.Range.Min), zap.ByteString("max", options.Range.Max), zap.Int("limit", options.Limit))

	ctx = kv.WithOrigin(ctx, multiplexer.origin)
	iter, err := multiplexer.config.Index.Store.Keys(ctx, options.Range, options.Order)

	if err != nil {
		err = wrapError("could not iterate pointer index", err)

		logger.Debug("error", zap.Error(err))

		return nil, err
	}

	resolved := stream.Pipeline(
		kv.Stream(iter),
		stream.Map(func(value interface{}) (interface{}, bool, error) {
			key := string(value.(kv.KV).Key())
			v, err := multiplexer.get(ctx, logger, key)

			if IsNotFound(err) {
				logger.Debug("skipped missing key", zap.String("key", key))

				return nil, false, nil
			} else if err != nil {
				return nil, false, err
			}

			return KV{Key: key, Value: v}, true, nil
		}),
		stream.Limit(options.Limit),
	)

	logger.Debug("return from Iterate()")

	return &Iterator{stream: resolved}, nil
}

// Iterator iterates over logical key-value pairs.
// It must be closed.
type Iterator struct {
	stream stream.Stream
	kv     KV
}

// Next advances to the next pair. It returns false
// at the end of the range or on error.
func (iterator *Iterator) Next() bool {
	if !iterator.stream.Next() {
		iterator.kv = KV{}

		return false
	}

	iterator.kv = iterator.stream.Value().(KV)

	return true
}

// Key returns the current key
func (iterator *Iterator) Key() string {
	return iterator.kv.Key
}

// Value returns the current value
func (iterator *Iterator) Value() []byte {
	return iterator.kv.Value
}

// Error returns the error that ended iteration, if any
func (iterator *Iterator) Error() error {
	return iterator.stream.Error()
}

// Close releases the index iterator
func (iterator *Iterator) Close() error {
	return stream.Close(iterator.stream)
}

// Stream returns the iterator as a stream of KV values
func (iterator *Iterator) Stream() stream.Stream {
	return iterator.stream
}
