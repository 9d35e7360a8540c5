package multiplex

import (
	"context"

	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/utils/stream"
	pkg_errors "github.com/pkg/errors"
	"go.uber.org/zap"
)

const indexSource = "index"

// Changes subscribes to the logical change feed. Every
// logical change names logical keys and carries the resolved
// logical value for puts. Changes from a single source keep
// their order while changes from different sources may
// interleave. The subscription ends when ctx is done, when
// it is closed, when the multiplexer is closed or when the
// feed fails, in which case its Error returns the failure.
//
// The feed is started by the first call. It merges the
// changes of the index with the changes of every backing
// store that implements kv.Observable. Writes made through
// the multiplexer are reported once, through the index.
func (multiplexer *Multiplexer) Changes(ctx context.Context) (*kv.Subscription, error) {
	multiplexer.mu.Lock()
	defer multiplexer.mu.Unlock()

	if multiplexer.closed {
		return nil, kv.ErrClosed
	}

	subscription := multiplexer.changes.Subscribe(ctx)

	if multiplexer.merger == nil {
		multiplexer.startMerger()
	}

	return subscription, nil
}

// startMerger must be called with mu held
func (multiplexer *Multiplexer) startMerger() {
	logger := multiplexer.logger.With(zap.String("operation", "Changes"))
	sources := []stream.Stream{}

	if observable, ok := multiplexer.config.Index.Store.(kv.Observable); ok {
		sources = append(sources, multiplexer.indexChanges(logger, observable.Changes()))
	} else {
		logger.Warn("index store does not publish changes")
	}

	for _, store := range multiplexer.config.Stores {
		if observable, ok := store.Store.(kv.Observable); ok {
			sources = append(sources, multiplexer.storeChanges(logger, store.Label, observable.Changes()))
		} else {
			logger.Info("store does not publish changes", zap.String("store", store.Label))
		}
	}

	multiplexer.merger = stream.Merge(sources...)
	multiplexer.published = make(chan struct{})

	go multiplexer.publish(logger, multiplexer.merger, multiplexer.published)
}

func (multiplexer *Multiplexer) publish(logger *zap.Logger, merger *stream.Merged, published chan struct{}) {
	defer close(published)

	for merger.Next() {
		multiplexer.changes.Publish(merger.Value().(kv.Change))
	}

	if err := merger.Error(); err != nil {
		logger.Error("change feed failed", zap.Error(err))
		merger.Close()
		multiplexer.changes.CloseWithError(err)
	}
}

// indexChanges turns index changes into logical changes.
// Puts are resolved with a read so a put whose record
// disappears before it is read is dropped. Index writes made
// by the feed itself are skipped since the backing store
// change that caused them is already reported.
func (multiplexer *Multiplexer) indexChanges(logger *zap.Logger, feed *kv.Feed) stream.Stream {
	logger = logger.With(zap.String("source", indexSource))
	ctx := kv.WithOrigin(context.Background(), multiplexer.origin)

	return stream.Pipeline(
		feed.Subscribe(context.Background()),
		stream.Filter(func(value interface{}) bool {
			return value.(kv.Change).Origin != multiplexer.mergerOrigin
		}),
		stream.Map(func(value interface{}) (interface{}, bool, error) {
			change := value.(kv.Change)
			ops := make([]kv.Op, 0, len(change.Ops))

			for _, op := range change.Ops {
				switch op.Type {
				case kv.OpPut:
					resolved, err := multiplexer.get(ctx, logger, string(op.Key))

					if IsNotFound(err) {
						logger.Debug("dropped put of missing record", zap.ByteString("key", op.Key))

						continue
					} else if err != nil {
						return nil, false, err
					}

					ops = append(ops, kv.PutOp(op.Key, resolved))
				case kv.OpDelete:
					ops = append(ops, kv.DeleteOp(op.Key))
				default:
					return nil, false, pkg_errors.Wrapf(ErrUnrecognizedOperation, "index published %s", op.Type)
				}
			}

			return multiplexer.logical(indexSource, change, ops)
		}),
		stream.Log(logger),
	)
}

// storeChanges turns the changes of a backing store into
// logical changes. Copies written by the multiplexer are
// skipped. Anything else is a direct write to the store and
// is attributed to a logical key with the resolver.
func (multiplexer *Multiplexer) storeChanges(logger *zap.Logger, label string, feed *kv.Feed) stream.Stream {
	logger = logger.With(zap.String("source", label))
	ctx := kv.WithOrigin(context.Background(), multiplexer.mergerOrigin)

	return stream.Pipeline(
		feed.Subscribe(context.Background()),
		stream.Filter(func(value interface{}) bool {
			origin := value.(kv.Change).Origin

			return origin != multiplexer.origin && origin != multiplexer.mergerOrigin
		}),
		stream.Map(func(value interface{}) (interface{}, bool, error) {
			change := value.(kv.Change)
			ops := make([]kv.Op, 0, len(change.Ops))

			for _, op := range change.Ops {
				switch op.Type {
				case kv.OpPut:
					logical, err := multiplexer.reversePut(ctx, logger, label, op.Key, op.Value)

					if err != nil {
						return nil, false, err
					}

					ops = append(ops, kv.PutOp([]byte(logical), op.Value))
				case kv.OpDelete:
					logical, ok, err := multiplexer.reverseDelete(ctx, logger, label, op.Key)

					if err != nil {
						return nil, false, err
					}

					if ok {
						ops = append(ops, kv.DeleteOp([]byte(logical)))
					}
				default:
					return nil, false, pkg_errors.Wrapf(ErrUnrecognizedOperation, "store %q published %s", label, op.Type)
				}
			}

			return multiplexer.logical(label, change, ops)
		}),
		stream.Log(logger),
	)
}

func (multiplexer *Multiplexer) logical(source string, change kv.Change, ops []kv.Op) (interface{}, bool, error) {
	if len(ops) == 0 {
		return nil, false, nil
	}

	multiplexer.metrics.changes.WithLabelValues(source).Inc()

	return kv.Change{Origin: change.Origin, Batch: change.Batch, Ops: ops}, true, nil
}
