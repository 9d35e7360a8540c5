package multiplex

import (
	"context"

	"github.com/jrife/kvmux/multiplex/multiplexpb"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"go.uber.org/zap"
)

// Resolver maps a key inside a backing store back to the
// logical key whose record points at it. The change stream
// uses it to attribute mutations made directly on a backing
// store to a logical record. ok is false if no logical key
// is associated with the physical key.
type Resolver interface {
	Reverse(ctx context.Context, store string, key []byte) (logical string, ok bool, err error)
}

var _ Resolver = IdentityResolver{}

// IdentityResolver treats every physical key as the logical
// key of the same name. It is only correct for deployments
// whose backing stores are also addressed by logical key;
// in every other deployment direct writes to a backing store
// are attributed to a logical key that merely shares their
// name. It is the default because it needs no state.
type IdentityResolver struct {
}

// Reverse implements Resolver.Reverse
func (resolver IdentityResolver) Reverse(ctx context.Context, store string, key []byte) (string, bool, error) {
	return string(key), true, nil
}

var _ Resolver = (*ScanResolver)(nil)

// ScanResolver finds the logical key by scanning every
// record in the pointer index. It is exact but costs a full
// index scan per lookup, so it only suits small indexes.
type ScanResolver struct {
	// Index is the store holding the pointer index
	Index kv.Store
}

// Reverse implements Resolver.Reverse
func (resolver *ScanResolver) Reverse(ctx context.Context, store string, key []byte) (string, bool, error) {
	iter, err := newIndex(resolver.Index).Keys(ctx, keys.All(), kv.SortOrderAsc)

	if err != nil {
		return "", false, err
	}

	defer iter.Close()

	for iter.Next() {
		if iter.Value().(*multiplexpb.PointerRecord).Contains(store, key) {
			return string(iter.Key()), true, nil
		}
	}

	if err := iter.Error(); err != nil {
		return "", false, wrapError("could not scan pointer index", err)
	}

	return "", false, nil
}

// reversePut attributes a direct write of value to key in
// store. If the key belongs to a logical record the record is
// rewritten with value, otherwise a new record is created.
// It returns the logical key.
func (multiplexer *Multiplexer) reversePut(ctx context.Context, logger *zap.Logger, store string, key []byte, value []byte) (string, error) {
	logical, ok, err := multiplexer.resolver.Reverse(ctx, store, key)

	if err != nil {
		return "", wrapError("could not resolve physical key", err)
	}

	if !ok {
		return multiplexer.post(ctx, logger, value)
	}

	if err := multiplexer.put(ctx, logger, logical, value); err != nil {
		return "", err
	}

	return logical, nil
}

// reverseDelete attributes a direct delete of key in store.
// If the key belongs to a logical record that record is
// deleted. ok is false if there was no such record.
func (multiplexer *Multiplexer) reverseDelete(ctx context.Context, logger *zap.Logger, store string, key []byte) (string, bool, error) {
	logical, ok, err := multiplexer.resolver.Reverse(ctx, store, key)

	if err != nil {
		return "", false, wrapError("could not resolve physical key", err)
	}

	if !ok {
		return "", false, nil
	}

	if err := multiplexer.delete(ctx, logger, logical); err != nil {
		return "", false, err
	}

	return logical, true, nil
}
