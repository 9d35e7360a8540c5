package multiplex

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jrife/kvmux/multiplex/multiplexpb"
	"github.com/jrife/kvmux/routing"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/utils/log"
	"github.com/jrife/kvmux/utils/stream"
	"github.com/jrife/kvmux/utils/uuid"
	pkg_errors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IndexConfig describes the store holding the pointer index
type IndexConfig struct {
	Store kv.Store
	// External stores are opened and closed by their owner.
	// Otherwise the multiplexer opens the store in Open if it
	// implements kv.Opener and closes it in Close if it
	// implements io.Closer.
	External bool
}

// StoreConfig describes one backing store
type StoreConfig struct {
	// Label names the store in pointer records and
	// in the router's results
	Label    string
	Store    kv.Store
	External bool
}

// Config contains configuration for a multiplexer
type Config struct {
	Logger *zap.Logger
	Index  IndexConfig
	Stores []StoreConfig
	Router routing.Router
	// Resolver attributes direct backing store writes to
	// logical keys. It defaults to a ScanResolver over the
	// index store.
	Resolver Resolver
	// Metrics is the registerer for the multiplexer's
	// collectors. They are not registered if it is nil.
	Metrics prometheus.Registerer
}

// Multiplexer presents several backing stores as a single
// key-value store. Each value is copied into the stores
// chosen for it by the router and a pointer index maps each
// logical key to the copies. Reads compare the copies, repair
// missing ones and split diverging ones into new records.
//
// No locking is performed. Concurrent writes to the same key
// are resolved by whichever index write lands last.
type Multiplexer struct {
	logger       *zap.Logger
	config       Config
	index        *index
	stores       map[string]kv.Store
	router       routing.Router
	resolver     Resolver
	metrics      *metrics
	origin       string
	mergerOrigin string

	mu        sync.Mutex
	closed    bool
	changes   *kv.Feed
	merger    *stream.Merged
	published chan struct{}
}

// New creates a multiplexer. It returns an error wrapping
// ErrInvalidConfig if the configuration is incomplete.
func New(config Config) (*Multiplexer, error) {
	if err := validate(config); err != nil {
		return nil, err
	}

	metrics, err := newMetrics(config.Metrics)

	if err != nil {
		return nil, pkg_errors.Wrap(err, "could not register metrics")
	}

	origin, err := uuid.UUID()

	if err != nil {
		return nil, pkg_errors.Wrap(err, "could not generate origin")
	}

	multiplexer := &Multiplexer{
		logger:   config.Logger,
		config:   config,
		index:    newIndex(config.Index.Store),
		stores:   make(map[string]kv.Store, len(config.Stores)),
		router:   config.Router,
		resolver: config.Resolver,
		metrics:  metrics,
		origin:   "kvmux/" + origin,
		changes:  kv.NewFeed(),
	}

	multiplexer.mergerOrigin = multiplexer.origin + "/changes"

	if multiplexer.logger == nil {
		multiplexer.logger = zap.L()
	}

	if multiplexer.resolver == nil {
		multiplexer.resolver = &ScanResolver{Index: config.Index.Store}
	}

	for _, store := range config.Stores {
		multiplexer.stores[store.Label] = store.Store
	}

	return multiplexer, nil
}

func validate(config Config) error {
	if config.Index.Store == nil {
		return pkg_errors.Wrap(ErrInvalidConfig, "index store is not set")
	}

	if len(config.Stores) == 0 {
		return pkg_errors.Wrap(ErrInvalidConfig, "at least one backing store is required")
	}

	if config.Router == nil {
		return pkg_errors.Wrap(ErrInvalidConfig, "router is not set")
	}

	labels := map[string]bool{}

	for i, store := range config.Stores {
		if store.Label == "" {
			return pkg_errors.Wrapf(ErrInvalidConfig, "store %d has no label", i)
		}

		if labels[store.Label] {
			return pkg_errors.Wrapf(ErrInvalidConfig, "duplicate store label %q", store.Label)
		}

		if store.Store == nil {
			return pkg_errors.Wrapf(ErrInvalidConfig, "store %q is not set", store.Label)
		}

		labels[store.Label] = true
	}

	return nil
}

// Open opens the index and then every backing store in
// configuration order. External stores and stores that
// don't implement kv.Opener are skipped.
func (multiplexer *Multiplexer) Open(ctx context.Context) error {
	logger := log.WithContext(ctx, multiplexer.logger).With(zap.String("operation", "Open"))
	logger.Debug("start Open()")

	if err := openStore(ctx, multiplexer.config.Index.Store, multiplexer.config.Index.External); err != nil {
		err = wrapError("could not open index store", err)

		logger.Debug("error", zap.Error(err))

		return err
	}

	for _, store := range multiplexer.config.Stores {
		if err := openStore(ctx, store.Store, store.External); err != nil {
			err = wrapError(fmt.Sprintf("could not open store %q", store.Label), err)

			logger.Debug("error", zap.Error(err))

			return err
		}
	}

	logger.Debug("return from Open()")

	return nil
}

func openStore(ctx context.Context, store kv.Store, external bool) error {
	opener, ok := store.(kv.Opener)

	if external || !ok {
		return nil
	}

	return opener.Open(ctx)
}

// Close stops the change feed and closes every backing store
// in configuration order and then the index. External stores
// and stores that don't implement io.Closer are skipped. Every
// store is closed even if closing one fails. Close returns the
// first error.
func (multiplexer *Multiplexer) Close() error {
	multiplexer.mu.Lock()

	if multiplexer.closed {
		multiplexer.mu.Unlock()

		return nil
	}

	multiplexer.closed = true
	merger := multiplexer.merger
	published := multiplexer.published
	multiplexer.mu.Unlock()

	if merger != nil {
		merger.Close()
		merger.Wait()
		<-published
	}

	multiplexer.changes.Close()

	var firstErr error

	for _, store := range multiplexer.config.Stores {
		if err := closeStore(store.Store, store.External); err != nil && firstErr == nil {
			firstErr = wrapError(fmt.Sprintf("could not close store %q", store.Label), err)
		}
	}

	if err := closeStore(multiplexer.config.Index.Store, multiplexer.config.Index.External); err != nil && firstErr == nil {
		firstErr = wrapError("could not close index store", err)
	}

	if firstErr != nil {
		multiplexer.logger.Error("could not close multiplexer", zap.Error(firstErr))
	}

	return firstErr
}

func closeStore(store kv.Store, external bool) error {
	closer, ok := store.(io.Closer)

	if external || !ok {
		return nil
	}

	return closer.Close()
}

// Get reads the value of key. It returns kv.ErrNotFound if
// the index has no record for key or if none of the record's
// copies can be found.
func (multiplexer *Multiplexer) Get(ctx context.Context, key string) ([]byte, error) {
	logger := log.WithContext(ctx, multiplexer.logger).With(zap.String("operation", "Get"))
	logger.Debug("start Get()", zap.String("key", key))

	value, err := multiplexer.get(kv.WithOrigin(ctx, multiplexer.origin), logger, key)
	multiplexer.metrics.observe("get", err)

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return nil, err
	}

	logger.Debug("return from Get()", zap.Int("size", len(value)))

	return value, nil
}

// Put writes a copy of value to every store the router
// chooses and then points key at the new copies. Copies
// written before a failure are not rolled back. Copies
// the previous record pointed at are left in place.
func (multiplexer *Multiplexer) Put(ctx context.Context, key string, value []byte) error {
	logger := log.WithContext(ctx, multiplexer.logger).With(zap.String("operation", "Put"))
	logger.Debug("start Put()", zap.String("key", key), zap.Int("size", len(value)))

	err := multiplexer.put(kv.WithOrigin(ctx, multiplexer.origin), logger, key, value)
	multiplexer.metrics.observe("put", err)

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return err
	}

	logger.Debug("return from Put()")

	return nil
}

// Delete deletes key and all of its copies. It succeeds if
// key does not exist.
func (multiplexer *Multiplexer) Delete(ctx context.Context, key string) error {
	logger := log.WithContext(ctx, multiplexer.logger).With(zap.String("operation", "Delete"))
	logger.Debug("start Delete()", zap.String("key", key))

	err := multiplexer.delete(kv.WithOrigin(ctx, multiplexer.origin), logger, key)
	multiplexer.metrics.observe("delete", err)

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return err
	}

	logger.Debug("return from Delete()")

	return nil
}

// Post writes value under a new random key and returns the key
func (multiplexer *Multiplexer) Post(ctx context.Context, value []byte) (string, error) {
	logger := log.WithContext(ctx, multiplexer.logger).With(zap.String("operation", "Post"))
	logger.Debug("start Post()", zap.Int("size", len(value)))

	key, err := multiplexer.post(kv.WithOrigin(ctx, multiplexer.origin), logger, value)
	multiplexer.metrics.observe("post", err)

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return "", err
	}

	logger.Debug("return from Post()", zap.String("return", key))

	return key, nil
}

func (multiplexer *Multiplexer) get(ctx context.Context, logger *zap.Logger, key string) ([]byte, error) {
	record, err := multiplexer.index.Get(ctx, key)

	if err != nil {
		return nil, err
	}

	values := make([][]byte, len(record.Pointers))
	found := make([]bool, len(record.Pointers))

	var g errgroup.Group

	for i, pointer := range record.Pointers {
		i, pointer := i, pointer
		store, ok := multiplexer.stores[pointer.Store]

		if !ok {
			logger.Warn("record points at unknown store", zap.String("key", key), zap.String("store", pointer.Store))

			continue
		}

		g.Go(func() error {
			value, err := store.Get(ctx, pointer.Key)

			if IsNotFound(err) {
				return nil
			} else if err != nil {
				return wrapError(fmt.Sprintf("could not read copy from store %q", pointer.Store), err)
			}

			values[i] = value
			found[i] = true

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	present := [][]byte{}
	missing := []*multiplexpb.Pointer{}

	for i, pointer := range record.Pointers {
		if found[i] {
			present = append(present, values[i])
		} else if _, ok := multiplexer.stores[pointer.Store]; ok {
			missing = append(missing, pointer)
		}
	}

	if len(present) == 0 {
		return nil, kv.ErrNotFound
	}

	ranked := Rank(present)
	majority := ranked[0]

	if len(ranked) > 1 {
		logger.Warn("copies disagree", zap.String("key", key), zap.Int("distinct", len(ranked)))
		multiplexer.metrics.collisions.Inc()

		if err := multiplexer.split(ctx, logger, key, ranked[1:]); err != nil {
			return nil, err
		}
	}

	for _, pointer := range missing {
		if err := multiplexer.stores[pointer.Store].Put(ctx, pointer.Key, majority); err != nil {
			return nil, wrapError(fmt.Sprintf("could not repair copy in store %q", pointer.Store), err)
		}

		multiplexer.metrics.repairs.Inc()
		logger.Info("repaired missing copy", zap.String("key", key), zap.String("store", pointer.Store), zap.Binary("physical_key", pointer.Key))
	}

	return majority, nil
}

// split posts each minority value as a new record
func (multiplexer *Multiplexer) split(ctx context.Context, logger *zap.Logger, key string, minorities [][]byte) error {
	var g errgroup.Group

	for _, value := range minorities {
		value := value

		g.Go(func() error {
			newKey, err := multiplexer.post(ctx, logger, value)

			if err != nil {
				return err
			}

			logger.Warn("moved diverging copy to new key", zap.String("key", key), zap.String("new_key", newKey))

			return nil
		})
	}

	return g.Wait()
}

func (multiplexer *Multiplexer) put(ctx context.Context, logger *zap.Logger, key string, value []byte) error {
	if err := kv.CheckPut([]byte(key), value); err != nil {
		return err
	}

	labels := multiplexer.router(value)

	if len(labels) == 0 {
		return ErrNoRoute
	}

	for _, label := range labels {
		if _, ok := multiplexer.stores[label]; !ok {
			return pkg_errors.Wrapf(ErrUnknownStore, "router returned %q", label)
		}
	}

	var prior *multiplexpb.PointerRecord
	var g errgroup.Group
	pointers := make([]*multiplexpb.Pointer, len(labels))

	g.Go(func() error {
		record, err := multiplexer.index.Get(ctx, key)

		if err != nil && !IsNotFound(err) {
			logger.Warn("could not read prior record", zap.String("key", key), zap.Error(err))
		}

		prior = record

		return nil
	})

	for i, label := range labels {
		i, label := i, label
		store := multiplexer.stores[label]

		g.Go(func() error {
			physicalKey, err := store.Post(ctx, value)

			if err != nil {
				return wrapError(fmt.Sprintf("could not write copy to store %q", label), err)
			}

			pointers[i] = &multiplexpb.Pointer{Store: label, Key: physicalKey}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	record := &multiplexpb.PointerRecord{Pointers: pointers}

	if err := multiplexer.index.Put(ctx, key, record); err != nil {
		return err
	}

	if prior != nil {
		for _, pointer := range prior.Pointers {
			if !record.Contains(pointer.Store, pointer.Key) {
				multiplexer.metrics.orphanedCopies.Inc()
			}
		}
	}

	return nil
}

func (multiplexer *Multiplexer) delete(ctx context.Context, logger *zap.Logger, key string) error {
	record, err := multiplexer.index.Get(ctx, key)

	if IsNotFound(err) {
		return nil
	} else if err != nil {
		return err
	}

	var g errgroup.Group

	for _, pointer := range record.Pointers {
		pointer := pointer
		store, ok := multiplexer.stores[pointer.Store]

		if !ok {
			logger.Warn("record points at unknown store", zap.String("key", key), zap.String("store", pointer.Store))

			continue
		}

		g.Go(func() error {
			if err := store.Delete(ctx, pointer.Key); err != nil && !IsNotFound(err) {
				return wrapError(fmt.Sprintf("could not delete copy from store %q", pointer.Store), err)
			}

			return nil
		})
	}

	g.Go(func() error {
		if err := multiplexer.index.Delete(ctx, key); err != nil && !IsNotFound(err) {
			return err
		}

		return nil
	})

	return g.Wait()
}

func (multiplexer *Multiplexer) post(ctx context.Context, logger *zap.Logger, value []byte) (string, error) {
	key, err := uuid.UUID()

	if err != nil {
		return "", pkg_errors.Wrap(err, "could not generate key")
	}

	if err := multiplexer.put(ctx, logger, key, value); err != nil {
		return "", err
	}

	return key, nil
}
