package multiplex

import (
	"errors"

	"github.com/jrife/kvmux/storage/kv"
	pkg_errors "github.com/pkg/errors"
)

var (
	// ErrInvalidConfig is returned by New when the
	// configuration cannot produce a working multiplexer
	ErrInvalidConfig = errors.New("invalid config")
	// ErrNoRoute is returned by Put when the router
	// returns no store labels for a value
	ErrNoRoute = errors.New("router returned no stores")
	// ErrUnknownStore is returned by Put when the router
	// returns a label that is not configured
	ErrUnknownStore = errors.New("unknown store")
	// ErrUnrecognizedOperation ends a change stream when a
	// store publishes an operation of unknown type
	ErrUnrecognizedOperation = errors.New("unrecognized operation")
)

// IsNotFound returns true if err indicates a missing key
func IsNotFound(err error) bool {
	return errors.Is(err, kv.ErrNotFound)
}

// wrapError adds context to err. Sentinel errors that
// callers compare against stay reachable with errors.Is.
func wrapError(wrap string, err error) error {
	switch err {
	case kv.ErrNotFound:
		fallthrough
	case kv.ErrClosed:
		fallthrough
	case nil:
		return err
	}

	return pkg_errors.Wrap(err, wrap)
}
