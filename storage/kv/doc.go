// Package kv defines the key-value capability that every
// backing store used by the multiplexer must provide, along
// with the change events stores publish when they are
// mutated.
//
// A kv plugin is a factory for stores. Every store is a flat,
// ordered map from byte keys to byte values:
//
//	Store
//	  key1: abc
//	  key2: def
//
// Beyond Get, Put and Delete a store must be able to insert a
// value under a key of its own choosing (Post) and iterate a
// range of keys in either direction (Keys). Optional
// capabilities are discovered with type assertions:
//
//   - Opener: the store must be opened before use
//   - io.Closer: the store holds resources that must be released
//   - Observable: the store publishes a Change for each mutation
//   - Batcher: the store can apply several operations atomically
//
// Changes carry the origin found in the context of the call
// that caused them (see WithOrigin). Consumers that both write
// to a store and watch its changes use origins to recognize
// their own writes.
package kv
