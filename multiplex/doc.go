// Package multiplex presents a set of independent key-value
// stores as one logical store.
//
// A router picks the stores that receive a copy of each value.
// A pointer index, itself a kv.Store, maps every logical key to
// a record of (store label, physical key) pointers, one for each
// copy. Writes fan out to the chosen stores and then replace the
// record. Reads fetch every copy, return the value held by most
// copies, rewrite copies that have gone missing and move copies
// that disagree with the majority to new logical keys.
//
// There are no transactions. A write that fails part way leaves
// the copies it already wrote in place and copies that are no
// longer referenced by any record are never reclaimed.
//
// Changes merges the change events of the index and of the
// backing stores into one feed of logical changes. Direct writes
// to a backing store are attributed to logical keys with a
// Resolver and folded back into the index.
package multiplex
