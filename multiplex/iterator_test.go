package multiplex_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kvmux/multiplex"
	"github.com/jrife/kvmux/routing"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/utils/stream"
)

func collect(t *testing.T, mux *multiplex.Multiplexer, options multiplex.IterateOptions) []multiplex.KV {
	iter, err := mux.Iterate(context.Background(), options)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	defer iter.Close()

	kvs := []multiplex.KV{}

	for iter.Next() {
		kvs = append(kvs, multiplex.KV{Key: iter.Key(), Value: iter.Value()})
	}

	if err := iter.Error(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return kvs
}

func TestIterate(t *testing.T) {
	env := newTestEnv(t, routing.All("a", "b"), "a", "b")

	for _, key := range []string{"a", "b", "c", "d", "e"} {
		mustPut(t, env.mux, key, "value-"+key)
	}

	// lose every copy of c
	for _, pointer := range env.record(t, "c").Pointers {
		if err := env.stores[pointer.Store].Delete(context.Background(), pointer.Key); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	kvs := func(keys ...string) []multiplex.KV {
		result := []multiplex.KV{}

		for _, key := range keys {
			result = append(result, multiplex.KV{Key: key, Value: []byte("value-" + key)})
		}

		return result
	}

	testCases := map[string]struct {
		options multiplex.IterateOptions
		result  []multiplex.KV
	}{
		"all": {
			options: multiplex.IterateOptions{},
			result:  kvs("a", "b", "d", "e"),
		},
		"desc": {
			options: multiplex.IterateOptions{Order: kv.SortOrderDesc},
			result:  kvs("e", "d", "b", "a"),
		},
		"limit-counts-yielded-pairs": {
			options: multiplex.IterateOptions{Limit: 3},
			result:  kvs("a", "b", "d"),
		},
		"range": {
			options: multiplex.IterateOptions{Range: keys.All().Gte([]byte("b")).Lt([]byte("e"))},
			result:  kvs("b", "d"),
		},
		"range-desc-limit": {
			options: multiplex.IterateOptions{Range: keys.All().Gt([]byte("a")), Order: kv.SortOrderDesc, Limit: 2},
			result:  kvs("e", "d"),
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(testCase.result, collect(t, env.mux, testCase.options)); diff != "" {
				t.Fatalf(diff)
			}
		})
	}
}

func TestIterateStream(t *testing.T) {
	env := newTestEnv(t, routing.All("a"), "a")

	mustPut(t, env.mux, "x", "1")
	mustPut(t, env.mux, "y", "2")

	iter, err := env.mux.Iterate(context.Background(), multiplex.IterateOptions{})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	defer iter.Close()

	values, err := stream.Collect(iter.Stream())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	expected := []interface{}{
		multiplex.KV{Key: "x", Value: []byte("1")},
		multiplex.KV{Key: "y", Value: []byte("2")},
	}

	if diff := cmp.Diff(expected, values); diff != "" {
		t.Fatalf(diff)
	}
}
