package marshaled_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kvmux/storage/kv"
	"github.com/jrife/kvmux/storage/kv/keys"
	"github.com/jrife/kvmux/storage/kv/marshaled"
	"github.com/jrife/kvmux/storage/kv/plugins/memory"
	"github.com/jrife/kvmux/utils/stream"
)

type number int

func (n number) Marshal() ([]byte, error) {
	return []byte(strconv.Itoa(int(n))), nil
}

func unmarshalNumber(data []byte) (interface{}, error) {
	n, err := strconv.Atoi(string(data))

	if err != nil {
		return nil, err
	}

	return number(n), nil
}

func numbers(store kv.Store) *marshaled.Map {
	return &marshaled.Map{Store: store, Unmarshal: unmarshalNumber}
}

func TestMap(t *testing.T) {
	ctx := context.Background()
	m := numbers(memory.New())

	if err := m.Put(ctx, []byte("a"), number(1)); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := m.Put(ctx, []byte("b"), number(2)); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	value, err := m.Get(ctx, []byte("b"))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if value != number(2) {
		t.Fatalf("expected 2, got %#v", value)
	}

	if err := m.Delete(ctx, []byte("b")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := m.Get(ctx, []byte("b")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected err to be %#v, got %#v", kv.ErrNotFound, err)
	}
}

func TestIterator(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := numbers(store)

	for i, key := range []string{"a", "b", "c"} {
		if err := m.Put(ctx, []byte(key), number(i)); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}
	}

	iter, err := m.Keys(ctx, keys.All(), kv.SortOrderAsc)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	values, err := stream.Collect(marshaled.Stream(iter))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	result := []number{}

	for _, value := range values {
		result = append(result, value.(marshaled.KV).Value().(number))
	}

	if diff := cmp.Diff([]number{0, 1, 2}, result); diff != "" {
		t.Fatalf(diff)
	}

	// a corrupt value stops iteration with an error
	if err := store.Put(ctx, []byte("b"), []byte("not a number")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	iter, err = m.Keys(ctx, keys.All(), kv.SortOrderAsc)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	values, err = stream.Collect(marshaled.Stream(iter))

	if err == nil {
		t.Fatalf("expected an unmarshal error")
	}

	if len(values) != 1 {
		t.Fatalf("expected 1 value before the error, got %d", len(values))
	}
}
