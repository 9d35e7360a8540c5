package stream_test

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kvmux/utils/stream"
	"go.uber.org/zap"
)

func ints(n int) stream.Stream {
	return &randomIntStream{n: n}
}

type randomIntStream struct {
	n int
	v int
}

func (stream *randomIntStream) Next() bool {
	if stream.n > 0 {
		stream.n--
		stream.v = rand.Int() - rand.Int()

		return true
	}

	return false
}

func (stream *randomIntStream) Value() interface{} {
	return stream.v
}

func (stream *randomIntStream) Error() error {
	return nil
}

type sliceStream struct {
	values []int
	value  int
	err    error
	closed bool
}

func (stream *sliceStream) Next() bool {
	if len(stream.values) == 0 {
		return false
	}

	stream.value = stream.values[0]
	stream.values = stream.values[1:]

	return true
}

func (stream *sliceStream) Value() interface{} {
	return stream.value
}

func (stream *sliceStream) Error() error {
	if len(stream.values) == 0 {
		return stream.err
	}

	return nil
}

func (stream *sliceStream) Close() error {
	stream.closed = true

	return nil
}

func record(record *[]int) stream.Processor {
	*record = []int{}

	return func(stream stream.Stream) stream.Stream {
		return &streamRecorder{stream, record}
	}
}

type streamRecorder struct {
	stream.Stream
	record *[]int
}

func (stream *streamRecorder) Next() bool {
	if !stream.Stream.Next() {
		return false
	}

	*stream.record = append(*stream.record, stream.Value().(int))

	return true
}

func Filter(ints []int, filter func(a interface{}) bool) []int {
	filteredInts := []int{}

	for _, i := range ints {
		if filter(i) {
			filteredInts = append(filteredInts, i)
		}
	}

	return filteredInts
}

func Limit(ints []int, limit int) []int {
	if limit <= 0 || limit > len(ints) {
		return ints
	}

	return ints[:limit]
}

func TestStream(t *testing.T) {
	positive := func(a interface{}) bool { return a.(int) > 0 }
	limit := 10

	input := []int{}
	output := []int{}

	if err := stream.Drain(stream.Pipeline(ints(1000), record(&input), stream.Filter(positive), stream.Limit(limit), record(&output))); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(Limit(Filter(input, positive), limit), output); diff != "" {
		t.Fatalf(diff)
	}

	if err := stream.Drain(stream.Pipeline(ints(1000), record(&input), stream.Filter(positive), stream.Limit(0), stream.Log(zap.NewNop()), record(&output))); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(Filter(input, positive), output); diff != "" {
		t.Fatalf(diff)
	}
}

func TestMap(t *testing.T) {
	double := stream.Map(func(value interface{}) (interface{}, bool, error) {
		if value.(int)%3 == 0 {
			return nil, false, nil
		}

		return value.(int) * 2, true, nil
	})

	values, err := stream.Collect(stream.Pipeline(&sliceStream{values: []int{1, 2, 3, 4, 5, 6}}, double))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff([]interface{}{2, 4, 8, 10}, values); diff != "" {
		t.Fatalf(diff)
	}
}

func TestMapError(t *testing.T) {
	failure := errors.New("failure")
	failing := stream.Map(func(value interface{}) (interface{}, bool, error) {
		if value.(int) == 3 {
			return nil, false, failure
		}

		return value, true, nil
	})

	values, err := stream.Collect(stream.Pipeline(&sliceStream{values: []int{1, 2, 3, 4}}, failing))

	if err != failure {
		t.Fatalf("expected err to be %#v, got %#v", failure, err)
	}

	if diff := cmp.Diff([]interface{}{1, 2}, values); diff != "" {
		t.Fatalf(diff)
	}
}

func TestMerge(t *testing.T) {
	a := &sliceStream{values: []int{1, 2, 3, 4}}
	b := &sliceStream{values: []int{10, 20, 30}}
	merged := stream.Merge(a, b)
	defer merged.Close()

	values, err := stream.Collect(merged)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	fromA := []int{}
	fromB := []int{}

	for _, value := range values {
		if value.(int) < 10 {
			fromA = append(fromA, value.(int))
		} else {
			fromB = append(fromB, value.(int))
		}
	}

	// per source order is preserved
	if diff := cmp.Diff([]int{1, 2, 3, 4}, fromA); diff != "" {
		t.Fatalf(diff)
	}

	if diff := cmp.Diff([]int{10, 20, 30}, fromB); diff != "" {
		t.Fatalf(diff)
	}

	all := append(fromA, fromB...)
	sort.Ints(all)

	if diff := cmp.Diff([]int{1, 2, 3, 4, 10, 20, 30}, all); diff != "" {
		t.Fatalf(diff)
	}
}

func TestMergeError(t *testing.T) {
	failure := errors.New("failure")
	merged := stream.Merge(&sliceStream{values: []int{1}, err: failure})

	if err := stream.Drain(merged); err != failure {
		t.Fatalf("expected err to be %#v, got %#v", failure, err)
	}
}

func TestClose(t *testing.T) {
	source := &sliceStream{values: []int{1, 2}}
	derived := stream.Pipeline(source, stream.Filter(func(interface{}) bool { return true }), stream.Log(zap.NewNop()))

	if err := stream.Close(derived); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if !source.closed {
		t.Fatalf("expected source to be closed")
	}
}
