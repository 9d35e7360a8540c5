package routing_test

import (
	"fmt"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kvmux/routing"
)

func digits() routing.Router {
	return routing.Rules([]routing.Rule{
		{Match: regexp.MustCompile("1"), Stores: []string{"1"}},
		{Match: regexp.MustCompile("2"), Stores: []string{"2"}},
		{Match: regexp.MustCompile("3"), Stores: []string{"3"}},
	}, "0")
}

func TestRules(t *testing.T) {
	testCases := map[string]struct {
		value  string
		result []string
	}{
		"hello123": {value: "hello123", result: []string{"1", "2", "3"}},
		"hi":       {value: "hi", result: []string{"0"}},
		"hi2":      {value: "hi2", result: []string{"2"}},
		"repeats":  {value: "3311", result: []string{"1", "3"}},
	}

	router := digits()

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(testCase.result, router([]byte(testCase.value))); diff != "" {
				t.Fatalf(diff)
			}
		})
	}
}

func TestAll(t *testing.T) {
	router := routing.All("a", "b")
	result := router([]byte("x"))

	if diff := cmp.Diff([]string{"a", "b"}, result); diff != "" {
		t.Fatalf(diff)
	}

	// callers may modify the result
	result[0] = "z"

	if diff := cmp.Diff([]string{"a", "b"}, router([]byte("x"))); diff != "" {
		t.Fatalf(diff)
	}
}

func TestHash(t *testing.T) {
	labels := []string{"a", "b", "c", "d"}
	router := routing.Hash(labels, 2)
	counts := map[string]int{}

	for i := 0; i < 1000; i++ {
		value := []byte(fmt.Sprintf("value-%d", i))
		result := router(value)

		if len(result) != 2 || result[0] == result[1] {
			t.Fatalf("expected 2 distinct labels, got %v", result)
		}

		if diff := cmp.Diff(result, router(value)); diff != "" {
			t.Fatalf("expected routing to be deterministic: %s", diff)
		}

		for _, label := range result {
			counts[label]++
		}
	}

	for _, label := range labels {
		if counts[label] == 0 {
			t.Fatalf("expected label %s to receive some values", label)
		}
	}

	if result := routing.Hash(labels, 10)([]byte("x")); len(result) != len(labels) {
		t.Fatalf("expected replicas to be capped at %d, got %d", len(labels), len(result))
	}
}

func TestHashStability(t *testing.T) {
	before := routing.Hash([]string{"a", "b", "c"}, 1)
	after := routing.Hash([]string{"a", "b", "c", "d"}, 1)
	moved := 0

	for i := 0; i < 1000; i++ {
		value := []byte(fmt.Sprintf("value-%d", i))
		b, a := before(value)[0], after(value)[0]

		if b != a {
			if a != "d" {
				t.Fatalf("value moved from %s to %s instead of to the new label", b, a)
			}

			moved++
		}
	}

	if moved == 0 || moved == 1000 {
		t.Fatalf("expected some but not all values to move, %d moved", moved)
	}
}
