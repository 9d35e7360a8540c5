package keys_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kvmux/storage/kv/keys"
)

func TestInc(t *testing.T) {
	testCases := map[string]struct {
		key    keys.Key
		result keys.Key
	}{
		"simple":   {key: keys.Key{0x04, 0x01}, result: keys.Key{0x04, 0x02}},
		"carry":    {key: keys.Key{0x04, 0xff}, result: keys.Key{0x05, 0x00}},
		"overflow": {key: keys.Key{0xff, 0xff}, result: nil},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			original := append(keys.Key{}, testCase.key...)

			if diff := cmp.Diff(testCase.result, keys.Inc(testCase.key)); diff != "" {
				t.Fatalf(diff)
			}

			if diff := cmp.Diff(original, testCase.key); diff != "" {
				t.Fatalf("Inc mutated its argument: %s", diff)
			}
		})
	}
}

func TestUint64Key(t *testing.T) {
	a := keys.Uint64ToKey(255)
	b := keys.Uint64ToKey(256)

	if keys.Compare(a, b) >= 0 {
		t.Fatalf("expected %v < %v", a, b)
	}

	if keys.KeyToUint64(b) != 256 {
		t.Fatalf("expected 256, got %d", keys.KeyToUint64(b))
	}
}

func TestRange(t *testing.T) {
	testCases := map[string]struct {
		keys     keys.Range
		contains []string
		excludes []string
	}{
		"all": {
			keys:     keys.All(),
			contains: []string{"a", "zzz"},
		},
		"gt": {
			keys:     keys.All().Gt([]byte("b")),
			contains: []string{"b\x00", "c"},
			excludes: []string{"a", "b"},
		},
		"gte-lt": {
			keys:     keys.All().Gte([]byte("b")).Lt([]byte("d")),
			contains: []string{"b", "c", "cz"},
			excludes: []string{"a", "d", "e"},
		},
		"lte": {
			keys:     keys.All().Lte([]byte("b")),
			contains: []string{"a", "b"},
			excludes: []string{"b\x00", "c"},
		},
		"eq": {
			keys:     keys.All().Eq([]byte("b")),
			contains: []string{"b"},
			excludes: []string{"a", "ba", "c"},
		},
		"prefix": {
			keys:     keys.All().Prefix([]byte("bb")),
			contains: []string{"bb", "bba", "bbz"},
			excludes: []string{"b", "ba", "bc"},
		},
		"refine-keeps-tightest": {
			keys:     keys.All().Gte([]byte("c")).Gte([]byte("a")).Lt([]byte("e")).Lt([]byte("f")),
			contains: []string{"c", "d"},
			excludes: []string{"b", "e"},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			for _, k := range testCase.contains {
				if !testCase.keys.Contains([]byte(k)) {
					t.Errorf("expected range to contain %q", k)
				}
			}

			for _, k := range testCase.excludes {
				if testCase.keys.Contains([]byte(k)) {
					t.Errorf("expected range to exclude %q", k)
				}
			}
		})
	}
}

func TestRangeEmpty(t *testing.T) {
	if keys.All().Empty() {
		t.Fatalf("expected All() to not be empty")
	}

	if !keys.All().Gte([]byte("b")).Lt([]byte("a")).Empty() {
		t.Fatalf("expected inverted range to be empty")
	}
}
