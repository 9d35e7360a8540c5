package multiplex_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kvmux/routing"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, routing.All("a", "b", "c"), "a", "b", "c")
	ctx := context.Background()

	mustPut(t, env.mux, "k", "v1")
	mustPut(t, env.mux, "k", "v2")

	record := env.record(t, "k")

	// one copy lost, one copy diverged
	if err := env.stores["a"].Delete(ctx, record.Pointers[0].Key); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := env.stores["c"].Put(ctx, record.Pointers[2].Key, []byte("v3")); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	// v2 and v3 tie, v2 is seen first
	if diff := cmp.Diff("v2", mustGet(t, env.mux, "k")); diff != "" {
		t.Fatalf(diff)
	}

	if _, err := env.mux.Get(ctx, "missing"); err == nil {
		t.Fatalf("expected an error")
	}

	expected := `
# HELP kvmux_collisions_total Reads whose replicas disagreed.
# TYPE kvmux_collisions_total counter
kvmux_collisions_total 1
# HELP kvmux_operations_total Logical operations by operation and result.
# TYPE kvmux_operations_total counter
kvmux_operations_total{operation="get",result="not_found"} 1
kvmux_operations_total{operation="get",result="ok"} 1
kvmux_operations_total{operation="put",result="ok"} 2
# HELP kvmux_orphaned_copies_total Physical copies left behind by overwriting puts.
# TYPE kvmux_orphaned_copies_total counter
kvmux_orphaned_copies_total 3
# HELP kvmux_repairs_total Missing physical copies rewritten by reads.
# TYPE kvmux_repairs_total counter
kvmux_repairs_total 1
`

	err := testutil.GatherAndCompare(
		env.registry,
		strings.NewReader(expected),
		"kvmux_collisions_total",
		"kvmux_operations_total",
		"kvmux_orphaned_copies_total",
		"kvmux_repairs_total",
	)

	if err != nil {
		t.Fatal(err)
	}
}
