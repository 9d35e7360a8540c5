package log_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/kvmux/utils/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := log.WithFields(context.Background(), zap.String("request", "abc"))
	ctx = log.WithFields(ctx, zap.Int("attempt", 1))

	log.WithContext(ctx, zap.New(core)).Debug("hello")

	entries := logs.AllUntimed()

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	if diff := cmp.Diff(map[string]interface{}{"request": "abc", "attempt": int64(1)}, entries[0].ContextMap()); diff != "" {
		t.Fatalf(diff)
	}
}

func TestLoggerFromContext(t *testing.T) {
	defaultLogger := zap.NewNop()
	logger, ctx := log.LoggerFromContext(context.Background(), defaultLogger)

	if logger != defaultLogger {
		t.Fatalf("expected default logger")
	}

	if log.Logger(ctx) != defaultLogger {
		t.Fatalf("expected default logger to be attached to the context")
	}
}

func TestNew(t *testing.T) {
	if _, err := log.New("debug", true); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, err := log.New("loud", false); err == nil {
		t.Fatalf("expected an error for an unknown level")
	}
}
