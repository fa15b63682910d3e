package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestIDAddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithUserID(ctx, "user-1")
	WithRequestID(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["user_id"] != "user-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestWithRequestIDWithoutValues(t *testing.T) {
	base := zap.NewNop()
	if WithRequestID(context.Background(), base) != base {
		t.Fatal("expected the base logger back")
	}
	if RequestID(context.Background()) != "" {
		t.Fatal("expected empty request id")
	}
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New(Config{Level: "loud", Encoding: "console", AppName: "taskdash"})
	if err != nil {
		t.Fatal(err)
	}
	if !log.Core().Enabled(zap.InfoLevel) || log.Core().Enabled(zap.DebugLevel) {
		t.Fatal("expected info level")
	}
}
