package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"smaug.org/internal/identity"
	"smaug.org/internal/obs"
)

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected error for empty event name")
	}
}

func TestLogEventCarriesRequestAndCaller(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	restore := obs.SetLoggerForTests(zap.New(core))
	defer restore()

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = identity.ContextWithIdentity(ctx, identity.Identity{Email: "ana@example.eu"})

	if err := LogEvent(ctx, "policy.push", map[string]any{"policy_id": "p1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event"] != "policy.push" {
		t.Fatalf("unexpected event: %v", fields["event"])
	}
	if fields["request_id"] != "req-123" {
		t.Fatalf("missing request_id: %v", fields)
	}
	if fields["caller"] != "ana@example.eu" {
		t.Fatalf("missing caller: %v", fields)
	}
	if fields["event_id"] == "" {
		t.Fatal("missing event_id")
	}
}
