package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSlogJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.With(String("component", "dataset")).Info(context.Background(), "loaded", Int("rows", 3))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "loaded" || entry["component"] != "dataset" || entry["rows"] != float64(3) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestSlogLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn not logged: %q", buf.String())
	}
}

func TestZapBackendWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Backend: "zap", Output: &buf})

	log.With(String("session_id", "s1")).Debug(context.Background(), "frame", Err(errors.New("boom")))
	if err := Sync(log); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "frame" || entry["session_id"] != "s1" || entry["error"] != "boom" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestZapLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewZap(Config{Level: "error", Output: &buf})
	log.Warn(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("warn logged at error level: %q", buf.String())
	}
}

func TestEnsureRequestIDIsStable(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if id == "" {
		t.Fatalf("expected generated request id")
	}
	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id || RequestIDFromContext(ctx2) != id {
		t.Fatalf("request id changed: %q -> %q", id, id2)
	}
}

func TestSessionLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, log := WithSessionLogger(context.Background(), base, "abc")
	if got := SessionIDFromContext(ctx); got != "abc" {
		t.Fatalf("SessionIDFromContext = %q, want abc", got)
	}
	log.Info(ctx, "event")
	if !strings.Contains(buf.String(), `"session_id":"abc"`) {
		t.Fatalf("session id not logged: %q", buf.String())
	}
}

func TestFromContextFallback(t *testing.T) {
	fallback := Noop()
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("expected fallback logger")
	}
	stored := New(Config{Output: &bytes.Buffer{}})
	ctx := ContextWithLogger(context.Background(), stored)
	if got := FromContext(ctx, fallback); got != stored {
		t.Fatalf("expected context logger")
	}
}
