package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "exact")).Debug(context.Background(), "search finished",
		Int("allocated", 3),
		Err(errors.New("none")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "search finished" || rec["component"] != "exact" || rec["allocated"] != float64(3) || rec["error"] != "none" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("level filtering failed, output %q", out)
	}
}

func TestRunLoggerReusesRunID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	if id == "" {
		t.Fatalf("EnsureRunID returned empty id")
	}
	ctx2, id2 := EnsureRunID(ctx)
	if id2 != id || RunIDFromContext(ctx2) != id {
		t.Fatalf("EnsureRunID should keep existing id %q, got %q", id, id2)
	}

	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})
	ctx3, l := WithRunLogger(ctx, base)
	FromContext(ContextWithLogger(ctx3, l)).Info(ctx3, "hello")
	if !strings.Contains(buf.String(), id) {
		t.Fatalf("run logger output %q missing run id %q", buf.String(), id)
	}
}

func TestFromContextDefaultsToNoop(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("FromContext returned nil")
	}
	var nilCtx context.Context
	FromContext(nilCtx).Error(context.Background(), "dropped")
}

func TestFromContextOrUsesFallback(t *testing.T) {
	var buf bytes.Buffer
	def := New(Config{Level: "info", Format: "json", Output: &buf})

	FromContextOr(context.Background(), def).Info(context.Background(), "fallback used")
	if !strings.Contains(buf.String(), "fallback used") {
		t.Fatalf("fallback logger not used: %q", buf.String())
	}

	buf.Reset()
	ctx := ContextWithLogger(context.Background(), Noop())
	FromContextOr(ctx, def).Info(ctx, "should be dropped")
	if buf.Len() != 0 {
		t.Fatalf("context logger should win over fallback, got %q", buf.String())
	}
}
