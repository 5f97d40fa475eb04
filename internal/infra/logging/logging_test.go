//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWith_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "tr-1")
	ctx = WithUserID(ctx, "u-1")
	ctx = WithOrderID(ctx, "o-1")

	With(ctx, &base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	for k, want := range map[string]string{"trace_id": "tr-1", "user_id": "u-1", "order_id": "o-1"} {
		if line[k] != want {
			t.Errorf("%s = %v, want %s", k, line[k], want)
		}
	}
	if TraceID(ctx) != "tr-1" {
		t.Errorf("TraceID = %q", TraceID(ctx))
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("abcdefghijkl", false); got != "abcd...kl" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("short values must be fully masked, got %q", got)
	}
	if got := Redact("abcdefghijkl", true); got != "abcdefghijkl" {
		t.Errorf("dev mode must not redact, got %q", got)
	}
}
