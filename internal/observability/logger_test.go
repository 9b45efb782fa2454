package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/geocoder89/accounts/internal/actorctx"
)

func TestLogger_AddsActorFromContext(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod")

	ctx := actorctx.WithUserID(context.Background(), 17)
	log.InfoContext(ctx, "user updated", "user_id", int64(17))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	if line["actor_id"] != float64(17) {
		t.Fatalf("expected actor_id=17, got %v", line["actor_id"])
	}
	if line["service"] != "accounts" {
		t.Fatalf("expected service attribute, got %v", line["service"])
	}
	if _, ok := line["trace_id"]; ok {
		t.Fatalf("trace_id must be absent without an active span")
	}
}

func TestLogger_DebugOnlyInDev(t *testing.T) {
	var prod, dev bytes.Buffer

	newLogger(&prod, "prod").Debug("hidden")
	newLogger(&dev, "dev").Debug("shown")

	if prod.Len() != 0 {
		t.Fatalf("debug logged outside dev: %s", prod.String())
	}
	if dev.Len() == 0 {
		t.Fatalf("debug not logged in dev")
	}
}
