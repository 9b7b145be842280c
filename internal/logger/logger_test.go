package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestSlogBridge_CarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Service: "geosync"}, &buf)
	l := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithSyncID(ctx, "sync-1")
	ctx = WithComponent(ctx, "sync")
	ctx = WithLayer(ctx, "roads")
	l.InfoContext(ctx, "geoserver sync ok", "feature_id", int64(7))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	want := map[string]any{
		"request_id": "req-1", "sync_id": "sync-1", "component": "sync",
		"layer": "roads", "service": "geosync", "msg": "geoserver sync ok", "level": "info",
	}
	for k, v := range want {
		if line[k] != v {
			t.Fatalf("%s=%v want %v (line=%v)", k, line[k], v, line)
		}
	}
	if line["feature_id"] != float64(7) {
		t.Fatalf("feature_id=%v", line["feature_id"])
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	v, _ := ctx.Value(ctxReqIDKey).(string)
	if len(v) != 16 {
		t.Fatalf("generated id=%q want 16 hex chars", v)
	}
	if WithSyncID(ctx, "") != ctx {
		t.Fatal("empty sync id should not wrap the context")
	}
}

func TestSlogBridge_GroupsErrorsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	l := NewSlog(&zl)

	l.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %s", buf.String())
	}
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled")
	}

	l.WithGroup("sync").Warn("geoserver sync failed",
		"err", errors.New("boom"),
		"elapsed", 1500*time.Millisecond,
		slog.Group("remote", "status_code", 500))

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if line["level"] != "warn" || line["sync.err"] != "boom" {
		t.Fatalf("line=%v", line)
	}
	if line["sync.remote.status_code"] != float64(500) {
		t.Fatalf("nested group not flattened: %v", line)
	}
	if _, ok := line["sync.elapsed"]; !ok {
		t.Fatalf("duration missing: %v", line)
	}
}
