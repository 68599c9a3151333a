package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_IdentityFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithLevel(Identity{DeviceID: "cam-01", Mode: "MQTT"}, &buf, zapcore.DebugLevel)

	l.Info("captured", map[string]any{"bytes": 14200})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["message"] != "captured" {
		t.Errorf("message = %v", e["message"])
	}
	if e["level"] != "info" {
		t.Errorf("level = %v", e["level"])
	}
	if e["device_id"] != "cam-01" {
		t.Errorf("device_id = %v", e["device_id"])
	}
	if e["mode"] != "MQTT" {
		t.Errorf("mode = %v", e["mode"])
	}
	fields, ok := e["fields"].(map[string]any)
	if !ok || fields["bytes"] != float64(14200) {
		t.Errorf("fields = %v", e["fields"])
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestLogger_ModeOmittedWhenEmpty(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithLevel(Identity{DeviceID: "cam-01"}, &buf, zapcore.DebugLevel)
	l.Warn("x", nil)

	e := decodeLines(t, &buf)[0]
	if _, ok := e["mode"]; ok {
		t.Error("mode should be omitted when empty")
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithLevel(Identity{DeviceID: "cam-01"}, &buf, zapcore.WarnLevel)

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", nil)
	l.Error("shown", nil)

	if got := len(decodeLines(t, &buf)); got != 2 {
		t.Errorf("expected 2 entries at warn level, got %d", got)
	}
}

func TestLogger_WithOutputAndWith(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLoggerWithLevel(Identity{DeviceID: "cam-01"}, &first, zapcore.DebugLevel)

	l.WithOutput(&second).With(map[string]any{"adapter": "mqtt"}).Info("connected", nil)

	if first.Len() != 0 {
		t.Error("original writer should be untouched")
	}
	e := decodeLines(t, &second)[0]
	if e["adapter"] != "mqtt" {
		t.Errorf("adapter = %v", e["adapter"])
	}
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.Debug("x", nil)
	l.Info("x", nil)
	l.Warn("x", nil)
	l.Error("x", nil)
	if l.With(map[string]any{"a": 1}) != nil {
		t.Error("With on nil should return nil")
	}
	if err := l.Sync(); err != nil {
		t.Errorf("Sync on nil: %v", err)
	}
	l.Sugar().Infof("no panic %d", 1)
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded", map[string]any{"k": "v"})
	l.Sugar().With("k", "v").Errorf("discarded %s", "too")
}
