package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_DefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{})

	l.Info("test message", slog.String("key", "value"))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}

	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestNew_MultipleAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{})

	l.Info("playlist created",
		slog.String("user_id", "u-123"),
		slog.Int64("playlist_id", 42),
		slog.Int("matched", 18),
		slog.Int("unmatched", 2),
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if entry["user_id"] != "u-123" {
		t.Errorf("user_id = %q, want %q", entry["user_id"], "u-123")
	}
	if entry["playlist_id"] != float64(42) {
		t.Errorf("playlist_id = %v, want 42", entry["playlist_id"])
	}
	if entry["matched"] != float64(18) || entry["unmatched"] != float64(2) {
		t.Errorf("matched/unmatched = %v/%v", entry["matched"], entry["unmatched"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"", false, true, true},
		{"WARN", false, false, true},
		{"error", false, false, false},
		{"verbose", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(&buf, Options{Level: tt.level})

			l.Debug("debug-line")
			l.Info("info-line")
			l.Warn("warn-line")

			out := buf.String()
			if got := strings.Contains(out, "debug-line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "info-line"); got != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", got, tt.wantInfo)
			}
			if got := strings.Contains(out, "warn-line"); got != tt.wantWarn {
				t.Errorf("warn logged = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Format: "text"})

	l.Info("share issued", slog.String("share_id", "abc"))

	out := buf.String()
	if !strings.Contains(out, "share issued") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "share_id") {
		t.Errorf("expected attribute key in output, got %q", out)
	}
	if json.Valid(bytes.TrimSpace(buf.Bytes())) {
		t.Errorf("text format should not emit JSON: %q", out)
	}
}

func TestNew_TextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{Format: "text", Level: "warn"})

	l.Info("hidden")
	l.Error("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("error should be logged: %q", out)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf, Options{})

	slog.Info("global message")

	if !strings.Contains(buf.String(), "global message") {
		t.Errorf("expected global logger to write to buffer, got %q", buf.String())
	}
}
