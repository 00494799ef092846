package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerFormats(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := setupLogger(&buf, "info", "json")
	logger.Debug("hidden")
	logger.Info("enrolled", "faces", 2)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json output: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "enrolled" || entry["faces"] != float64(2) {
		t.Errorf("unexpected entry: %v", entry)
	}

	buf.Reset()
	logger = setupLogger(&buf, "debug", "text")
	logger.Debug("probe", "room", "101")
	if !strings.Contains(buf.String(), "room=101") {
		t.Errorf("text output = %q", buf.String())
	}
}
