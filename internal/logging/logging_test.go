package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "text")

	logger.Info("launch ready", "port", 7860)

	output := buf.String()
	if !strings.Contains(output, "launch ready") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "port=7860") {
		t.Errorf("expected port=7860 in output, got: %s", output)
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	logger.Info("launch ready", "port", 7860)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "launch ready" {
		t.Errorf("msg = %v, want launch ready", record["msg"])
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")

	logger.Info("hidden")
	logger.Warn("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info record leaked through warn level: %s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("warn record missing: %s", output)
	}
}

func TestParseLevel_UnknownFallsBackToInfo(t *testing.T) {
	if got := parseLevel("loud"); got != slog.LevelInfo {
		t.Errorf("parseLevel(loud) = %v, want info", got)
	}
}
