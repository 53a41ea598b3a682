package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{" info ", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"error", LogLevelError},
		{"", LogLevelInfo},
		{"bogus", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelWarn, Format: "text", Output: &buf})

	logger.Debug("dropped debug")
	logger.Info("dropped info")
	logger.Warn("kept warn", "key", "value")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("entries below the level should be filtered: %s", out)
	}
	if !strings.Contains(out, "kept warn") || !strings.Contains(out, "key=value") {
		t.Errorf("warn entry missing or malformed: %s", out)
	}
}

func TestOrNoOp(t *testing.T) {
	if _, ok := OrNoOp(nil).(NoOpLogger); !ok {
		t.Error("nil logger should become a NoOpLogger")
	}

	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Output: &buf})
	if OrNoOp(logger) != logger {
		t.Error("non-nil logger should pass through unchanged")
	}
}
