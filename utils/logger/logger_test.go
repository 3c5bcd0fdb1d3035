package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger("Test", "WARN", &buf)
	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("output contains filtered lines: %q", out)
	}
	if !strings.Contains(out, "[WARN][Test] warn 3") {
		t.Errorf("output = %q, want warn line", out)
	}
	if !strings.Contains(out, "[ERROR][Test] error 4") {
		t.Errorf("output = %q, want error line", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" ERROR ", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDefaultWriter(t *testing.T) {
	var buf bytes.Buffer
	SetDefaultWriter(&buf)
	defer SetDefaultWriter(nil)

	NewLogger("Default", "INFO", nil).Infof("hello")
	if !strings.Contains(buf.String(), "[INFO][Default] hello") {
		t.Errorf("output = %q, want default writer to receive line", buf.String())
	}
}
