package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prevOut, prevFlags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	})
	return &buf
}

func TestLogLevelConstants(t *testing.T) {
	levels := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}
	for i := 0; i < len(levels)-1; i++ {
		if levels[i] >= levels[i+1] {
			t.Errorf("Log levels should be in ascending order: %v >= %v", levels[i], levels[i+1])
		}
	}
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{LogLevel(99), "unknown(99)"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			got := tt.level.String()
			if got != tt.expected {
				t.Errorf("LogLevel.String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorAlwaysPrinted(t *testing.T) {
	buf := captureLog(t)
	Error("decode failed: %s", "eof")
	if !strings.Contains(buf.String(), "[ERROR] decode failed: eof") {
		t.Errorf("Expected error line, got %q", buf.String())
	}
}

func TestDebugRespectsLevel(t *testing.T) {
	buf := captureLog(t)
	Debug("trace %d", 1)
	printed := buf.Len() > 0
	if printed != IsDebugEnabled() {
		t.Errorf("Expected debug output only when debug is enabled (enabled=%v, printed=%v)", IsDebugEnabled(), printed)
	}
}

// =============================================================================
// Component loggers
// =============================================================================

func TestForPrefixesComponent(t *testing.T) {
	tests := []struct {
		name string
		fn   func(l *Logger)
		want string
	}{
		{"error", func(l *Logger) { l.Error("seek to %.2f failed", 1.5) }, "[ERROR] [decoder] seek to 1.50 failed"},
		{"warn", func(l *Logger) { l.Warn("soft failure") }, "[WARN] [decoder] soft failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if GetLevel() > LevelWarn {
				t.Skip("log level suppresses warnings")
			}
			buf := captureLog(t)
			tt.fn(For("decoder"))
			if got := strings.TrimSpace(buf.String()); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLoggerComponent(t *testing.T) {
	if got := For("orchestrator").Component(); got != "orchestrator" {
		t.Errorf("Expected orchestrator, got %q", got)
	}
}

func TestPrintfAlwaysPrints(t *testing.T) {
	buf := captureLog(t)
	Printf("banner %s", "v1")
	Println("line", 2)
	out := buf.String()
	if !strings.Contains(out, "banner v1") || !strings.Contains(out, "line 2") {
		t.Errorf("Expected pass-through output, got %q", out)
	}
}
