package memory

import (
	"runtime/debug"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("Expected MemoryLimitBytes to be 0, got %d", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark != 0.7 || cfg.CriticalWaterMark != 0.85 {
		t.Errorf("Expected marks 0.7/0.85, got %v/%v", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected CheckInterval to be 5s, got %v", cfg.CheckInterval)
	}
}

func restoreMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		limit      string
		ratio      string
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{"nothing set", "", "", "none", 0, 0},
		{"container limit with default ratio", "1000000000", "", "MEMORY_LIMIT", 850000000, DefaultMemoryRatio},
		{"custom ratio", "1000000000", "0.5", "MEMORY_LIMIT", 500000000, 0.5},
		{"ratio out of range falls back", "1000000000", "1.5", "MEMORY_LIMIT", 850000000, DefaultMemoryRatio},
		{"unparseable ratio falls back", "1000000000", "half", "MEMORY_LIMIT", 850000000, DefaultMemoryRatio},
		{"unparseable limit", "lots", "", "none", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreMemoryLimit(t)
			t.Setenv("GOMEMLIMIT", "")
			t.Setenv("MEMORY_LIMIT", tt.limit)
			t.Setenv("MEMORY_RATIO", tt.ratio)

			got := ConfigureFromEnv()
			if got.Source != tt.wantSource {
				t.Errorf("Expected source %q, got %q", tt.wantSource, got.Source)
			}
			if got.GoMemLimit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, got.GoMemLimit)
			}
			if got.Ratio != tt.wantRatio {
				t.Errorf("Expected ratio %v, got %v", tt.wantRatio, got.Ratio)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{128 << 20, "128.0 MiB"},
		{1 << 30, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
