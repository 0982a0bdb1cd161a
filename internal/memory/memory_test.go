package memory

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestMonitor(limit int64, alloc *uint64) *Monitor {
	m := NewMonitor(Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     time.Hour,
	})
	m.sample = func() uint64 { return *alloc }
	return m
}

func TestMonitorWaterMarks(t *testing.T) {
	alloc := uint64(10)
	m := newTestMonitor(100, &alloc)

	m.Check()
	if m.ShouldThrottle() || m.IsPaused() {
		t.Error("Expected no pressure at 10%")
	}

	alloc = 75
	m.Check()
	if !m.ShouldThrottle() {
		t.Error("Expected throttle at 75%")
	}
	if m.IsPaused() {
		t.Error("Expected no pause below the critical mark")
	}

	alloc = 90
	m.Check()
	if !m.IsPaused() {
		t.Error("Expected pause at 90%")
	}

	// Between the marks the pause holds (hysteresis).
	alloc = 80
	m.Check()
	if !m.IsPaused() {
		t.Error("Expected pause to hold at 80%")
	}

	alloc = 50
	m.Check()
	if m.IsPaused() || m.ShouldThrottle() {
		t.Error("Expected recovery at 50%")
	}
}

func TestWaitIfPausedReleasedOnRecovery(t *testing.T) {
	alloc := uint64(90)
	m := newTestMonitor(100, &alloc)
	m.Check()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()

	time.Sleep(10 * time.Millisecond)
	alloc = 10
	m.Check()

	select {
	case ok := <-done:
		if !ok {
			t.Error("Expected WaitIfPaused to return true on recovery")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return")
	}
}

func TestWaitIfPausedReleasedOnStop(t *testing.T) {
	alloc := uint64(90)
	m := newTestMonitor(100, &alloc)
	m.Check()

	done := make(chan bool, 1)
	go func() { done <- m.WaitIfPaused() }()
	m.Stop()
	m.Stop()

	select {
	case ok := <-done:
		if ok {
			t.Error("Expected WaitIfPaused to return false after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return")
	}
}

func TestOnThrottleListeners(t *testing.T) {
	alloc := uint64(10)
	m := newTestMonitor(100, &alloc)

	var mu sync.Mutex
	var calls []bool
	m.OnThrottle(func(throttle bool) {
		mu.Lock()
		calls = append(calls, throttle)
		mu.Unlock()
	})

	m.Check() // calm: no call
	alloc = 75
	m.Check() // true
	m.Check() // true again
	alloc = 20
	m.Check() // false once
	m.Check() // calm: no call

	want := []bool{true, true, false}
	if len(calls) != len(want) {
		t.Fatalf("Expected %v, got %v", want, calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d: expected %v, got %v", i, want[i], calls[i])
		}
	}
}

func TestMonitorWithNoLimit(t *testing.T) {
	alloc := uint64(1 << 40)
	m := newTestMonitor(0, &alloc)
	if m.limit != 0 {
		t.Skip("GOMEMLIMIT is set in this environment")
	}
	m.Check()
	if m.ShouldThrottle() || m.IsPaused() {
		t.Error("Expected no backpressure without a limit")
	}
	if !m.WaitIfPaused() {
		t.Error("Expected WaitIfPaused to return immediately")
	}
}

func TestGetStats(t *testing.T) {
	alloc := uint64(25)
	m := newTestMonitor(100, &alloc)
	m.Check()
	current, limit, usage := m.GetStats()
	if current != 25 || limit != 100 || usage != 0.25 {
		t.Errorf("Expected 25/100/0.25, got %d/%d/%v", current, limit, usage)
	}
}

// =============================================================================
// Frame cache budget
// =============================================================================

func TestFrameCacheBudget(t *testing.T) {
	orig := totalMemory
	t.Cleanup(func() { totalMemory = orig })

	tests := []struct {
		name     string
		override int64
		total    uint64
		err      error
		want     int64
	}{
		{"override wins", 64 << 20, 64 << 30, nil, 64 << 20},
		{"sixteenth of 8 GiB", 0, 8 << 30, nil, 512 << 20},
		{"clamped to minimum", 0, 1 << 30, nil, MinFrameCacheBytes},
		{"clamped to maximum", 0, 64 << 30, nil, MaxFrameCacheBytes},
		{"read error uses minimum", 0, 0, errors.New("no /proc"), MinFrameCacheBytes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totalMemory = func() (uint64, error) { return tt.total, tt.err }
			if got := FrameCacheBudget(tt.override); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestFrameCacheBudgetFromSystem(t *testing.T) {
	got := FrameCacheBudget(0)
	if got < MinFrameCacheBytes || got > MaxFrameCacheBytes {
		t.Errorf("Expected budget within bounds, got %d", got)
	}
}
