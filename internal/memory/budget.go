package memory

import (
	"github.com/shirou/gopsutil/v3/mem"

	"media-editor/internal/logging"
)

// Frame cache budget bounds when derived from system memory.
const (
	MinFrameCacheBytes int64 = 128 << 20
	MaxFrameCacheBytes int64 = 1 << 30
	// frameCacheShare is the fraction of total RAM given to scrub frames.
	frameCacheShare = 16
)

// totalMemory is replaced in tests.
var totalMemory = func() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return vm.Total, nil
}

// FrameCacheBudget returns the byte budget for the rolling scrub cache. A
// positive override is used as is. Otherwise the budget is 1/16 of system
// memory clamped to [128 MiB, 1 GiB], or the minimum when system memory
// cannot be read.
func FrameCacheBudget(override int64) int64 {
	if override > 0 {
		return override
	}
	total, err := totalMemory()
	if err != nil {
		logging.Warn("Cannot read system memory, using %s frame cache: %v", FormatBytes(MinFrameCacheBytes), err)
		return MinFrameCacheBytes
	}
	budget := int64(total / frameCacheShare)
	budget = max(MinFrameCacheBytes, min(budget, MaxFrameCacheBytes))
	logging.Debug("Frame cache budget %s (system memory %s)", FormatBytes(budget), FormatBytes(int64(total)))
	return budget
}
