package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the variable that replaces every computed pool size.
const EnvOverride = "MEDIA_WORKERS"

// Workers per available CPU.
const (
	perCPUBound = 1.0
	perIOBound  = 2.0
)

// Count sizes a pool at perCPU workers for each CPU the process may use.
// GOMAXPROCS follows the container CPU limit, so containers are sized by
// their quota rather than the host. The result is at least one and never
// above limit; a limit of 0 means no cap. A positive MEDIA_WORKERS replaces
// the computed size but is still capped.
func Count(perCPU float64, limit int) int {
	n, ok := override()
	if !ok {
		n = max(1, int(float64(runtime.GOMAXPROCS(0))*perCPU))
	}
	if limit > 0 {
		n = min(n, limit)
	}
	return n
}

func override() (int, bool) {
	n, err := strconv.Atoi(os.Getenv(EnvOverride))
	return n, err == nil && n > 0
}

// ForCPU sizes pools that decode or probe media: one worker per CPU.
func ForCPU(limit int) int {
	return Count(perCPUBound, limit)
}

// ForIO sizes pools that mostly wait on the filesystem: two per CPU.
func ForIO(limit int) int {
	return Count(perIOBound, limit)
}
