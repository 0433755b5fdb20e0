package workers

import (
	"os"
	"runtime"
	"strconv"
)

// EnvOverride names the environment variable that fixes the worker count.
const EnvOverride = "RENDER_WORKERS"

// Count returns the number of workers for a task type. The multiplier is
// workers per available CPU (1.0 CPU-bound, 1.5 mixed). limit caps the
// result; 0 means no cap.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(EnvOverride); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}
	return workers
}

// ForCPU returns the worker count for CPU-bound work such as previews.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForMixed returns the worker count for work that also waits on disk, such
// as thumbnails.
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
