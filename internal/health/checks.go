package health

import (
	"context"
	"runtime"
)

// DatabaseCheck is unhealthy when ping fails.
func DatabaseCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) CheckResult {
		if err := ping(ctx); err != nil {
			return CheckResult{Status: StatusUnhealthy, Message: "database unreachable", Error: err.Error()}
		}
		return CheckResult{Status: StatusHealthy, Message: "database ok"}
	}
}

// DiskSpaceCheck degrades when the filesystem holding path has less than
// minFree bytes available.
func DiskSpaceCheck(path string, minFree uint64) Check {
	return func(ctx context.Context) CheckResult {
		details := map[string]interface{}{"path": path, "min_free_bytes": minFree}
		free, err := freeBytes(path)
		if err != nil {
			return CheckResult{Status: StatusUnknown, Message: "disk space unavailable", Error: err.Error(), Details: details}
		}
		details["free_bytes"] = free
		if free < minFree {
			return CheckResult{Status: StatusDegraded, Message: "low disk space", Details: details}
		}
		return CheckResult{Status: StatusHealthy, Message: "disk space ok", Details: details}
	}
}

// MemoryCheck degrades when the Go heap exceeds maxHeap bytes. Zero
// disables the limit.
func MemoryCheck(maxHeap uint64) Check {
	return func(ctx context.Context) CheckResult {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		details := map[string]interface{}{
			"heap_alloc":     m.HeapAlloc,
			"max_heap_bytes": maxHeap,
			"num_gc":         m.NumGC,
			"goroutines":     runtime.NumGoroutine(),
		}
		if maxHeap > 0 && m.HeapAlloc > maxHeap {
			return CheckResult{Status: StatusDegraded, Message: "heap above limit", Details: details}
		}
		return CheckResult{Status: StatusHealthy, Message: "memory ok", Details: details}
	}
}
