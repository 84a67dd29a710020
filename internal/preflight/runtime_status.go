package preflight

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryStatus is a point-in-time view of host memory.
type MemoryStatus struct {
	TotalBytes     uint64
	AvailableBytes uint64
	UsedPercent    float64
}

// String renders the snapshot for logs and notifications.
func (m MemoryStatus) String() string {
	return fmt.Sprintf("%s available of %s (%.1f%% used)",
		formatBytes(m.AvailableBytes), formatBytes(m.TotalBytes), m.UsedPercent)
}

// MemorySnapshot reads current host memory figures.
func MemorySnapshot(ctx context.Context) (MemoryStatus, error) {
	stats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryStatus{}, fmt.Errorf("read memory stats: %w", err)
	}
	return MemoryStatus{
		TotalBytes:     stats.Total,
		AvailableBytes: stats.Available,
		UsedPercent:    stats.UsedPercent,
	}, nil
}

// CheckMemory reports whether at least minAvailable bytes of memory are free.
// The result is advisory.
func CheckMemory(ctx context.Context, minAvailable uint64) Result {
	const name = "Host memory"
	status, err := MemorySnapshot(ctx)
	if err != nil {
		return Result{Name: name, Advisory: true, Detail: err.Error()}
	}
	if status.AvailableBytes < minAvailable {
		return Result{Name: name, Advisory: true, Detail: status.String() + fmt.Sprintf(", below %s", formatBytes(minAvailable))}
	}
	return Result{Name: name, Passed: true, Advisory: true, Detail: status.String()}
}
