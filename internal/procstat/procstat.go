// Package procstat samples resource usage of a slot's process tree.
package procstat

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a point-in-time sample of a process and its descendants.
type Usage struct {
	PID        int
	RSSBytes   uint64
	CPUPercent float64
	NumThreads int32
	Processes  int
	// SystemMemoryPercent is host-wide memory usage, for context.
	SystemMemoryPercent float64
}

// Sample reads usage for pid and its children. Individual fields that cannot
// be read (permissions, a child exiting mid-walk) are skipped.
func Sample(ctx context.Context, pid int) (Usage, error) {
	u := Usage{PID: pid}
	if pid <= 0 {
		return u, fmt.Errorf("invalid pid %d", pid)
	}
	root, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return u, fmt.Errorf("process %d: %w", pid, err)
	}
	for _, p := range tree(ctx, root) {
		u.Processes++
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			u.RSSBytes += mi.RSS
		}
		if c, err := p.CPUPercentWithContext(ctx); err == nil {
			u.CPUPercent += c
		}
		if n, err := p.NumThreadsWithContext(ctx); err == nil {
			u.NumThreads += n
		}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		u.SystemMemoryPercent = vm.UsedPercent
	}
	return u, nil
}

func tree(ctx context.Context, root *process.Process) []*process.Process {
	out := []*process.Process{root}
	for i := 0; i < len(out) && i < 256; i++ {
		children, err := out[i].ChildrenWithContext(ctx)
		if err != nil {
			continue
		}
		out = append(out, children...)
	}
	return out
}
