// Package system reports host capacity used when sizing instances.
package system

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats describes host memory and the filesystem holding the servers root.
type Stats struct {
	MemoryTotalMB     uint64  `json:"memoryTotalMB"`
	MemoryAvailableMB uint64  `json:"memoryAvailableMB"`
	DiskPath          string  `json:"diskPath"`
	DiskTotalBytes    uint64  `json:"diskTotalBytes"`
	DiskFreeBytes     uint64  `json:"diskFreeBytes"`
	DiskUsedPercent   float64 `json:"diskUsedPercent"`
}

// Host probes the local machine.
type Host struct {
	root string
}

// NewHost returns a probe whose disk figures describe the filesystem of root.
func NewHost(root string) *Host {
	return &Host{root: root}
}

// TotalMemoryMB returns installed memory in megabytes.
func (h *Host) TotalMemoryMB() (uint64, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return 0, fmt.Errorf("failed to read host memory: %w", err)
	}
	return vm.Total / (1024 * 1024), nil
}

// Stats collects memory and disk figures.
func (h *Host) Stats() (Stats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read host memory: %w", err)
	}
	usage, err := disk.Usage(h.root)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read disk usage for %s: %w", h.root, err)
	}
	return Stats{
		MemoryTotalMB:     vm.Total / (1024 * 1024),
		MemoryAvailableMB: vm.Available / (1024 * 1024),
		DiskPath:          usage.Path,
		DiskTotalBytes:    usage.Total,
		DiskFreeBytes:     usage.Free,
		DiskUsedPercent:   usage.UsedPercent,
	}, nil
}
