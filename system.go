package vcam

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo summarizes the machine an export runs on.
type HostInfo struct {
	LogicalCores int
	TotalMemory  uint64
	Accelerators []Accelerator
}

// ProbeHost collects CPU, memory and accelerator information. Probe
// failures degrade to zero values; they never block an export.
func ProbeHost() HostInfo {
	info := HostInfo{Accelerators: HardwareAccelerators()}

	if cores, err := cpu.Counts(true); err == nil {
		info.LogicalCores = cores
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = vm.Total
	}
	return info
}

// EncoderThreads suggests a software encoder thread count, leaving headroom
// for the decode and composite stages.
func (h HostInfo) EncoderThreads() int {
	if h.LogicalCores <= 2 {
		return 1
	}
	return h.LogicalCores - 2
}
