package device

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

const defaultKernelPower = 1024

// LogicalCPUs returns the logical CPU count, or 1 when it cannot be determined.
func LogicalCPUs(ctx context.Context) int {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n < 1 {
		state.Logger.Debug("Could not determine CPU count, using 1", "error", err)

		return 1
	}

	return n
}

// CPUDevices builds count CPU devices sharing the given kernel. kernelPower of zero selects a default that
// autotuning later replaces.
func CPUDevices(ctx context.Context, count int, kernelPower uint64, k Kernel) []*Device {
	name := "CPU"

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		name = infos[0].ModelName
	}

	if kernelPower == 0 {
		kernelPower = defaultKernelPower
	}

	devices := make([]*Device, 0, count)
	for i := range count {
		devices = append(devices, New(i+1, fmt.Sprintf("%s #%d", name, i+1), TypeCPU, 1, kernelPower, k))
	}

	return devices
}
