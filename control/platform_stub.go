//go:build !linux

// control/platform_stub.go
// Author: momentics <momentics@gmail.com>
//
// Platform probe stubs for unsupported platforms.

package control

import (
	"runtime"
)

// RegisterPlatformProbes sets the portable debug probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
