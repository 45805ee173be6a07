// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. A pinned event loop locks its
// goroutine to an OS thread and binds that thread to one core, so a
// busy loop never migrates between caches. Platform implementations
// live in build-tagged files.

package affinity

// Pin binds the current OS thread to the given logical CPU. Callers
// must hold runtime.LockOSThread for the pin to stick. On unsupported
// platforms it returns an error.
func Pin(cpuID int) error {
	return pinPlatform(cpuID)
}
