//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>

package affinity

import "errors"

// pinPlatform reports that pinning is unavailable on this platform.
func pinPlatform(int) error {
	return errors.New("affinity: not supported on this platform")
}
