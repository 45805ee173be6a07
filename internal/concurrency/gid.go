// File: internal/concurrency/gid.go
// Package concurrency: goroutine identity for loop affinity checks.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"bytes"
	"runtime"
	"strconv"
)

// GoroutineID returns the runtime id of the calling goroutine, parsed
// from the stack header ("goroutine N [running]:"). Used only to
// answer InLoop; never for synchronization.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	frame := buf[:n]
	frame = bytes.TrimPrefix(frame, []byte("goroutine "))
	if i := bytes.IndexByte(frame, ' '); i > 0 {
		id, err := strconv.ParseUint(string(frame[:i]), 10, 64)
		if err == nil {
			return id
		}
	}
	return 0
}
