// File: channel/sizer.go
// Package channel: adaptive sizing of receive buffers.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package channel

const (
	minRecvGuess     = 64
	maxRecvGuess     = 64 * 1024
	initialRecvGuess = 2048
)

// recvSizer picks the next receive buffer capacity from the history of
// actual read sizes. Loop-confined, one per channel.
//
// A read that fills the whole guess doubles the next one; two reads in
// a row below half the guess halve it. Both moves clamp to the
// [minRecvGuess, maxRecvGuess] range.
type recvSizer struct {
	next        int
	smallStreak int
}

func newRecvSizer() *recvSizer {
	return &recvSizer{next: initialRecvGuess}
}

// Guess returns the capacity for the next receive allocation.
func (s *recvSizer) Guess() int { return s.next }

// Record feeds back the byte count of one completed read.
func (s *recvSizer) Record(actual int) {
	switch {
	case actual >= s.next:
		s.smallStreak = 0
		if s.next < maxRecvGuess {
			s.next *= 2
			if s.next > maxRecvGuess {
				s.next = maxRecvGuess
			}
		}
	case actual < s.next/2:
		s.smallStreak++
		if s.smallStreak >= 2 {
			s.smallStreak = 0
			s.next /= 2
			if s.next < minRecvGuess {
				s.next = minRecvGuess
			}
		}
	default:
		s.smallStreak = 0
	}
}
