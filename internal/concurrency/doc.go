// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package concurrency provides the lock-free and low-level primitives
// shared by the event loop and channel machinery: a bounded MPMC ring,
// an unbounded task queue, promises and a timer heap.
package concurrency
