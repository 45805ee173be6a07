// File: pool/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package pool implements the size-classed arena allocator behind
// every I/O buffer.
//
// Layout: an allocator owns several arenas; an arena owns 16 MiB
// chunks subdivided by a buddy tree into 8 KiB pages; pages serving
// tiny (<512 B) and small (<8 KiB) classes are split further into
// equal-sized subpage slots. Requests above half a chunk bypass the
// pool entirely.
package pool
