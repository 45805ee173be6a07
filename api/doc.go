// File: api/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package api defines the public contracts of the hioload-net core:
// pooled buffers, event loops, channels, pipelines and write promises.
//
// Implementations live in the buffer, pool, loop and channel packages;
// codec layers depend only on this package.
package api
