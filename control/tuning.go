// control/tuning.go
// Author: momentics <momentics@gmail.com>
//
// Projects ConfigStore keys onto runtime components: channel configs,
// allocator options and live allocator budgets. Re-applies on reload.

package control

import (
	"sync"

	"github.com/momentics/hioload-net/channel"
	"github.com/momentics/hioload-net/pool"
)

// Tuner binds a ConfigStore to the tunable parts of the runtime. It
// recomputes its projections whenever the store changes or a hot
// reload fires.
type Tuner struct {
	cs *ConfigStore

	mu       sync.RWMutex
	childCfg channel.Config
	allocs   []*pool.PooledAllocator
}

// NewTuner builds a tuner over cs and subscribes it to store updates
// and global hot reloads.
func NewTuner(cs *ConfigStore) *Tuner {
	t := &Tuner{cs: cs}
	t.apply()
	cs.OnReload(t.apply)
	RegisterReloadHook(t.apply)
	return t
}

// ChannelConfig returns the channel config projected from the store:
// auto-read and the outbound watermarks. Zero watermark values fall
// through to the channel defaults.
func (t *Tuner) ChannelConfig() channel.Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.childCfg
}

// LoopCount returns the configured loop count, or def when unset.
func (t *Tuner) LoopCount(def int) int {
	return t.cs.GetInt(KeyLoopCount, def)
}

// AllocatorOptions translates pool keys into constructor options for a
// new allocator.
func (t *Tuner) AllocatorOptions() []pool.Option {
	var opts []pool.Option
	if n := t.cs.GetInt(KeyArenaCount, 0); n > 0 {
		opts = append(opts, pool.WithArenaCount(n))
	}
	if n := t.cs.GetInt(KeyPoolMaxBytes, 0); n > 0 {
		opts = append(opts, pool.WithMaxTotalBytes(int64(n)))
	}
	return opts
}

// BindAllocator puts a live allocator under tuner control. Its memory
// budget follows KeyPoolMaxBytes from now on, starting immediately.
func (t *Tuner) BindAllocator(a *pool.PooledAllocator) {
	t.mu.Lock()
	t.allocs = append(t.allocs, a)
	t.mu.Unlock()
	a.SetMaxTotalBytes(int64(t.cs.GetInt(KeyPoolMaxBytes, 0)))
}

// apply recomputes every projection from the current store contents.
func (t *Tuner) apply() {
	cfg := channel.Config{
		AutoRead:                 t.cs.GetBool(KeyAutoRead, true),
		WriteBufferHighWaterMark: t.cs.GetInt(KeyHighWaterMark, 0),
		WriteBufferLowWaterMark:  t.cs.GetInt(KeyLowWaterMark, 0),
	}
	budget := int64(t.cs.GetInt(KeyPoolMaxBytes, 0))

	t.mu.Lock()
	t.childCfg = cfg
	allocs := append([]*pool.PooledAllocator(nil), t.allocs...)
	t.mu.Unlock()

	for _, a := range allocs {
		a.SetMaxTotalBytes(budget)
	}
}
