// control/tuning_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/pool"
)

// TestTuner_ChannelConfigProjection maps store keys onto channel
// tunables and follows store updates.
func TestTuner_ChannelConfigProjection(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{
		KeyAutoRead:      false,
		KeyHighWaterMark: 1024,
		KeyLowWaterMark:  256,
	})
	tuner := NewTuner(cs)

	cfg := tuner.ChannelConfig()
	if cfg.AutoRead {
		t.Error("auto-read should be off")
	}
	if cfg.WriteBufferHighWaterMark != 1024 || cfg.WriteBufferLowWaterMark != 256 {
		t.Errorf("watermarks: high=%d low=%d", cfg.WriteBufferHighWaterMark, cfg.WriteBufferLowWaterMark)
	}

	cs.SetConfig(map[string]any{KeyAutoRead: true, KeyHighWaterMark: 2048})
	TriggerHotReloadSync()
	cfg = tuner.ChannelConfig()
	if !cfg.AutoRead || cfg.WriteBufferHighWaterMark != 2048 {
		t.Errorf("config after reload: %+v", cfg)
	}
}

// TestTuner_AllocatorOptions translates pool keys into constructor
// options, skipping unset keys.
func TestTuner_AllocatorOptions(t *testing.T) {
	cs := NewConfigStore()
	tuner := NewTuner(cs)
	if opts := tuner.AllocatorOptions(); len(opts) != 0 {
		t.Fatalf("expected no options for empty store, got %d", len(opts))
	}

	cs.SetConfig(map[string]any{KeyArenaCount: 3, KeyPoolMaxBytes: pool.ChunkSize})
	if opts := tuner.AllocatorOptions(); len(opts) != 2 {
		t.Fatalf("expected 2 options, got %d", len(opts))
	}
}

// TestTuner_DynamicPoolBudget retunes a bound allocator's memory cap
// through the store.
func TestTuner_DynamicPoolBudget(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{KeyPoolMaxBytes: pool.ChunkSize})
	tuner := NewTuner(cs)

	a := pool.NewPooledAllocator(pool.WithArenaCount(1))
	tuner.BindAllocator(a)

	// Two half-chunk runs fill the single budgeted chunk.
	b1, err := a.Allocate(pool.MaxPooledSize, pool.MaxPooledSize)
	if err != nil {
		t.Fatalf("first Allocate: %v", err)
	}
	defer b1.Release()
	b2, err := a.Allocate(pool.MaxPooledSize, pool.MaxPooledSize)
	if err != nil {
		t.Fatalf("second Allocate: %v", err)
	}
	defer b2.Release()

	if _, err := a.Allocate(pool.MaxPooledSize, pool.MaxPooledSize); !errors.Is(err, api.ErrAllocFailed) {
		t.Fatalf("expected ErrAllocFailed under budget, got %v", err)
	}

	// Lifting the cap lets the next chunk grow.
	cs.SetConfig(map[string]any{KeyPoolMaxBytes: 0})
	TriggerHotReloadSync()
	b3, err := a.Allocate(pool.MaxPooledSize, pool.MaxPooledSize)
	if err != nil {
		t.Fatalf("Allocate after lifting cap: %v", err)
	}
	b3.Release()
}

// TestTuner_LoopCount falls back to the caller default when unset.
func TestTuner_LoopCount(t *testing.T) {
	cs := NewConfigStore()
	tuner := NewTuner(cs)
	if got := tuner.LoopCount(4); got != 4 {
		t.Errorf("default loop count: %d", got)
	}
	cs.SetConfig(map[string]any{KeyLoopCount: 2})
	if got := tuner.LoopCount(4); got != 2 {
		t.Errorf("configured loop count: %d", got)
	}
}
