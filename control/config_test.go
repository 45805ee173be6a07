// control/config_test.go
// Author: momentics <momentics@gmail.com>

package control

import (
	"sync"
	"testing"
)

// TestConfigStore_TypedGetters falls back to defaults on absent or
// mistyped keys.
func TestConfigStore_TypedGetters(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{
		KeyLoopCount: 4,
		KeyAutoRead:  false,
		"name":       "boss",
		"mistyped":   "12",
	})

	if got := cs.GetInt(KeyLoopCount, 1); got != 4 {
		t.Fatalf("GetInt = %d, want 4", got)
	}
	if got := cs.GetInt("missing", 7); got != 7 {
		t.Fatalf("GetInt default = %d, want 7", got)
	}
	if got := cs.GetInt("mistyped", 9); got != 9 {
		t.Fatalf("GetInt mistyped = %d, want 9", got)
	}
	if cs.GetBool(KeyAutoRead, true) {
		t.Fatal("GetBool ignored the stored false")
	}
	if got := cs.GetString("name", ""); got != "boss" {
		t.Fatalf("GetString = %q, want boss", got)
	}
	if got := cs.GetString(KeyLoopCount, "def"); got != "def" {
		t.Fatalf("GetString on int key = %q, want def", got)
	}
}

// TestConfigStore_SnapshotIsCopy keeps later mutation out of an
// already taken snapshot.
func TestConfigStore_SnapshotIsCopy(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"a": 1})
	snap := cs.GetSnapshot()
	cs.SetConfig(map[string]any{"a": 2, "b": 3})
	if snap["a"] != 1 || len(snap) != 1 {
		t.Fatalf("snapshot changed underneath: %v", snap)
	}
}

// TestConfigStore_MergeKeepsOldKeys merges instead of replacing.
func TestConfigStore_MergeKeepsOldKeys(t *testing.T) {
	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"keep": true})
	cs.SetConfig(map[string]any{"add": 1})
	snap := cs.GetSnapshot()
	if snap["keep"] != true || snap["add"] != 1 {
		t.Fatalf("merge lost keys: %v", snap)
	}
}

// TestConfigStore_OnReload fires every listener per SetConfig.
func TestConfigStore_OnReload(t *testing.T) {
	cs := NewConfigStore()
	var wg sync.WaitGroup
	wg.Add(2)
	cs.OnReload(func() { wg.Done() })
	cs.OnReload(func() { wg.Done() })
	cs.SetConfig(map[string]any{"x": 1})
	wg.Wait()
}
