// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Process-wide reload hook registry. Components that re-tune from a
// ConfigStore (see Tuner) register here so an operator-driven reload
// reaches them even without a store mutation.

package control

import "sync"

var (
	hookMu      sync.Mutex
	reloadHooks []func()
)

// RegisterReloadHook adds a hook invoked on every hot reload.
func RegisterReloadHook(fn func()) {
	hookMu.Lock()
	defer hookMu.Unlock()
	reloadHooks = append(reloadHooks, fn)
}

func snapshotHooks() []func() {
	hookMu.Lock()
	defer hookMu.Unlock()
	return append([]func(){}, reloadHooks...)
}

// TriggerHotReload dispatches all reload hooks asynchronously.
func TriggerHotReload() {
	for _, fn := range snapshotHooks() {
		go fn()
	}
}

// TriggerHotReloadSync invokes all reload hooks on the caller's
// goroutine and returns after the last one completes.
func TriggerHotReloadSync() {
	for _, fn := range snapshotHooks() {
		fn()
	}
}
