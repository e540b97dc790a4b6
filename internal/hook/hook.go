// Package hook provides the platform input listeners that feed the overlay.
//
// A Hook delivers input.Events to a callback from its own goroutines.
// Hooks never capture anything beyond what the overlay displays, and a
// hook that cannot be installed (missing device, insufficient permission,
// unsupported platform) reports ErrHookUnavailable instead of failing the
// overlay.
//
// Platform support:
//   - Linux: keyboard and mouse from /dev/input/event* (requires the input
//     group or root); gamepads from /dev/input/js*.
//   - Windows: keyboard and mouse through low-level hooks; gamepads
//     through XInput.
//   - Elsewhere: stubs that report ErrHookUnavailable.
package hook

import (
	"context"
	"errors"
	"sync"

	"inputoverlay/internal/input"
)

var (
	// ErrHookUnavailable is returned when a listener cannot be installed.
	ErrHookUnavailable = errors.New("input hook not available")
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("hook already running")
	// ErrDeviceDisconnected is returned by a Device that went away. The
	// gamepad poller treats it as idle input and never surfaces it.
	ErrDeviceDisconnected = errors.New("device disconnected")
)

// Callback receives input events on a hook goroutine.
type Callback func(input.Event)

// Hook is a platform input listener.
type Hook interface {
	// Name identifies the hook in logs and status output.
	Name() string

	// Start installs the listener. Events are delivered to cb until Stop.
	Start(ctx context.Context, cb Callback) error

	// Stop uninstalls the listener. It is idempotent, safe to call before
	// Start, and no callback runs after it returns.
	Stop() error

	// Available reports whether the listener can be installed on this
	// platform with current permissions.
	Available() (bool, string)
}

// Base provides the running state and callback dispatch shared by the
// platform hooks.
type Base struct {
	lifecycle sync.Mutex

	mu      sync.RWMutex
	running bool
	cb      Callback
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// IsRunning returns the running state.
func (b *Base) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Emit delivers ev to the callback if the hook is running. The callback
// must not call Stop.
func (b *Base) Emit(ev input.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.running && b.cb != nil {
		b.cb(ev)
	}
}

// begin marks the hook running and returns the context its workers use.
func (b *Base) begin(ctx context.Context, cb Callback) (context.Context, error) {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return nil, ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	b.running = true
	b.cb = cb
	b.cancel = cancel
	return runCtx, nil
}

// spawn runs fn on a worker goroutine that end waits for.
func (b *Base) spawn(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// end cancels the workers, waits for them, then drops the callback. Once
// it holds the write lock no Emit is in flight, and none can deliver
// afterwards.
func (b *Base) end() {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel == nil {
		return
	}

	cancel()
	b.wg.Wait()

	b.mu.Lock()
	b.running = false
	b.cb = nil
	b.cancel = nil
	b.mu.Unlock()
}
