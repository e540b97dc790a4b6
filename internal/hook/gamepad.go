package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inputoverlay/internal/input"
)

// MaxPads is the number of gamepad slots the poller watches.
const MaxPads = 4

// State is one snapshot of a gamepad. Stick axes are in [-1,1] with y
// growing downwards; triggers are in [0,1].
type State struct {
	// Buttons has bit i set when input.PadButtons[i] is held.
	Buttons uint32
	LX, LY  float64
	RX, RY  float64
	LT, RT  float64
}

// Pressed reports whether the button code is held.
func (s State) Pressed(code input.Code) bool {
	for i, c := range input.PadButtons {
		if c == code {
			return s.Buttons&(1<<i) != 0
		}
	}
	return false
}

// Device is an open gamepad.
type Device interface {
	// Read waits up to timeout for input and returns the current state.
	// Any error is treated as a disconnect.
	Read(timeout time.Duration) (State, error)
	Close() error
}

// Opener opens the gamepad in slot index.
type Opener func(index int) (Device, error)

// GamepadOptions configures the poller.
type GamepadOptions struct {
	// Pads is the number of slots to watch (default MaxPads).
	Pads int
	// PollInterval bounds how long one Read may wait.
	PollInterval time.Duration
	// ReconnectInterval is the delay between open attempts.
	ReconnectInterval time.Duration
	// Hotplug, when set, runs for the lifetime of the hook and calls wake
	// whenever a device may have appeared, cutting the reconnect delay short.
	Hotplug func(ctx context.Context, wake func()) error
	// Probe reports whether the platform backend is usable at all.
	Probe  func() (bool, string)
	Logger *slog.Logger
}

// Gamepad polls gamepads and turns state changes into events. A read
// failure releases every held control and the slot goes back to trying to
// open the device, so a disconnect looks like idle input and a reconnect
// resumes updates without a reload.
type Gamepad struct {
	Base
	name   string
	open   Opener
	opts   GamepadOptions
	wakeup wakeup
}

// NewGamepad creates a gamepad poller.
func NewGamepad(name string, open Opener, opts GamepadOptions) *Gamepad {
	if opts.Pads <= 0 || opts.Pads > MaxPads {
		opts.Pads = MaxPads
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 8 * time.Millisecond
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "hook", "hook", name)
	}
	return &Gamepad{name: name, open: open, opts: opts}
}

// Name returns the hook name.
func (g *Gamepad) Name() string { return g.name }

// Available reports the backend probe result.
func (g *Gamepad) Available() (bool, string) {
	if g.opts.Probe == nil {
		return true, "gamepad polling"
	}
	return g.opts.Probe()
}

// Start begins polling every slot.
func (g *Gamepad) Start(ctx context.Context, cb Callback) error {
	if ok, reason := g.Available(); !ok {
		return fmt.Errorf("%w: %s", ErrHookUnavailable, reason)
	}
	runCtx, err := g.begin(ctx, cb)
	if err != nil {
		return err
	}
	if g.opts.Hotplug != nil {
		g.spawn(func() {
			if err := g.opts.Hotplug(runCtx, g.wakeup.broadcast); err != nil && !errors.Is(err, context.Canceled) {
				g.opts.Logger.Debug("hotplug watch stopped", "error", err)
			}
		})
	}
	for i := 0; i < g.opts.Pads; i++ {
		index := i
		g.spawn(func() { g.poll(runCtx, index) })
	}
	return nil
}

// Stop stops polling and closes every device.
func (g *Gamepad) Stop() error {
	g.end()
	return nil
}

func (g *Gamepad) poll(ctx context.Context, index int) {
	var dev Device
	var last State
	defer func() {
		if dev != nil {
			dev.Close()
		}
	}()

	for ctx.Err() == nil {
		if dev == nil {
			d, err := g.open(index)
			if err != nil {
				g.waitReconnect(ctx)
				continue
			}
			dev = d
			g.opts.Logger.Info("gamepad connected", "pad", index)
		}

		st, err := dev.Read(g.opts.PollInterval)
		if err != nil {
			g.diff(index, last, State{})
			last = State{}
			dev.Close()
			dev = nil
			g.opts.Logger.Info("gamepad disconnected", "pad", index, "error", err)
			continue
		}
		g.diff(index, last, st)
		last = st
	}
}

func (g *Gamepad) waitReconnect(ctx context.Context) {
	t := time.NewTimer(g.opts.ReconnectInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	case <-g.wakeup.wait():
	}
}

// diff emits one event per control that changed between prev and next.
func (g *Gamepad) diff(index int, prev, next State) {
	emit := func(ev input.Event) {
		ev.Device = index
		g.Emit(ev)
	}

	if changed := prev.Buttons ^ next.Buttons; changed != 0 {
		for i, code := range input.PadButtons {
			bit := uint32(1) << i
			if changed&bit != 0 {
				emit(input.Press(code, next.Buttons&bit != 0))
			}
		}
	}

	axes := []struct {
		code       input.Code
		axis       input.Axis
		prev, next float64
	}{
		{input.PadLeftStick, input.AxisX, prev.LX, next.LX},
		{input.PadLeftStick, input.AxisY, prev.LY, next.LY},
		{input.PadRightStick, input.AxisX, prev.RX, next.RX},
		{input.PadRightStick, input.AxisY, prev.RY, next.RY},
		{input.PadLeftTrigger, input.AxisLeftTrigger, prev.LT, next.LT},
		{input.PadRightTrigger, input.AxisRightTrigger, prev.RT, next.RT},
	}
	for _, a := range axes {
		if a.prev != a.next {
			emit(input.AxisEvent(a.code, a.axis, a.next))
		}
	}
}

// wakeup wakes every waiter at once.
type wakeup struct {
	mu sync.Mutex
	ch chan struct{}
}

func (w *wakeup) wait() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch == nil {
		w.ch = make(chan struct{})
	}
	return w.ch
}

func (w *wakeup) broadcast() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ch != nil {
		close(w.ch)
		w.ch = nil
	}
}

func setBit(v uint32, bit uint, on bool) uint32 {
	if on {
		return v | 1<<bit
	}
	return v &^ (1 << bit)
}

// axisValue scales a signed 16-bit axis to [-1,1].
func axisValue(v int16) float64 {
	if v < -32767 {
		v = -32767
	}
	return float64(v) / 32767
}

// triggerValue scales a signed 16-bit trigger axis (rest at -32767) to [0,1].
func triggerValue(v int16) float64 {
	f := (float64(v) + 32767) / 65534
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
