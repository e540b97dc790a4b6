package hook

import (
	"context"
	"time"

	"inputoverlay/internal/input"
)

// RunFunc produces events until ctx is done.
type RunFunc func(ctx context.Context, emit func(input.Event)) error

// Func is a hook driven by caller code instead of a device. It backs tests
// and event replay.
type Func struct {
	Base
	name string
	run  RunFunc
}

// NewFunc creates a hook that runs run on its worker goroutine. run may be
// nil, in which case events are only delivered through Emit.
func NewFunc(name string, run RunFunc) *Func {
	return &Func{name: name, run: run}
}

// Name returns the hook name.
func (f *Func) Name() string { return f.name }

// Available always reports true.
func (f *Func) Available() (bool, string) {
	return true, "synthetic input"
}

// Start begins delivering events.
func (f *Func) Start(ctx context.Context, cb Callback) error {
	runCtx, err := f.begin(ctx, cb)
	if err != nil {
		return err
	}
	if f.run != nil {
		f.spawn(func() {
			_ = f.run(runCtx, f.Emit)
		})
	}
	return nil
}

// Stop stops the hook and waits for the run function to return.
func (f *Func) Stop() error {
	f.end()
	return nil
}

// Replay returns a RunFunc that delivers events with their original
// spacing, scaled by speed (2 plays twice as fast). Non-positive speed
// delivers them back to back.
func Replay(events []input.Event, speed float64) RunFunc {
	return func(ctx context.Context, emit func(input.Event)) error {
		var prev time.Time
		for _, ev := range events {
			if speed > 0 && !prev.IsZero() && !ev.Timestamp.IsZero() {
				gap := time.Duration(float64(ev.Timestamp.Sub(prev)) / speed)
				if gap > 0 {
					t := time.NewTimer(gap)
					select {
					case <-ctx.Done():
						t.Stop()
						return ctx.Err()
					case <-t.C:
					}
				}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			prev = ev.Timestamp
			emit(ev)
		}
		return nil
	}
}
