package hook

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Options selects the platform hooks to create.
type Options struct {
	KeyboardMouse bool
	Gamepad       bool
	// Pads, PollInterval and ReconnectInterval override the gamepad
	// defaults when non-zero.
	Pads              int
	PollInterval      time.Duration
	ReconnectInterval time.Duration
	Logger            *slog.Logger
}

func (o Options) gamepad(logger *slog.Logger) GamepadOptions {
	return GamepadOptions{
		Pads:              o.Pads,
		PollInterval:      o.PollInterval,
		ReconnectInterval: o.ReconnectInterval,
		Logger:            logger,
	}
}

// Platform returns the hooks for the current platform.
func Platform(opts Options) []Hook {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "hook")
	}
	var hooks []Hook
	if opts.KeyboardMouse {
		hooks = append(hooks, newInputHook(logger))
	}
	if opts.Gamepad {
		hooks = append(hooks, newGamepadHook(opts, logger))
	}
	return hooks
}

// Unavailable is a hook that can never be installed.
type Unavailable struct {
	name   string
	reason string
}

// NewUnavailable creates a stub hook reporting reason.
func NewUnavailable(name, reason string) *Unavailable {
	return &Unavailable{name: name, reason: reason}
}

// Name returns the hook name.
func (u *Unavailable) Name() string { return u.name }

// Available returns false.
func (u *Unavailable) Available() (bool, string) { return false, u.reason }

// Start returns ErrHookUnavailable.
func (u *Unavailable) Start(context.Context, Callback) error {
	return fmt.Errorf("%w: %s", ErrHookUnavailable, u.reason)
}

// Stop is a no-op.
func (u *Unavailable) Stop() error { return nil }
