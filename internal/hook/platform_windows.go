//go:build windows

package hook

import "log/slog"

func newInputHook(logger *slog.Logger) Hook {
	return NewLowLevel(logger.With("hook", "lowlevel"))
}

func newGamepadHook(opts Options, logger *slog.Logger) Hook {
	gopts := opts.gamepad(logger.With("hook", "xinput"))
	gopts.Probe = probeXInput
	return NewGamepad("xinput", OpenXInput, gopts)
}
