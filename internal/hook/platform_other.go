//go:build !linux && !windows

package hook

import "log/slog"

func newInputHook(*slog.Logger) Hook {
	return NewUnavailable("keyboard-mouse", "keyboard and mouse hooks not implemented for this platform")
}

func newGamepadHook(Options, *slog.Logger) Hook {
	return NewUnavailable("gamepad", "gamepad polling not implemented for this platform")
}
