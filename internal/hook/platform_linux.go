//go:build linux

package hook

import "log/slog"

func newInputHook(logger *slog.Logger) Hook {
	return NewEvdev(logger.With("hook", "evdev"))
}

func newGamepadHook(opts Options, logger *slog.Logger) Hook {
	gopts := opts.gamepad(logger.With("hook", "joystick"))
	gopts.Hotplug = WatchJoysticks(JoystickDir)
	gopts.Probe = probeJoystickDir(JoystickDir)
	return NewGamepad("joystick", OpenJoystick(JoystickDir), gopts)
}
