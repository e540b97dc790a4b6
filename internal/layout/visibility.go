package layout

// Setting keys whose visibility depends on the layout contents.
const (
	FieldLeftDeadZone     = "controller_l_deadzone"
	FieldRightDeadZone    = "controller_r_deadzone"
	FieldControllerID     = "controller_id"
	FieldMouseSensitivity = "mouse_sens"
	FieldUseMonitorCenter = "monitor_use_center"
	FieldMouseDeadZone    = "mouse_deadzone"
	FieldMonitorHCenter   = "monitor_h_center"
	FieldMonitorVCenter   = "monitor_v_center"
)

// Visibility tells a settings UI which advanced controls apply to a layout.
type Visibility struct {
	LeftStick   bool
	RightStick  bool
	Gamepad     bool
	MouseFields bool
}

// Visible derives the visibility from a parsed layout. A nil layout (no
// file, or one that failed to parse) hides every advanced control.
func Visible(l *Layout) Visibility {
	if l == nil {
		return Visibility{}
	}
	return Visibility{
		LeftStick:   l.Global.LeftStick,
		RightStick:  l.Global.RightStick,
		Gamepad:     l.Global.Gamepad,
		MouseFields: l.Global.MouseMovement,
	}
}

// VisibleFor parses path and returns its visibility. Parse failures hide
// every advanced control.
func VisibleFor(path string) Visibility {
	if path == "" {
		return Visibility{}
	}
	l, err := Parse(path)
	if err != nil {
		return Visibility{}
	}
	return Visible(l)
}

// MonitorCenterVisible reports whether the monitor center coordinates apply.
func MonitorCenterVisible(useCenter bool) bool {
	return useCenter
}

// Fields expands the visibility into per-setting flags.
func (v Visibility) Fields() map[string]bool {
	return map[string]bool{
		FieldLeftDeadZone:     v.LeftStick,
		FieldRightDeadZone:    v.RightStick,
		FieldControllerID:     v.Gamepad,
		FieldMouseSensitivity: v.MouseFields,
		FieldUseMonitorCenter: v.MouseFields,
		FieldMouseDeadZone:    v.MouseFields,
	}
}
