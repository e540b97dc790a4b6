// Package input defines the events produced by the hook layer and the code
// space that binds them to overlay elements.
//
// A Code is the element id of an event. Codes are partitioned by device
// class so that keyboard keys, mouse buttons and gamepad controls never
// collide:
//
//	0x0000xxxx  keyboard (Linux evdev key codes)
//	0x0001xxxx  mouse buttons, movement and wheel
//	0x0002xxxx  gamepad buttons, sticks and triggers
package input

import (
	"fmt"
	"time"
)

// Kind categorizes an input event.
type Kind int

const (
	KindUnknown Kind = iota
	KindKey          // Keyboard key press/release
	KindButton       // Mouse or gamepad button press/release
	KindAxis         // Analog axis (stick or trigger)
	KindMove         // Relative mouse movement
	KindWheel        // Mouse wheel rotation
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindButton:
		return "button"
	case KindAxis:
		return "axis"
	case KindMove:
		return "move"
	case KindWheel:
		return "wheel"
	default:
		return "unknown"
	}
}

// Axis identifies which analog channel an axis event carries.
type Axis int

const (
	AxisNone Axis = iota
	AxisX
	AxisY
	AxisLeftTrigger
	AxisRightTrigger
)

// String returns the string representation of the axis.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisLeftTrigger:
		return "lt"
	case AxisRightTrigger:
		return "rt"
	default:
		return "none"
	}
}

// Event is a single change of physical input state.
type Event struct {
	Code      Code      `json:"code"`
	Kind      Kind      `json:"kind"`
	Pressed   bool      `json:"pressed,omitempty"`
	Axis      Axis      `json:"axis,omitempty"`
	Value     float64   `json:"value,omitempty"` // axis position; triggers in [0,1], sticks in [-1,1]
	X         float64   `json:"x,omitempty"`     // movement/wheel delta
	Y         float64   `json:"y,omitempty"`
	Device    int       `json:"device,omitempty"` // gamepad index
	Timestamp time.Time `json:"timestamp"`

	// Absolute is set when PosX and PosY carry the screen position of the
	// cursor after a move. Backends reading raw devices only know deltas.
	Absolute bool    `json:"absolute,omitempty"`
	PosX     float64 `json:"pos_x,omitempty"`
	PosY     float64 `json:"pos_y,omitempty"`
}

// String returns a compact description used in logs.
func (e Event) String() string {
	switch e.Kind {
	case KindKey, KindButton:
		return fmt.Sprintf("%s %s pressed=%t", e.Kind, e.Code, e.Pressed)
	case KindAxis:
		return fmt.Sprintf("axis %s %s=%.3f", e.Code, e.Axis, e.Value)
	case KindMove, KindWheel:
		return fmt.Sprintf("%s %s (%.1f, %.1f)", e.Kind, e.Code, e.X, e.Y)
	default:
		return fmt.Sprintf("unknown %s", e.Code)
	}
}

// Press returns a press or release event for a key or button code.
func Press(code Code, pressed bool) Event {
	kind := KindButton
	if code.Class() == ClassKeyboard {
		kind = KindKey
	}
	return Event{Code: code, Kind: kind, Pressed: pressed, Timestamp: time.Now()}
}

// AxisEvent returns an analog event for one axis of a stick or trigger.
func AxisEvent(code Code, axis Axis, value float64) Event {
	return Event{Code: code, Kind: KindAxis, Axis: axis, Value: value, Timestamp: time.Now()}
}

// Move returns a relative mouse movement event.
func Move(dx, dy float64) Event {
	return Event{Code: MouseMove, Kind: KindMove, X: dx, Y: dy, Timestamp: time.Now()}
}

// MoveTo returns a mouse movement event that also carries the cursor
// position (x, y) in screen pixels.
func MoveTo(dx, dy, x, y float64) Event {
	ev := Move(dx, dy)
	ev.Absolute, ev.PosX, ev.PosY = true, x, y
	return ev
}

// Wheel returns a wheel event; positive dy scrolls up.
func Wheel(dx, dy float64) Event {
	return Event{Code: MouseWheel, Kind: KindWheel, X: dx, Y: dy, Timestamp: time.Now()}
}
