// Package element holds the live input state behind overlay elements and
// the elements themselves: what region of the atlas to draw, where, and how
// the state changes it.
//
// Data and Element are closed variant sets. Every Data variant knows how to
// absorb an input event, how to decay on tick, whether it survives a layout
// reload, and how to merge with a duplicate source.
package element

import (
	"math"
	"time"

	"inputoverlay/internal/input"
)

// Kind is an element (and element data) variant.
type Kind int

const (
	KindButton Kind = iota + 1
	KindTrigger
	KindMouseMove
	KindStick
	KindWheel
)

// String returns the layout name of the kind.
func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindTrigger:
		return "trigger"
	case KindMouseMove:
		return "mouse_movement"
	case KindStick:
		return "stick"
	case KindWheel:
		return "wheel"
	default:
		return "unknown"
	}
}

const (
	// MouseReturnRate is how fast (1/s) the mouse anchor follows the pointer.
	MouseReturnRate = 6.0
	// WheelHold is how long a scroll direction stays lit.
	WheelHold = 250 * time.Millisecond
	// ButtonAxisThreshold is the analog value at which a button bound to an
	// axis counts as pressed.
	ButtonAxisThreshold = 0.5
)

// Data is the live state of one element. Implementations are values; every
// operation returns a new value.
type Data interface {
	Kind() Kind
	// Persistent reports whether the state survives a layout reload.
	Persistent() bool
	// Merge combines the state with a duplicate source. It is idempotent
	// and commutative, and never drops a pressed flag asserted by either
	// side. Merging different kinds returns the receiver.
	Merge(other Data) Data

	apply(ev input.Event, deadZone float64) Data
	tick(dt time.Duration) Data
}

// ButtonData is the state of a binary input.
type ButtonData struct {
	Pressed bool
	// On is the latched state of a toggle button.
	On     bool
	Toggle bool
}

func (d ButtonData) Kind() Kind { return KindButton }

// Persistent reports true for toggle buttons only.
func (d ButtonData) Persistent() bool { return d.Toggle }

// Active reports whether the button should show its pressed region.
func (d ButtonData) Active() bool { return d.Pressed || d.On }

func (d ButtonData) Merge(other Data) Data {
	o, ok := other.(ButtonData)
	if !ok {
		return d
	}
	return ButtonData{
		Pressed: d.Pressed || o.Pressed,
		On:      d.On || o.On,
		Toggle:  d.Toggle || o.Toggle,
	}
}

func (d ButtonData) apply(ev input.Event, _ float64) Data {
	var pressed bool
	switch ev.Kind {
	case input.KindKey, input.KindButton:
		pressed = ev.Pressed
	case input.KindAxis:
		pressed = math.Abs(ev.Value) >= ButtonAxisThreshold
	default:
		return d
	}
	if d.Toggle && pressed && !d.Pressed {
		d.On = !d.On
	}
	d.Pressed = pressed
	return d
}

func (d ButtonData) tick(time.Duration) Data { return d }

// TriggerData is the shared state of a trigger pair (or any two related
// inputs drawn as one control). Values are in [0,1].
type TriggerData struct {
	Left, Right               float64
	LeftPressed, RightPressed bool
}

func (d TriggerData) Kind() Kind       { return KindTrigger }
func (d TriggerData) Persistent() bool { return true }

// Pressed reports whether either side is pressed.
func (d TriggerData) Pressed() bool { return d.LeftPressed || d.RightPressed }

// Value returns the larger of the two side values.
func (d TriggerData) Value() float64 { return math.Max(d.Left, d.Right) }

func (d TriggerData) Merge(other Data) Data {
	o, ok := other.(TriggerData)
	if !ok {
		return d
	}
	return TriggerData{
		Left:         math.Max(d.Left, o.Left),
		Right:        math.Max(d.Right, o.Right),
		LeftPressed:  d.LeftPressed || o.LeftPressed,
		RightPressed: d.RightPressed || o.RightPressed,
	}
}

func (d TriggerData) apply(ev input.Event, deadZone float64) Data {
	var value float64
	var pressed bool
	switch ev.Kind {
	case input.KindAxis:
		value = clamp(ev.Value, 0, 1)
		if value < deadZone {
			value = 0
		}
		pressed = value > 0
	case input.KindKey, input.KindButton:
		pressed = ev.Pressed
		if pressed {
			value = 1
		}
	default:
		return d
	}
	if ev.Axis == input.AxisRightTrigger {
		d.Right, d.RightPressed = value, pressed
	} else {
		d.Left, d.LeftPressed = value, pressed
	}
	return d
}

func (d TriggerData) tick(time.Duration) Data { return d }

// MouseMoveData tracks the pointer position accumulated from relative
// movement and an anchor that follows it, so the indicator drifts back to
// rest when the mouse stops. CursorX and CursorY hold the screen position
// once a backend has reported one.
type MouseMoveData struct {
	X, Y             float64
	AnchorX, AnchorY float64
	CursorX, CursorY float64
	HasCursor        bool
}

func (d MouseMoveData) Kind() Kind       { return KindMouseMove }
func (d MouseMoveData) Persistent() bool { return false }

// Offset returns the pointer position relative to the anchor.
func (d MouseMoveData) Offset() (float64, float64) {
	return d.X - d.AnchorX, d.Y - d.AnchorY
}

func (d MouseMoveData) Merge(other Data) Data {
	o, ok := other.(MouseMoveData)
	if !ok {
		return d
	}
	return MouseMoveData{
		X:         larger(d.X, o.X),
		Y:         larger(d.Y, o.Y),
		AnchorX:   larger(d.AnchorX, o.AnchorX),
		AnchorY:   larger(d.AnchorY, o.AnchorY),
		CursorX:   larger(d.CursorX, o.CursorX),
		CursorY:   larger(d.CursorY, o.CursorY),
		HasCursor: d.HasCursor || o.HasCursor,
	}
}

// CenterOffset returns the cursor position relative to the screen center
// (cx, cy), clamped to the screen that center implies. Without a reported
// position the cursor is taken to rest at the center when the layout
// loaded.
func (d MouseMoveData) CenterOffset(cx, cy float64) (float64, float64) {
	dx, dy := d.X, d.Y
	if d.HasCursor {
		dx, dy = d.CursorX-cx, d.CursorY-cy
	}
	return clampAbs(dx, cx), clampAbs(dy, cy)
}

func clampAbs(v, limit float64) float64 {
	if limit <= 0 {
		return v
	}
	return math.Max(-limit, math.Min(v, limit))
}

func (d MouseMoveData) apply(ev input.Event, _ float64) Data {
	if ev.Kind != input.KindMove {
		return d
	}
	d.X += ev.X
	d.Y += ev.Y
	if ev.Absolute {
		d.CursorX, d.CursorY, d.HasCursor = ev.PosX, ev.PosY, true
	} else if d.HasCursor {
		d.CursorX += ev.X
		d.CursorY += ev.Y
	}
	return d
}

func (d MouseMoveData) tick(dt time.Duration) Data {
	if dt <= 0 {
		return d
	}
	k := 1 - math.Exp(-dt.Seconds()*MouseReturnRate)
	d.AnchorX += (d.X - d.AnchorX) * k
	d.AnchorY += (d.Y - d.AnchorY) * k
	return d
}

// StickData is an analog stick position in [-1,1] per axis plus its click.
type StickData struct {
	X, Y    float64
	Pressed bool
}

func (d StickData) Kind() Kind       { return KindStick }
func (d StickData) Persistent() bool { return true }

func (d StickData) Merge(other Data) Data {
	o, ok := other.(StickData)
	if !ok {
		return d
	}
	return StickData{
		X:       larger(d.X, o.X),
		Y:       larger(d.Y, o.Y),
		Pressed: d.Pressed || o.Pressed,
	}
}

func (d StickData) apply(ev input.Event, deadZone float64) Data {
	switch ev.Kind {
	case input.KindAxis:
		v := clamp(ev.Value, -1, 1)
		if math.Abs(v) < deadZone {
			v = 0
		}
		switch ev.Axis {
		case input.AxisX:
			d.X = v
		case input.AxisY:
			d.Y = v
		}
	case input.KindKey, input.KindButton:
		d.Pressed = ev.Pressed
	}
	return d
}

func (d StickData) tick(time.Duration) Data { return d }

// WheelData is the scroll wheel state. Up and Down stay lit for WheelHold
// after the last scroll step.
type WheelData struct {
	Up, Down bool
	Middle   bool
	// Amount accumulates vertical scroll steps.
	Amount float64
	Hold   time.Duration
}

func (d WheelData) Kind() Kind       { return KindWheel }
func (d WheelData) Persistent() bool { return false }

func (d WheelData) Merge(other Data) Data {
	o, ok := other.(WheelData)
	if !ok {
		return d
	}
	hold := d.Hold
	if o.Hold > hold {
		hold = o.Hold
	}
	return WheelData{
		Up:     d.Up || o.Up,
		Down:   d.Down || o.Down,
		Middle: d.Middle || o.Middle,
		Amount: larger(d.Amount, o.Amount),
		Hold:   hold,
	}
}

func (d WheelData) apply(ev input.Event, _ float64) Data {
	switch ev.Kind {
	case input.KindWheel:
		switch {
		case ev.Y > 0:
			d.Up, d.Down = true, false
		case ev.Y < 0:
			d.Up, d.Down = false, true
		default:
			return d
		}
		d.Amount += ev.Y
		d.Hold = WheelHold
	case input.KindButton:
		d.Middle = ev.Pressed
	}
	return d
}

func (d WheelData) tick(dt time.Duration) Data {
	if d.Hold <= 0 {
		return d
	}
	d.Hold -= dt
	if d.Hold <= 0 {
		d.Hold = 0
		d.Up, d.Down = false, false
	}
	return d
}

// larger returns the value with the larger magnitude; equal magnitudes
// resolve to the positive one.
func larger(a, b float64) float64 {
	aa, ab := math.Abs(a), math.Abs(b)
	switch {
	case aa > ab:
		return a
	case ab > aa:
		return b
	case a >= b:
		return a
	default:
		return b
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}
