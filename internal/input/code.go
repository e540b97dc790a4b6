package input

import "fmt"

// Code identifies one logical input (and the overlay element bound to it).
type Code uint32

// Class is the device class encoded in the upper half of a Code.
type Class uint16

const (
	ClassKeyboard Class = 0
	ClassMouse    Class = 1
	ClassGamepad  Class = 2
)

const classShift = 16

// Class returns the device class of the code.
func (c Code) Class() Class {
	return Class(c >> classShift)
}

// Index returns the class-relative index of the code.
func (c Code) Index() uint16 {
	return uint16(c & 0xffff)
}

// String returns a readable name for well-known codes.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	switch c.Class() {
	case ClassKeyboard:
		return fmt.Sprintf("key(%d)", c.Index())
	case ClassMouse:
		return fmt.Sprintf("mouse(%d)", c.Index())
	case ClassGamepad:
		return fmt.Sprintf("pad(%d)", c.Index())
	default:
		return fmt.Sprintf("code(%#x)", uint32(c))
	}
}

// Key returns the code of a keyboard key given its evdev key code.
func Key(evdev uint16) Code {
	return Code(uint32(ClassKeyboard)<<classShift | uint32(evdev))
}

func mouse(i uint16) Code   { return Code(uint32(ClassMouse)<<classShift | uint32(i)) }
func gamepad(i uint16) Code { return Code(uint32(ClassGamepad)<<classShift | uint32(i)) }

// Mouse codes.
var (
	MouseLeft   = mouse(1)
	MouseRight  = mouse(2)
	MouseMiddle = mouse(3)
	MouseX1     = mouse(4)
	MouseX2     = mouse(5)
	MouseMove   = mouse(0x100)
	MouseWheel  = mouse(0x101)
)

// Gamepad codes. They do not carry a pad index; events report the pad in
// Event.Device.
var (
	PadA         = gamepad(1)
	PadB         = gamepad(2)
	PadX         = gamepad(3)
	PadY         = gamepad(4)
	PadLB        = gamepad(5)
	PadRB        = gamepad(6)
	PadBack      = gamepad(7)
	PadStart     = gamepad(8)
	PadGuide     = gamepad(9)
	PadL3        = gamepad(10)
	PadR3        = gamepad(11)
	PadDPadUp    = gamepad(12)
	PadDPadDown  = gamepad(13)
	PadDPadLeft  = gamepad(14)
	PadDPadRight = gamepad(15)

	PadLeftStick    = gamepad(0x100)
	PadRightStick   = gamepad(0x101)
	PadLeftTrigger  = gamepad(0x102)
	PadRightTrigger = gamepad(0x103)
)

var codeNames = map[Code]string{
	MouseLeft:       "mouse_left",
	MouseRight:      "mouse_right",
	MouseMiddle:     "mouse_middle",
	MouseX1:         "mouse_x1",
	MouseX2:         "mouse_x2",
	MouseMove:       "mouse_move",
	MouseWheel:      "mouse_wheel",
	PadA:            "pad_a",
	PadB:            "pad_b",
	PadX:            "pad_x",
	PadY:            "pad_y",
	PadLB:           "pad_lb",
	PadRB:           "pad_rb",
	PadBack:         "pad_back",
	PadStart:        "pad_start",
	PadGuide:        "pad_guide",
	PadL3:           "pad_l3",
	PadR3:           "pad_r3",
	PadDPadUp:       "pad_dpad_up",
	PadDPadDown:     "pad_dpad_down",
	PadDPadLeft:     "pad_dpad_left",
	PadDPadRight:    "pad_dpad_right",
	PadLeftStick:    "pad_left_stick",
	PadRightStick:   "pad_right_stick",
	PadLeftTrigger:  "pad_left_trigger",
	PadRightTrigger: "pad_right_trigger",
}

// ParseCode resolves a well-known code name (as returned by String).
func ParseCode(name string) (Code, bool) {
	for c, n := range codeNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// PadButtons lists every digital gamepad control, in State bit order.
var PadButtons = []Code{
	PadA, PadB, PadX, PadY, PadLB, PadRB, PadBack, PadStart, PadGuide,
	PadL3, PadR3, PadDPadUp, PadDPadDown, PadDPadLeft, PadDPadRight,
}
