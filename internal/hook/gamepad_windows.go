//go:build windows

package hook

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	xinput             = windows.NewLazySystemDLL("xinput1_4.dll")
	procXInputGetState = xinput.NewProc("XInputGetState")
)

// errDeviceNotConnected is ERROR_DEVICE_NOT_CONNECTED.
const errDeviceNotConnected = 1167

type xinputGamepad struct {
	Buttons      uint16
	LeftTrigger  uint8
	RightTrigger uint8
	ThumbLX      int16
	ThumbLY      int16
	ThumbRX      int16
	ThumbRY      int16
}

type xinputState struct {
	PacketNumber uint32
	Gamepad      xinputGamepad
}

// XInput button masks in input.PadButtons order.
var xinputButtons = []uint16{
	0x1000, // A
	0x2000, // B
	0x4000, // X
	0x8000, // Y
	0x0100, // LB
	0x0200, // RB
	0x0020, // Back
	0x0010, // Start
	0x0400, // Guide
	0x0040, // L3
	0x0080, // R3
	0x0001, // d-pad up
	0x0002, // d-pad down
	0x0004, // d-pad left
	0x0008, // d-pad right
}

// xinputDevice polls one XInput user index.
type xinputDevice struct {
	index int
}

func getXInputState(index int) (xinputState, uintptr) {
	var st xinputState
	r, _, _ := procXInputGetState.Call(uintptr(index), uintptr(unsafe.Pointer(&st)))
	return st, r
}

// OpenXInput opens XInput user index.
func OpenXInput(index int) (Device, error) {
	if err := xinput.Load(); err != nil {
		return nil, err
	}
	if _, r := getXInputState(index); r != 0 {
		return nil, ErrDeviceDisconnected
	}
	return &xinputDevice{index: index}, nil
}

func (d *xinputDevice) Read(timeout time.Duration) (State, error) {
	time.Sleep(timeout)
	st, r := getXInputState(d.index)
	switch r {
	case 0:
	case errDeviceNotConnected:
		return State{}, ErrDeviceDisconnected
	default:
		return State{}, fmt.Errorf("XInputGetState: error %d", r)
	}

	g := st.Gamepad
	var s State
	for i, mask := range xinputButtons {
		s.Buttons = setBit(s.Buttons, uint(i), g.Buttons&mask != 0)
	}
	// XInput y axes point up; State y grows downwards.
	s.LX = axisValue(g.ThumbLX)
	s.LY = -axisValue(g.ThumbLY)
	s.RX = axisValue(g.ThumbRX)
	s.RY = -axisValue(g.ThumbRY)
	s.LT = float64(g.LeftTrigger) / 255
	s.RT = float64(g.RightTrigger) / 255
	return s, nil
}

func (d *xinputDevice) Close() error { return nil }

func probeXInput() (bool, string) {
	if err := xinput.Load(); err != nil {
		return false, fmt.Sprintf("xinput1_4.dll not available: %v", err)
	}
	return true, "polling XInput"
}
