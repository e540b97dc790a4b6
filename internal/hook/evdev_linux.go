//go:build linux

package hook

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"inputoverlay/internal/input"
)

// ProcInputDevices lists the kernel input devices.
const ProcInputDevices = "/proc/bus/input/devices"

// Evdev reads keyboards and mice from /dev/input/event*.
type Evdev struct {
	Base
	devicesFile string
	logger      *slog.Logger
}

// NewEvdev creates the Linux keyboard and mouse hook.
func NewEvdev(logger *slog.Logger) *Evdev {
	if logger == nil {
		logger = slog.Default().With("component", "hook", "hook", "evdev")
	}
	return &Evdev{devicesFile: ProcInputDevices, logger: logger}
}

// Name returns the hook name.
func (e *Evdev) Name() string { return "evdev" }

// Available checks that at least one keyboard or mouse can be opened.
func (e *Evdev) Available() (bool, string) {
	devices, err := e.devices()
	if err != nil {
		return false, fmt.Sprintf("cannot list input devices: %v", err)
	}
	if len(devices) == 0 {
		return false, "no keyboard or mouse devices found"
	}
	for _, dev := range devices {
		f, err := os.OpenFile(dev.Path, os.O_RDONLY, 0)
		if err == nil {
			f.Close()
			return true, fmt.Sprintf("found %d input devices", len(devices))
		}
	}
	return false, "cannot read input devices (need to be in 'input' group or run as root)"
}

func (e *Evdev) devices() ([]inputDevice, error) {
	f, err := os.Open(e.devicesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseInputDevices(f)
}

// Start opens every keyboard and mouse and starts one reader per device.
func (e *Evdev) Start(ctx context.Context, cb Callback) error {
	devices, err := e.devices()
	if err != nil || len(devices) == 0 {
		return fmt.Errorf("%w: no keyboard or mouse devices", ErrHookUnavailable)
	}

	var fds []int
	for _, dev := range devices {
		fd, err := unix.Open(dev.Path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			e.logger.Debug("skipping input device", "path", dev.Path, "name", dev.Name, "error", err)
			continue
		}
		fds = append(fds, fd)
	}
	if len(fds) == 0 {
		return fmt.Errorf("%w: cannot open any input device", ErrHookUnavailable)
	}

	runCtx, err := e.begin(ctx, cb)
	if err != nil {
		for _, fd := range fds {
			unix.Close(fd)
		}
		return err
	}
	for _, fd := range fds {
		fd := fd
		e.spawn(func() { e.readLoop(runCtx, fd) })
	}
	return nil
}

// Stop stops every reader and closes the devices.
func (e *Evdev) Stop() error {
	e.end()
	return nil
}

// Linux input event constants (linux/input-event-codes.h).
const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
	btnSide   = 0x113
	btnExtra  = 0x114
	btnMisc   = 0x100
	keyOk     = 0x160

	keyRelease = 0
	keyPress   = 1
)

// pollTimeoutMs bounds how long Stop waits for a reader.
const pollTimeoutMs = 100

// eventSize is sizeof(struct input_event) on this architecture.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

func (e *Evdev) readLoop(ctx context.Context, fd int) {
	defer unix.Close(fd)

	buf := make([]byte, eventSize*64)
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	var tr translator

	for ctx.Err() == nil {
		n, err := unix.Poll(fds, pollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			e.logger.Warn("input device poll failed", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			e.logger.Info("input device removed")
			return
		}

		n, err = unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			e.logger.Info("input device read failed", "error", err)
			return
		}
		for off := 0; off+eventSize <= n; off += eventSize {
			rec := buf[off+eventSize-8 : off+eventSize]
			typ := binary.NativeEndian.Uint16(rec[0:2])
			code := binary.NativeEndian.Uint16(rec[2:4])
			value := int32(binary.NativeEndian.Uint32(rec[4:8]))
			tr.feed(typ, code, value, e.Emit)
		}
	}
}

// translator turns raw evdev records into input events. Relative motion
// is coalesced until the next EV_SYN.
type translator struct {
	dx, dy    float64
	wheelX    float64
	wheelY    float64
	hasMotion bool
	hasWheel  bool
}

func (t *translator) feed(typ, code uint16, value int32, emit func(input.Event)) {
	switch typ {
	case evKey:
		if value != keyPress && value != keyRelease {
			return // auto-repeat
		}
		c, ok := keyCode(code)
		if !ok {
			return
		}
		emit(input.Press(c, value == keyPress))
	case evRel:
		switch code {
		case relX:
			t.dx += float64(value)
			t.hasMotion = true
		case relY:
			t.dy += float64(value)
			t.hasMotion = true
		case relWheel:
			t.wheelY += float64(value)
			t.hasWheel = true
		case relHWheel:
			t.wheelX += float64(value)
			t.hasWheel = true
		}
	case evSyn:
		if t.hasMotion {
			emit(input.Move(t.dx, t.dy))
		}
		if t.hasWheel {
			emit(input.Wheel(t.wheelX, t.wheelY))
		}
		*t = translator{}
	}
}

// keyCode maps an EV_KEY code to an input code. Joystick and gamepad
// buttons are left to the gamepad hook.
func keyCode(code uint16) (input.Code, bool) {
	switch code {
	case btnLeft:
		return input.MouseLeft, true
	case btnRight:
		return input.MouseRight, true
	case btnMiddle:
		return input.MouseMiddle, true
	case btnSide:
		return input.MouseX1, true
	case btnExtra:
		return input.MouseX2, true
	}
	if code == 0 || (code >= btnMisc && code < keyOk) {
		return 0, false
	}
	return input.Key(code), true
}

// inputDevice is one keyboard or mouse entry of /proc/bus/input/devices.
type inputDevice struct {
	Name     string
	Path     string
	Keyboard bool
	Mouse    bool
}

// parseInputDevices reads the /proc/bus/input/devices format and returns
// the event nodes of keyboards and mice.
func parseInputDevices(r io.Reader) ([]inputDevice, error) {
	var devices []inputDevice
	var cur inputDevice
	var joystick bool

	flush := func() {
		if cur.Path != "" && (cur.Keyboard || cur.Mouse) && !joystick {
			devices = append(devices, cur)
		}
		cur = inputDevice{}
		joystick = false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "N: Name="):
			cur.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "H: Handlers="):
			for _, h := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				switch {
				case strings.HasPrefix(h, "event"):
					cur.Path = filepath.Join("/dev/input", h)
				case h == "kbd":
					cur.Keyboard = true
				case strings.HasPrefix(h, "mouse"):
					cur.Mouse = true
				case strings.HasPrefix(h, "js"):
					joystick = true
				}
			}
		}
	}
	flush()
	return devices, scanner.Err()
}
