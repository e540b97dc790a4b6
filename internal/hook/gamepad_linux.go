//go:build linux

package hook

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"
)

// JoystickDir holds the joystick device nodes.
const JoystickDir = "/dev/input"

// Joystick event types (linux/joystick.h).
const (
	jsEventButton = 0x01
	jsEventAxis   = 0x02
	jsEventInit   = 0x80
	jsEventSize   = 8
)

// joystick is an open /dev/input/jsN node folded into a State.
type joystick struct {
	fd    int
	state State
	buf   [jsEventSize * 64]byte
}

// OpenJoystick returns an Opener for dir/js<index>.
func OpenJoystick(dir string) Opener {
	return func(index int) (Device, error) {
		path := filepath.Join(dir, fmt.Sprintf("js%d", index))
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			return nil, err
		}
		return &joystick{fd: fd}, nil
	}
}

func (j *joystick) Read(timeout time.Duration) (State, error) {
	fds := []unix.PollFd{{Fd: int32(j.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, int(timeout/time.Millisecond))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return j.state, nil
		}
		return State{}, err
	}
	if n == 0 {
		return j.state, nil
	}
	if fds[0].Revents&(unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
		return State{}, ErrDeviceDisconnected
	}

	for {
		n, err := unix.Read(j.fd, j.buf[:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				break
			}
			return State{}, fmt.Errorf("%w: %v", ErrDeviceDisconnected, err)
		}
		if n == 0 {
			return State{}, ErrDeviceDisconnected
		}
		for off := 0; off+jsEventSize <= n; off += jsEventSize {
			rec := j.buf[off : off+jsEventSize]
			value := int16(binary.NativeEndian.Uint16(rec[4:6]))
			j.state = foldJoystick(j.state, rec[6]&^jsEventInit, rec[7], value)
		}
		if n < len(j.buf) {
			break
		}
	}
	return j.state, nil
}

func (j *joystick) Close() error {
	return unix.Close(j.fd)
}

// Button bits of the d-pad in State.Buttons (see input.PadButtons).
const (
	bitDPadUp    = 11
	bitDPadDown  = 12
	bitDPadLeft  = 13
	bitDPadRight = 14
)

// foldJoystick applies one js_event using the xpad mapping: buttons
// A B X Y LB RB Back Start Guide L3 R3, axes LX LY LT RX RY RT and the
// d-pad hat on axes 6 and 7.
func foldJoystick(s State, typ, number uint8, value int16) State {
	switch typ {
	case jsEventButton:
		if number > 10 {
			return s
		}
		s.Buttons = setBit(s.Buttons, uint(number), value != 0)
	case jsEventAxis:
		switch number {
		case 0:
			s.LX = axisValue(value)
		case 1:
			s.LY = axisValue(value)
		case 2:
			s.LT = triggerValue(value)
		case 3:
			s.RX = axisValue(value)
		case 4:
			s.RY = axisValue(value)
		case 5:
			s.RT = triggerValue(value)
		case 6:
			s.Buttons = setBit(s.Buttons, bitDPadLeft, value < 0)
			s.Buttons = setBit(s.Buttons, bitDPadRight, value > 0)
		case 7:
			s.Buttons = setBit(s.Buttons, bitDPadUp, value < 0)
			s.Buttons = setBit(s.Buttons, bitDPadDown, value > 0)
		}
	}
	return s
}

// WatchJoysticks returns a hotplug watcher that wakes the poller when a
// js node appears in dir.
func WatchJoysticks(dir string) func(ctx context.Context, wake func()) error {
	return func(ctx context.Context, wake func()) error {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer w.Close()
		if err := w.Add(dir); err != nil {
			return err
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if ev.Has(fsnotify.Create) && strings.HasPrefix(filepath.Base(ev.Name), "js") {
					wake()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				return err
			}
		}
	}
}

func probeJoystickDir(dir string) func() (bool, string) {
	return func() (bool, string) {
		if _, err := os.Stat(dir); err != nil {
			return false, fmt.Sprintf("no joystick directory: %v", err)
		}
		return true, "polling " + filepath.Join(dir, "js*")
	}
}
