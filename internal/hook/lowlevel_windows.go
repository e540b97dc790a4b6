//go:build windows

package hook

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"inputoverlay/internal/input"
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookExW   = user32.NewProc("SetWindowsHookExW")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procPostThreadMessageW  = user32.NewProc("PostThreadMessageW")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C
	wmMouseHWheel = 0x020E

	llkhfExtended = 0x01
	wheelDelta    = 120
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllHookStruct struct {
	X, Y        int32
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	X, Y    int32
}

// LowLevel installs WH_KEYBOARD_LL and WH_MOUSE_LL hooks on a dedicated
// thread with its own message loop.
type LowLevel struct {
	Base
	logger *slog.Logger

	mu       sync.Mutex
	threadID uint32
	lastX    int32
	lastY    int32
	havePos  bool
}

// active is the hook the Windows callbacks deliver to. Only one
// low-level hook can run per process.
var active atomic.Pointer[LowLevel]

var (
	callbacksOnce sync.Once
	keyboardProc  uintptr
	mouseProc     uintptr
)

// NewLowLevel creates the Windows keyboard and mouse hook.
func NewLowLevel(logger *slog.Logger) *LowLevel {
	if logger == nil {
		logger = slog.Default().With("component", "hook", "hook", "lowlevel")
	}
	return &LowLevel{logger: logger}
}

// Name returns the hook name.
func (l *LowLevel) Name() string { return "lowlevel" }

// Available checks that user32 exposes the hook API.
func (l *LowLevel) Available() (bool, string) {
	if err := procSetWindowsHookExW.Find(); err != nil {
		return false, fmt.Sprintf("SetWindowsHookExW not available: %v", err)
	}
	return true, "low-level keyboard and mouse hooks"
}

// Start installs the hooks.
func (l *LowLevel) Start(ctx context.Context, cb Callback) error {
	if ok, reason := l.Available(); !ok {
		return fmt.Errorf("%w: %s", ErrHookUnavailable, reason)
	}
	if !active.CompareAndSwap(nil, l) {
		return ErrAlreadyRunning
	}
	runCtx, err := l.begin(ctx, cb)
	if err != nil {
		active.CompareAndSwap(l, nil)
		return err
	}

	callbacksOnce.Do(func() {
		keyboardProc = windows.NewCallback(keyboardHookProc)
		mouseProc = windows.NewCallback(mouseHookProc)
	})

	installed := make(chan error, 1)
	l.spawn(func() { l.messageLoop(installed) })
	if err := <-installed; err != nil {
		l.end()
		active.CompareAndSwap(l, nil)
		return fmt.Errorf("%w: %v", ErrHookUnavailable, err)
	}

	l.spawn(func() {
		<-runCtx.Done()
		l.mu.Lock()
		tid := l.threadID
		l.mu.Unlock()
		procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	})
	return nil
}

// Stop removes the hooks and ends the message loop.
func (l *LowLevel) Stop() error {
	l.end()
	active.CompareAndSwap(l, nil)
	return nil
}

func (l *LowLevel) messageLoop(installed chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.mu.Lock()
	l.threadID = windows.GetCurrentThreadId()
	l.mu.Unlock()

	kh, _, err := procSetWindowsHookExW.Call(whKeyboardLL, keyboardProc, 0, 0)
	if kh == 0 {
		installed <- fmt.Errorf("keyboard hook: %v", err)
		return
	}
	defer procUnhookWindowsHookEx.Call(kh)

	mh, _, err := procSetWindowsHookExW.Call(whMouseLL, mouseProc, 0, 0)
	if mh == 0 {
		installed <- fmt.Errorf("mouse hook: %v", err)
		return
	}
	defer procUnhookWindowsHookEx.Call(mh)

	installed <- nil

	var msg winMsg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if int32(r) <= 0 {
			return
		}
	}
}

func callNext(nCode, wParam, lParam uintptr) uintptr {
	r, _, _ := procCallNextHookEx.Call(0, nCode, wParam, lParam)
	return r
}

func keyboardHookProc(nCode, wParam, lParam uintptr) uintptr {
	l := active.Load()
	if int32(nCode) >= 0 && l != nil {
		kb := (*kbdllHookStruct)(unsafe.Pointer(lParam))
		code := scanCodeToKey(kb.ScanCode, kb.Flags&llkhfExtended != 0)
		switch wParam {
		case wmKeyDown, wmSysKeyDown:
			l.Emit(input.Press(code, true))
		case wmKeyUp, wmSysKeyUp:
			l.Emit(input.Press(code, false))
		}
	}
	return callNext(nCode, wParam, lParam)
}

func mouseHookProc(nCode, wParam, lParam uintptr) uintptr {
	l := active.Load()
	if int32(nCode) >= 0 && l != nil {
		ms := (*msllHookStruct)(unsafe.Pointer(lParam))
		l.mouse(uint32(wParam), ms)
	}
	return callNext(nCode, wParam, lParam)
}

func (l *LowLevel) mouse(msg uint32, ms *msllHookStruct) {
	switch msg {
	case wmMouseMove:
		l.mu.Lock()
		dx, dy := ms.X-l.lastX, ms.Y-l.lastY
		had := l.havePos
		l.lastX, l.lastY, l.havePos = ms.X, ms.Y, true
		l.mu.Unlock()
		if !had {
			dx, dy = 0, 0
		}
		if !had || dx != 0 || dy != 0 {
			l.Emit(input.MoveTo(float64(dx), float64(dy), float64(ms.X), float64(ms.Y)))
		}
	case wmLButtonDown, wmLButtonUp:
		l.Emit(input.Press(input.MouseLeft, msg == wmLButtonDown))
	case wmRButtonDown, wmRButtonUp:
		l.Emit(input.Press(input.MouseRight, msg == wmRButtonDown))
	case wmMButtonDown, wmMButtonUp:
		l.Emit(input.Press(input.MouseMiddle, msg == wmMButtonDown))
	case wmXButtonDown, wmXButtonUp:
		code := input.MouseX1
		if ms.MouseData>>16 == 2 {
			code = input.MouseX2
		}
		l.Emit(input.Press(code, msg == wmXButtonDown))
	case wmMouseWheel:
		l.Emit(input.Wheel(0, float64(int16(ms.MouseData>>16))/wheelDelta))
	case wmMouseHWheel:
		l.Emit(input.Wheel(float64(int16(ms.MouseData>>16))/wheelDelta, 0))
	}
}

// extendedKeys maps E0-prefixed set 1 scan codes to Linux key codes.
var extendedKeys = map[uint32]uint16{
	0x1C: 96,  // keypad enter
	0x1D: 97,  // right ctrl
	0x35: 98,  // keypad slash
	0x37: 99,  // print screen
	0x38: 100, // right alt
	0x47: 102, // home
	0x48: 103, // up
	0x49: 104, // page up
	0x4B: 105, // left
	0x4D: 106, // right
	0x4F: 107, // end
	0x50: 108, // down
	0x51: 109, // page down
	0x52: 110, // insert
	0x53: 111, // delete
	0x5B: 125, // left meta
	0x5C: 126, // right meta
	0x5D: 127, // compose
}

// scanCodeToKey converts a set 1 scan code to the input code space, which
// uses Linux key codes. Non-extended set 1 codes below 0x59 equal the
// Linux codes.
func scanCodeToKey(scan uint32, extended bool) input.Code {
	if extended {
		if k, ok := extendedKeys[scan]; ok {
			return input.Key(k)
		}
	}
	return input.Key(uint16(scan))
}
