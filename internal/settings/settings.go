// Package settings holds the per-source shared settings read by every
// element draw call and written by the settings-update callback.
//
// Settings values are immutable once published. Writers build a new value
// and swap it in through Store, so a render pass that took a snapshot never
// observes a half-applied update.
package settings

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Limits accepted by Validate and enforced by Clamp.
const (
	MinMouseSensitivity = 1
	MaxMouseSensitivity = 500
	MaxMouseDeadZone    = 50
	MaxMonitorCenter    = 9999
	MaxGamepadID        = 3
)

// Settings is one consistent snapshot of the source settings.
type Settings struct {
	// ImageFile is the texture atlas path.
	ImageFile string
	// LayoutFile is the layout config path. Empty means pass-through mode.
	LayoutFile string

	// MouseMovementEnabled gates mouse movement/wheel events.
	MouseMovementEnabled bool
	// MouseSensitivity is the movement (in px) that maps to a full deflection.
	MouseSensitivity int
	// MouseDeadZone is the movement (in px) below which the indicator stays centered.
	MouseDeadZone int
	// UseMonitorCenter measures movement from a fixed point instead of the last tick.
	UseMonitorCenter bool
	MonitorHCenter   int
	MonitorVCenter   int

	// GamepadEnabled gates gamepad events.
	GamepadEnabled bool
	// GamepadID selects which pad the overlay follows.
	GamepadID int
	// LeftDeadZone and RightDeadZone are stick dead zones as a fraction of full travel.
	LeftDeadZone  float64
	RightDeadZone float64
}

// Default returns the settings used before the first update.
func Default() Settings {
	return Settings{
		MouseMovementEnabled: true,
		MouseSensitivity:     50,
		MouseDeadZone:        5,
		GamepadEnabled:       true,
		LeftDeadZone:         0.1,
		RightDeadZone:        0.1,
	}
}

// Validate reports every out-of-range field.
func (s Settings) Validate() error {
	var errs []error
	if s.MouseSensitivity < MinMouseSensitivity || s.MouseSensitivity > MaxMouseSensitivity {
		errs = append(errs, fmt.Errorf("mouse_sensitivity: %d not in [%d, %d]",
			s.MouseSensitivity, MinMouseSensitivity, MaxMouseSensitivity))
	}
	if s.MouseDeadZone < 0 || s.MouseDeadZone > MaxMouseDeadZone {
		errs = append(errs, fmt.Errorf("mouse_dead_zone: %d not in [0, %d]", s.MouseDeadZone, MaxMouseDeadZone))
	}
	if abs(s.MonitorHCenter) > MaxMonitorCenter || abs(s.MonitorVCenter) > MaxMonitorCenter {
		errs = append(errs, fmt.Errorf("monitor center (%d, %d) out of range", s.MonitorHCenter, s.MonitorVCenter))
	}
	if s.GamepadID < 0 || s.GamepadID > MaxGamepadID {
		errs = append(errs, fmt.Errorf("gamepad_id: %d not in [0, %d]", s.GamepadID, MaxGamepadID))
	}
	if s.LeftDeadZone < 0 || s.LeftDeadZone >= 1 {
		errs = append(errs, fmt.Errorf("left_dead_zone: %g not in [0, 1)", s.LeftDeadZone))
	}
	if s.RightDeadZone < 0 || s.RightDeadZone >= 1 {
		errs = append(errs, fmt.Errorf("right_dead_zone: %g not in [0, 1)", s.RightDeadZone))
	}
	return errors.Join(errs...)
}

// Clamp returns a copy with every field forced into its valid range.
func (s Settings) Clamp() Settings {
	s.MouseSensitivity = clampInt(s.MouseSensitivity, MinMouseSensitivity, MaxMouseSensitivity)
	s.MouseDeadZone = clampInt(s.MouseDeadZone, 0, MaxMouseDeadZone)
	s.MonitorHCenter = clampInt(s.MonitorHCenter, -MaxMonitorCenter, MaxMonitorCenter)
	s.MonitorVCenter = clampInt(s.MonitorVCenter, -MaxMonitorCenter, MaxMonitorCenter)
	s.GamepadID = clampInt(s.GamepadID, 0, MaxGamepadID)
	s.LeftDeadZone = clampFrac(s.LeftDeadZone)
	s.RightDeadZone = clampFrac(s.RightDeadZone)
	return s
}

// Store publishes Settings snapshots to concurrent readers.
type Store struct {
	mu      sync.Mutex // serializes writers
	current atomic.Pointer[Settings]
	version atomic.Uint64
}

// NewStore creates a store holding initial.
func NewStore(initial Settings) *Store {
	s := &Store{}
	v := initial
	s.current.Store(&v)
	return s
}

// Load returns the current snapshot. The returned pointer must not be modified.
func (s *Store) Load() *Settings {
	return s.current.Load()
}

// Version increments on every published change.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Set publishes next as the new snapshot.
func (s *Store) Set(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := next
	s.current.Store(&v)
	s.version.Add(1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFrac(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v >= 1 {
		return 0.99
	}
	return v
}
