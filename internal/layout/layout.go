// Package layout parses and writes overlay layout files.
//
// A layout names the texture atlas regions of every element and carries the
// global feature flags (sticks, gamepad, mouse movement) that decide which
// advanced settings a host UI shows. TOML is the native format; JSON and
// YAML are accepted by extension.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"inputoverlay/internal/input"
)

// Version is the current layout format version.
const Version = 1

// MaxSize bounds global.width and global.height.
const MaxSize = 16384

var (
	// ErrMalformed wraps decode and validation failures.
	ErrMalformed = errors.New("malformed layout")
)

// Type is the element kind named in a layout section.
type Type string

const (
	TypeButton        Type = "button"
	TypeTrigger       Type = "trigger"
	TypeMouseMovement Type = "mouse_movement"
	TypeStick         Type = "stick"
	TypeWheel         Type = "wheel"
)

// Types lists every supported element type.
func Types() []Type {
	return []Type{TypeButton, TypeTrigger, TypeMouseMovement, TypeStick, TypeWheel}
}

// Layout is a parsed layout file.
type Layout struct {
	Version  int                `toml:"version" json:"version" yaml:"version"`
	Global   Global             `toml:"global" json:"global" yaml:"global"`
	Elements map[string]Element `toml:"element,omitempty" json:"element,omitempty" yaml:"element,omitempty"`
}

// Global holds the layout-wide settings and feature flags.
type Global struct {
	// Width and Height override the overlay size; zero uses the atlas size.
	Width  int `toml:"width,omitempty" json:"width,omitempty" yaml:"width,omitempty"`
	Height int `toml:"height,omitempty" json:"height,omitempty" yaml:"height,omitempty"`

	LeftStick     bool `toml:"left_stick" json:"left_stick" yaml:"left_stick"`
	RightStick    bool `toml:"right_stick" json:"right_stick" yaml:"right_stick"`
	Gamepad       bool `toml:"gamepad" json:"gamepad" yaml:"gamepad"`
	MouseMovement bool `toml:"mouse_movement" json:"mouse_movement" yaml:"mouse_movement"`
}

// Element is one layout section.
type Element struct {
	Type Type `toml:"type" json:"type" yaml:"type"`

	// Code is the numeric input code; Input is the symbolic alternative
	// (e.g. "pad_left_stick"). Input wins when both are set.
	Code      uint32 `toml:"code,omitempty" json:"code,omitempty" yaml:"code,omitempty"`
	Input     string `toml:"input,omitempty" json:"input,omitempty" yaml:"input,omitempty"`
	Secondary uint32 `toml:"secondary,omitempty" json:"secondary,omitempty" yaml:"secondary,omitempty"`

	// Mapping is the atlas rectangle [x, y, w, h]; Pressed overrides the
	// pressed-state rectangle. Pos is the destination offset [x, y].
	Mapping []int `toml:"mapping" json:"mapping" yaml:"mapping,flow"`
	Pressed []int `toml:"pressed,omitempty" json:"pressed,omitempty" yaml:"pressed,omitempty,flow"`
	Pos     []int `toml:"pos" json:"pos" yaml:"pos,flow"`
	ZLevel  int   `toml:"z_level,omitempty" json:"z_level,omitempty" yaml:"z_level,omitempty"`

	Toggle  bool `toml:"toggle,omitempty" json:"toggle,omitempty" yaml:"toggle,omitempty"`
	InvertX bool `toml:"invert_x,omitempty" json:"invert_x,omitempty" yaml:"invert_x,omitempty"`
	InvertY bool `toml:"invert_y,omitempty" json:"invert_y,omitempty" yaml:"invert_y,omitempty"`
	Fill    bool `toml:"fill,omitempty" json:"fill,omitempty" yaml:"fill,omitempty"`
	Label   bool `toml:"label,omitempty" json:"label,omitempty" yaml:"label,omitempty"`
	Arrow   bool `toml:"arrow,omitempty" json:"arrow,omitempty" yaml:"arrow,omitempty"`
	Radius  int  `toml:"radius,omitempty" json:"radius,omitempty" yaml:"radius,omitempty"`
}

// ResolvedCode returns the input code the element is bound to.
func (e Element) ResolvedCode() (input.Code, error) {
	if e.Input != "" {
		c, ok := input.ParseCode(e.Input)
		if !ok {
			return 0, fmt.Errorf("unknown input %q", e.Input)
		}
		return c, nil
	}
	if e.Code != 0 {
		return input.Code(e.Code), nil
	}
	switch e.Type {
	case TypeMouseMovement:
		return input.MouseMove, nil
	case TypeWheel:
		return input.MouseWheel, nil
	}
	return 0, errors.New("missing code")
}

// IDs returns the element ids in draw order (z-level, then id).
func (l *Layout) IDs() []string {
	ids := make([]string, 0, len(l.Elements))
	for id := range l.Elements {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		zi, zj := l.Elements[ids[i]].ZLevel, l.Elements[ids[j]].ZLevel
		if zi != zj {
			return zi < zj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// ValidationError describes one invalid section or key.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("layout: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the structure of the layout. Atlas rectangles are not
// checked here: an element with a bad rectangle is still a valid section
// and is rendered invisible.
func (l *Layout) Validate() error {
	var errs ValidationErrors

	if l.Version < 0 || l.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", l.Version, Version),
		})
	}
	if l.Global.Width < 0 || l.Global.Height < 0 {
		errs = append(errs, ValidationError{Field: "global", Message: "negative size"})
	}
	if l.Global.Width > MaxSize || l.Global.Height > MaxSize {
		errs = append(errs, ValidationError{
			Field:   "global",
			Message: fmt.Sprintf("size %dx%d exceeds %d", l.Global.Width, l.Global.Height, MaxSize),
		})
	}

	for _, id := range l.IDs() {
		el := l.Elements[id]
		field := "element." + id
		if id == "" {
			errs = append(errs, ValidationError{Field: "element", Message: "empty id"})
		}
		if !knownType(el.Type) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("unknown type %q", el.Type)})
			continue
		}
		if _, err := el.ResolvedCode(); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
		}
		if el.Secondary != 0 && el.Type != TypeTrigger {
			errs = append(errs, ValidationError{Field: field, Message: "secondary is only valid for triggers"})
		}
		if el.Radius < 0 {
			errs = append(errs, ValidationError{Field: field, Message: "negative radius"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func knownType(t Type) bool {
	for _, k := range Types() {
		if k == t {
			return true
		}
	}
	return false
}
