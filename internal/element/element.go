package element

import (
	"errors"
	"fmt"
	"image"
	"math"

	"inputoverlay/internal/gfx"
	"inputoverlay/internal/input"
	"inputoverlay/internal/layout"
	"inputoverlay/internal/settings"
)

// ErrMalformedRegion marks an element whose atlas rectangle is invalid.
// Such an element is still created, with an empty region, and draws nothing.
var ErrMalformedRegion = errors.New("malformed atlas region")

// FrameBorder is the gap in pixels between adjacent frames in the atlas.
const FrameBorder = 3

// Element describes how to draw one input. Elements are immutable after
// construction and are replaced wholesale on reload.
type Element interface {
	ID() string
	Kind() Kind
	Code() input.Code
	// Secondary is the code of a duplicate source merged into Code, or 0.
	Secondary() input.Code
	// Aliases are extra codes whose events also update this element.
	Aliases() []input.Code
	ZLevel() int
	Region() image.Rectangle
	Pos() image.Point
	DefaultData() Data
	// Draw renders the element. It does nothing without a texture, with
	// an empty region, or when data is nil or of another kind.
	Draw(fx gfx.Effect, tex *gfx.Texture, data Data, s *settings.Settings)
}

type base struct {
	id     string
	code   input.Code
	region image.Rectangle
	pos    image.Point
	z      int
}

func (b *base) ID() string              { return b.id }
func (b *base) Code() input.Code        { return b.code }
func (b *base) Secondary() input.Code   { return 0 }
func (b *base) Aliases() []input.Code   { return nil }
func (b *base) ZLevel() int             { return b.z }
func (b *base) Region() image.Rectangle { return b.region }
func (b *base) Pos() image.Point        { return b.pos }

func (b *base) dst(offset image.Point) image.Rectangle {
	at := b.pos.Add(offset)
	return image.Rectangle{Min: at, Max: at.Add(b.region.Size())}
}

func (b *base) drawable(tex *gfx.Texture) bool {
	return tex.Valid() && !b.region.Empty()
}

// New builds the element for one layout section. atlas is the bounds of the
// texture; an empty atlas skips the bounds check.
//
// A non-nil error with a non-nil Element is a warning (ErrMalformedRegion):
// the element is usable but invisible.
func New(id string, cfg layout.Element, atlas image.Rectangle) (Element, error) {
	code, err := cfg.ResolvedCode()
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", id, err)
	}

	var warn error
	region, err := rect(cfg.Mapping, atlas)
	if err != nil {
		warn = fmt.Errorf("element %s: mapping: %w", id, err)
	}
	pos := image.Point{}
	switch len(cfg.Pos) {
	case 0:
	case 2:
		pos = image.Pt(cfg.Pos[0], cfg.Pos[1])
	default:
		warn = errors.Join(warn, fmt.Errorf("element %s: pos: %w: want 2 values, got %d", id, ErrMalformedRegion, len(cfg.Pos)))
	}

	b := base{id: id, code: code, region: region, pos: pos, z: cfg.ZLevel}
	size := region.Size()
	radius := cfg.Radius

	switch cfg.Type {
	case layout.TypeButton:
		pressed, err := pressedRegion(cfg.Pressed, region, atlas)
		if err != nil {
			warn = errors.Join(warn, fmt.Errorf("element %s: pressed: %w", id, err))
		}
		return &Button{base: b, pressed: pressed, toggle: cfg.Toggle}, warn

	case layout.TypeTrigger:
		pressed, err := pressedRegion(cfg.Pressed, region, atlas)
		if err != nil {
			warn = errors.Join(warn, fmt.Errorf("element %s: pressed: %w", id, err))
		}
		return &TriggerPair{
			base:      b,
			secondary: input.Code(cfg.Secondary),
			pressed:   pressed,
			fill:      cfg.Fill,
			label:     cfg.Label,
		}, warn

	case layout.TypeMouseMovement:
		if radius == 0 {
			radius = max(size.X, size.Y)
		}
		return &MouseMove{base: b, radius: radius, arrow: cfg.Arrow}, warn

	case layout.TypeStick:
		pressed, err := pressedRegion(cfg.Pressed, region, atlas)
		if err != nil {
			warn = errors.Join(warn, fmt.Errorf("element %s: pressed: %w", id, err))
		}
		if radius == 0 {
			radius = max(size.X, size.Y) / 2
		}
		return &Stick{
			base:    b,
			pressed: pressed,
			radius:  radius,
			invertX: cfg.InvertX,
			invertY: cfg.InvertY,
		}, warn

	case layout.TypeWheel:
		return &Wheel{base: b, frames: wheelFrames(region, atlas)}, warn
	}
	return nil, fmt.Errorf("element %s: unknown type %q", id, cfg.Type)
}

// rect converts [x, y, w, h] to a rectangle inside atlas.
func rect(v []int, atlas image.Rectangle) (image.Rectangle, error) {
	if len(v) != 4 {
		return image.Rectangle{}, fmt.Errorf("%w: want 4 values, got %d", ErrMalformedRegion, len(v))
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: non-positive size %dx%d", ErrMalformedRegion, v[2], v[3])
	}
	r := image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3])
	if !atlas.Empty() && !r.In(atlas) {
		return image.Rectangle{}, fmt.Errorf("%w: %v outside atlas %v", ErrMalformedRegion, r, atlas)
	}
	return r, nil
}

// pressedRegion returns the explicit pressed rectangle, or the frame
// directly below region. It falls back to region when the frame below does
// not fit the atlas.
func pressedRegion(v []int, region, atlas image.Rectangle) (image.Rectangle, error) {
	if region.Empty() {
		return image.Rectangle{}, nil
	}
	if len(v) > 0 {
		r, err := rect(v, atlas)
		if err != nil {
			return region, err
		}
		return r, nil
	}
	below := region.Add(image.Pt(0, region.Dy()+FrameBorder))
	if !atlas.Empty() && !below.In(atlas) {
		return region, nil
	}
	return below, nil
}

// Button swaps between its normal and pressed regions.
type Button struct {
	base
	pressed image.Rectangle
	toggle  bool
}

func (e *Button) Kind() Kind                     { return KindButton }
func (e *Button) DefaultData() Data              { return ButtonData{Toggle: e.toggle} }
func (e *Button) PressedRegion() image.Rectangle { return e.pressed }

func (e *Button) Draw(fx gfx.Effect, tex *gfx.Texture, data Data, _ *settings.Settings) {
	d, ok := data.(ButtonData)
	if !ok || !e.drawable(tex) {
		return
	}
	src := e.region
	if d.Active() {
		src = e.pressed
	}
	fx.DrawSprite(tex, src, e.dst(image.Point{}))
}

// TriggerPair draws two related inputs (usually the left and right analog
// triggers) as one control.
type TriggerPair struct {
	base
	secondary input.Code
	pressed   image.Rectangle
	fill      bool
	label     bool
}

func (e *TriggerPair) Kind() Kind                     { return KindTrigger }
func (e *TriggerPair) Secondary() input.Code          { return e.secondary }
func (e *TriggerPair) DefaultData() Data              { return TriggerData{} }
func (e *TriggerPair) PressedRegion() image.Rectangle { return e.pressed }

func (e *TriggerPair) Draw(fx gfx.Effect, tex *gfx.Texture, data Data, _ *settings.Settings) {
	d, ok := data.(TriggerData)
	if !ok || !e.drawable(tex) {
		return
	}
	dst := e.dst(image.Point{})
	switch {
	case !d.Pressed():
		fx.DrawSprite(tex, e.region, dst)
	case e.fill:
		fx.DrawSprite(tex, e.region, dst)
		v := d.Value()
		if v <= 0 {
			v = 1
		}
		w := int(math.Round(float64(e.pressed.Dx()) * v))
		if w > 0 {
			src := e.pressed
			src.Max.X = src.Min.X + w
			fx.DrawSprite(tex, src, image.Rectangle{Min: dst.Min, Max: image.Pt(dst.Min.X+w, dst.Max.Y)})
		}
	default:
		fx.DrawSprite(tex, e.pressed, dst)
	}
	if e.label {
		text := fmt.Sprintf("%d%% %d%%", int(math.Round(d.Left*100)), int(math.Round(d.Right*100)))
		fx.DrawText(text, image.Pt(dst.Min.X, dst.Max.Y+13))
	}
}

// MouseMove draws a dot (or an arrow pointing along the movement) offset
// from the element center by the recent mouse movement.
type MouseMove struct {
	base
	radius int
	arrow  bool
}

func (e *MouseMove) Kind() Kind        { return KindMouseMove }
func (e *MouseMove) DefaultData() Data { return MouseMoveData{} }
func (e *MouseMove) Radius() int       { return e.radius }

// Offset returns the indicator offset in pixels for d under s.
func (e *MouseMove) Offset(d MouseMoveData, s *settings.Settings) (float64, float64) {
	if s == nil {
		def := settings.Default()
		s = &def
	}
	dx, dy := d.Offset()
	if s.UseMonitorCenter {
		dx, dy = d.CenterOffset(float64(s.MonitorHCenter), float64(s.MonitorVCenter))
	}
	dist := math.Hypot(dx, dy)
	if dist == 0 || dist < float64(s.MouseDeadZone) {
		return 0, 0
	}
	sens := float64(max(s.MouseSensitivity, settings.MinMouseSensitivity))
	scale := math.Min(dist/sens, 1) * float64(e.radius) / dist
	return dx * scale, dy * scale
}

func (e *MouseMove) Draw(fx gfx.Effect, tex *gfx.Texture, data Data, s *settings.Settings) {
	d, ok := data.(MouseMoveData)
	if !ok || !e.drawable(tex) {
		return
	}
	ox, oy := e.Offset(d, s)
	if e.arrow {
		center := e.pos.Add(e.region.Size().Div(2))
		angle := 0.0
		if ox != 0 || oy != 0 {
			angle = math.Atan2(oy, ox)
		}
		fx.DrawSpriteRotated(tex, e.region, center, angle)
		return
	}
	fx.DrawSprite(tex, e.region, e.dst(image.Pt(int(math.Round(ox)), int(math.Round(oy)))))
}

// Stick draws a thumb stick offset by its position times the radius.
type Stick struct {
	base
	pressed          image.Rectangle
	radius           int
	invertX, invertY bool
}

func (e *Stick) Kind() Kind        { return KindStick }
func (e *Stick) DefaultData() Data { return StickData{} }
func (e *Stick) Radius() int       { return e.radius }

// Aliases routes the stick click buttons to the stick.
func (e *Stick) Aliases() []input.Code {
	switch e.code {
	case input.PadLeftStick:
		return []input.Code{input.PadL3}
	case input.PadRightStick:
		return []input.Code{input.PadR3}
	}
	return nil
}

func (e *Stick) Draw(fx gfx.Effect, tex *gfx.Texture, data Data, _ *settings.Settings) {
	d, ok := data.(StickData)
	if !ok || !e.drawable(tex) {
		return
	}
	x, y := d.X, d.Y
	if e.invertX {
		x = -x
	}
	if e.invertY {
		y = -y
	}
	off := image.Pt(int(math.Round(x*float64(e.radius))), int(math.Round(y*float64(e.radius))))
	src := e.region
	if d.Pressed {
		src = e.pressed
	}
	fx.DrawSprite(tex, src, e.dst(off))
}

// Wheel draws the mouse wheel: a base frame with the middle button, scroll
// up and scroll down frames laid out to its right.
type Wheel struct {
	base
	frames [4]image.Rectangle
}

// Wheel frame indexes.
const (
	WheelFrameBase = iota
	WheelFrameMiddle
	WheelFrameUp
	WheelFrameDown
)

func (e *Wheel) Kind() Kind        { return KindWheel }
func (e *Wheel) DefaultData() Data { return WheelData{} }

// Aliases routes the middle mouse button to the wheel.
func (e *Wheel) Aliases() []input.Code { return []input.Code{input.MouseMiddle} }

// Frame returns one of the WheelFrame* regions; it is empty when the frame
// does not fit the atlas.
func (e *Wheel) Frame(i int) image.Rectangle { return e.frames[i] }

func (e *Wheel) Draw(fx gfx.Effect, tex *gfx.Texture, data Data, _ *settings.Settings) {
	d, ok := data.(WheelData)
	if !ok || !e.drawable(tex) {
		return
	}
	dst := e.dst(image.Point{})
	fx.DrawSprite(tex, e.frames[WheelFrameBase], dst)
	for _, f := range []struct {
		on    bool
		frame int
	}{
		{d.Middle, WheelFrameMiddle},
		{d.Up, WheelFrameUp},
		{d.Down, WheelFrameDown},
	} {
		if f.on && !e.frames[f.frame].Empty() {
			fx.DrawSprite(tex, e.frames[f.frame], dst)
		}
	}
}

func wheelFrames(region, atlas image.Rectangle) [4]image.Rectangle {
	var frames [4]image.Rectangle
	if region.Empty() {
		return frames
	}
	step := region.Dx() + FrameBorder
	for i := range frames {
		r := region.Add(image.Pt(i*step, 0))
		if atlas.Empty() || r.In(atlas) {
			frames[i] = r
		}
	}
	return frames
}
