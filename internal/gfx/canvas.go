package gfx

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

// Canvas is a software Effect that composites into an RGBA frame.
type Canvas struct {
	img       *image.RGBA
	bg        color.Color
	textColor color.Color
	face      font.Face
}

// NewCanvas creates a transparent canvas of the given size.
func NewCanvas(w, h int) *Canvas {
	return &Canvas{
		img:       image.NewRGBA(frameRect(w, h)),
		bg:        color.Transparent,
		textColor: color.White,
		face:      basicfont.Face7x13,
	}
}

// SetBackground sets the color used by Clear.
func (c *Canvas) SetBackground(col color.Color) {
	c.bg = col
}

// Resize reallocates the frame if the size changed. Each side is clamped
// to [0, MaxSide].
func (c *Canvas) Resize(w, h int) {
	r := frameRect(w, h)
	if c.img.Bounds() == r {
		return
	}
	c.img = image.NewRGBA(r)
}

func frameRect(w, h int) image.Rectangle {
	return image.Rect(0, 0, min(max(w, 0), MaxSide), min(max(h, 0), MaxSide))
}

// Clear fills the frame with the background color.
func (c *Canvas) Clear() {
	draw.Draw(c.img, c.img.Bounds(), &image.Uniform{c.bg}, image.Point{}, draw.Src)
}

// Image returns the composited frame.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// DrawSprite implements Effect.
func (c *Canvas) DrawSprite(tex *Texture, src, dst image.Rectangle) {
	if !tex.Valid() || src.Empty() || dst.Empty() {
		return
	}
	src = src.Intersect(tex.Bounds())
	if src.Empty() {
		return
	}
	if src.Dx() == dst.Dx() && src.Dy() == dst.Dy() {
		draw.Draw(c.img, dst, tex.img, src.Min, draw.Over)
		return
	}
	draw.ApproxBiLinear.Scale(c.img, dst, tex.img, src, draw.Over, nil)
}

// DrawSpriteRotated implements Effect.
func (c *Canvas) DrawSpriteRotated(tex *Texture, src image.Rectangle, center image.Point, angle float64) {
	if !tex.Valid() || src.Empty() {
		return
	}
	src = src.Intersect(tex.Bounds())
	if src.Empty() {
		return
	}

	sin, cos := math.Sincos(angle)
	sx := float64(src.Min.X) + float64(src.Dx())/2
	sy := float64(src.Min.Y) + float64(src.Dy())/2
	cx, cy := float64(center.X), float64(center.Y)

	// Maps source pixels to destination: translate to origin, rotate, move to center.
	s2d := f64.Aff3{
		cos, -sin, cx - cos*sx + sin*sy,
		sin, cos, cy - sin*sx - cos*sy,
	}
	draw.ApproxBiLinear.Transform(c.img, s2d, tex.img, src, draw.Over, nil)
}

// DrawText implements Effect.
func (c *Canvas) DrawText(text string, at image.Point) {
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(c.textColor),
		Face: c.face,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(text)
}
