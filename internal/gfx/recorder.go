package gfx

import (
	"image"
	"sync"
)

// Op names a recorded draw call.
type Op string

const (
	OpSprite        Op = "sprite"
	OpSpriteRotated Op = "sprite_rotated"
	OpText          Op = "text"
)

// Call is one recorded draw call.
type Call struct {
	Op      Op
	Texture *Texture
	Src     image.Rectangle
	Dst     image.Rectangle
	Center  image.Point
	Angle   float64
	Text    string
}

// Recorder is an Effect that records calls instead of drawing.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// DrawSprite implements Effect.
func (r *Recorder) DrawSprite(tex *Texture, src, dst image.Rectangle) {
	r.add(Call{Op: OpSprite, Texture: tex, Src: src, Dst: dst})
}

// DrawSpriteRotated implements Effect.
func (r *Recorder) DrawSpriteRotated(tex *Texture, src image.Rectangle, center image.Point, angle float64) {
	r.add(Call{Op: OpSpriteRotated, Texture: tex, Src: src, Center: center, Angle: angle})
}

// DrawText implements Effect.
func (r *Recorder) DrawText(text string, at image.Point) {
	r.add(Call{Op: OpText, Dst: image.Rectangle{Min: at, Max: at}, Text: text})
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Reset drops all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *Recorder) add(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}
