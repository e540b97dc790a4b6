// Package gfx provides the drawing primitives the overlay needs from its
// host: a texture handle and an Effect that binds a texture region and
// draws it as a sprite.
//
// Canvas is the software implementation backed by golang.org/x/image/draw;
// Recorder captures draw calls for inspection.
package gfx

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxSide is the largest texture or frame dimension, in pixels.
const MaxSide = 16384

var (
	// ErrUnsupportedImage is returned for files whose extension is not an image format.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrImageTooLarge is returned for images wider or taller than MaxSide.
	ErrImageTooLarge = errors.New("image too large")
)

// Texture is a decoded bitmap addressed by rectangles.
type Texture struct {
	img  image.Image
	path string
}

// NewTexture wraps an already decoded image.
func NewTexture(img image.Image) *Texture {
	return &Texture{img: img}
}

// Image returns the underlying image.
func (t *Texture) Image() image.Image {
	return t.img
}

// Path returns the file the texture was loaded from, if any.
func (t *Texture) Path() string {
	return t.path
}

// Bounds returns the texture bounds.
func (t *Texture) Bounds() image.Rectangle {
	if t == nil || t.img == nil {
		return image.Rectangle{}
	}
	return t.img.Bounds()
}

// Valid reports whether the texture can be drawn.
func (t *Texture) Valid() bool {
	return t != nil && t.img != nil && !t.img.Bounds().Empty()
}

// SupportedExtensions lists the image file extensions LoadTexture accepts.
func SupportedExtensions() []string {
	return []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".tif", ".tiff", ".webp"}
}

// LoadTexture decodes the image at path.
func LoadTexture(path string) (*Texture, error) {
	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, e := range SupportedExtensions() {
		if e == ext {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if cfg.Width > MaxSide || cfg.Height > MaxSide {
		return nil, fmt.Errorf("%w: %s is %dx%d, limit %d",
			ErrImageTooLarge, filepath.Base(path), cfg.Width, cfg.Height, MaxSide)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &Texture{img: img, path: path}, nil
}

// Effect is the texture-binding target handed to render calls.
type Effect interface {
	// DrawSprite draws the src region of tex into dst, scaling if sizes differ.
	DrawSprite(tex *Texture, src, dst image.Rectangle)
	// DrawSpriteRotated draws the src region centered on center, rotated by angle radians.
	DrawSpriteRotated(tex *Texture, src image.Rectangle, center image.Point, angle float64)
	// DrawText draws a short label with its baseline starting at at.
	DrawText(text string, at image.Point)
}
