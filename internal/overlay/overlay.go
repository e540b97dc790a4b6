// Package overlay composites the texture atlas and the element registry
// into one frame.
//
// Load does all file I/O and builds the new state off the render path;
// the result is published with a single pointer swap, so a Draw that is
// already running finishes with the state it started with and the next
// Draw sees the new one.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"inputoverlay/internal/element"
	"inputoverlay/internal/gfx"
	"inputoverlay/internal/layout"
	"inputoverlay/internal/settings"
)

// ErrAssetMissing is returned when the image or layout file is absent or
// cannot be decoded. It never stops rendering.
var ErrAssetMissing = errors.New("overlay asset missing")

// Mode is what Draw renders.
type Mode int

const (
	// ModeNotLoaded draws nothing.
	ModeNotLoaded Mode = iota
	// ModePassThrough draws the whole atlas as one sprite.
	ModePassThrough
	// ModeLayout draws every element of the layout.
	ModeLayout
)

func (m Mode) String() string {
	switch m {
	case ModePassThrough:
		return "pass-through"
	case ModeLayout:
		return "layout"
	default:
		return "not loaded"
	}
}

// state is one immutable snapshot published by Load.
type state struct {
	mode     Mode
	texture  *gfx.Texture
	registry *element.Registry
	layout   *layout.Layout
	size     image.Point
	err      error
	loadedAt time.Time
}

var notLoaded = &state{mode: ModeNotLoaded, registry: element.NewRegistryFrom()}

// Overlay owns the atlas and the element registry.
type Overlay struct {
	store  *settings.Store
	holder *element.Holder
	logger *slog.Logger

	loadMu sync.Mutex
	state  atomic.Pointer[state]
}

// New creates an overlay that reads paths from store and element state
// from holder. Nothing is drawn until the first Load.
func New(store *settings.Store, holder *element.Holder, logger *slog.Logger) *Overlay {
	if logger == nil {
		logger = slog.Default().With("component", "overlay")
	}
	o := &Overlay{store: store, holder: holder, logger: logger}
	o.state.Store(notLoaded)
	return o
}

// Load reloads the atlas and layout named by the current settings.
//
// A missing or undecodable image leaves the overlay not loaded and returns
// ErrAssetMissing. An empty or absent layout path selects pass-through
// mode without error. A layout that fails to parse also selects
// pass-through, and the parse error is returned wrapped in
// ErrAssetMissing.
func (o *Overlay) Load(ctx context.Context) error {
	o.loadMu.Lock()
	defer o.loadMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	s := o.store.Load()

	if s.ImageFile == "" {
		err := fmt.Errorf("%w: no image file set", ErrAssetMissing)
		o.publish(&state{mode: ModeNotLoaded, registry: notLoaded.registry, err: err})
		return err
	}
	tex, err := gfx.LoadTexture(s.ImageFile)
	if err != nil {
		err = fmt.Errorf("%w: image %s: %w", ErrAssetMissing, s.ImageFile, err)
		o.publish(&state{mode: ModeNotLoaded, registry: notLoaded.registry, err: err})
		o.logger.Warn("overlay image not loaded", "path", s.ImageFile, "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	passThrough := func(err error) error {
		o.publish(&state{
			mode:     ModePassThrough,
			texture:  tex,
			registry: notLoaded.registry,
			size:     tex.Bounds().Size(),
			err:      err,
		})
		o.holder.Rebuild(nil)
		return err
	}

	if s.LayoutFile == "" {
		o.logger.Debug("no layout file, pass-through mode", "image", s.ImageFile)
		return passThrough(nil)
	}
	l, err := layout.Parse(s.LayoutFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			o.logger.Info("layout file missing, pass-through mode", "path", s.LayoutFile)
			return passThrough(nil)
		}
		o.logger.Warn("layout not loaded, pass-through mode", "path", s.LayoutFile, "error", err)
		return passThrough(fmt.Errorf("%w: layout %s: %w", ErrAssetMissing, s.LayoutFile, err))
	}

	reg := element.NewRegistry(l, tex.Bounds())
	for _, w := range reg.Warnings() {
		o.logger.Warn("layout element", "path", s.LayoutFile, "warning", w)
	}

	size := tex.Bounds().Size()
	if l.Global.Width > 0 && l.Global.Height > 0 {
		size = image.Pt(l.Global.Width, l.Global.Height)
	}

	// Every element gets its data entry before the registry becomes visible.
	o.holder.Rebuild(reg)
	o.publish(&state{
		mode:     ModeLayout,
		texture:  tex,
		registry: reg,
		layout:   l,
		size:     size,
	})
	o.logger.Info("overlay loaded",
		"image", s.ImageFile,
		"layout", s.LayoutFile,
		"elements", reg.Len(),
		"warnings", len(reg.Warnings()),
	)
	return nil
}

func (o *Overlay) publish(st *state) {
	st.loadedAt = time.Now()
	o.state.Store(st)
}

// Draw renders the current state into fx. It never blocks on Load.
func (o *Overlay) Draw(fx gfx.Effect) {
	st := o.state.Load()
	if fx == nil || !st.texture.Valid() {
		return
	}
	switch st.mode {
	case ModePassThrough:
		fx.DrawSprite(st.texture, st.texture.Bounds(), image.Rectangle{Max: st.size})
	case ModeLayout:
		s := o.store.Load()
		for _, el := range st.registry.Elements() {
			data, ok := o.holder.GetKind(el.Code(), el.Kind())
			if !ok {
				continue
			}
			el.Draw(fx, st.texture, data, s)
		}
	}
}

// IsLoaded reports whether both the image and a layout are loaded.
func (o *Overlay) IsLoaded() bool {
	return o.state.Load().mode == ModeLayout
}

// PassThrough reports whether Draw shows the whole atlas.
func (o *Overlay) PassThrough() bool {
	return o.state.Load().mode == ModePassThrough
}

// Mode returns the current draw mode.
func (o *Overlay) Mode() Mode {
	return o.state.Load().mode
}

// Size returns the frame size: the layout size when set, else the atlas
// size, else zero.
func (o *Overlay) Size() (int, int) {
	sz := o.state.Load().size
	return sz.X, sz.Y
}

// Layout returns the loaded layout, or nil outside layout mode.
func (o *Overlay) Layout() *layout.Layout {
	return o.state.Load().layout
}

// Registry returns the element registry in use. It is never nil.
func (o *Overlay) Registry() *element.Registry {
	return o.state.Load().registry
}

// Texture returns the loaded atlas, or nil.
func (o *Overlay) Texture() *gfx.Texture {
	return o.state.Load().texture
}

// Err returns the error of the last Load, if any.
func (o *Overlay) Err() error {
	return o.state.Load().err
}

// LoadedAt returns when the current state was published.
func (o *Overlay) LoadedAt() time.Time {
	return o.state.Load().loadedAt
}
