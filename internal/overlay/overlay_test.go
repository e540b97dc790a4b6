package overlay

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputoverlay/internal/element"
	"inputoverlay/internal/gfx"
	"inputoverlay/internal/input"
	"inputoverlay/internal/layout"
	"inputoverlay/internal/settings"
)

const testLayout = `version = 1

[global]
width = 120
height = 80
gamepad = true
mouse_movement = false

[element.key_w]
type = "button"
code = 17
mapping = [0, 0, 20, 20]
pos = [10, 10]

[element.toggle_caps]
type = "button"
code = 58
toggle = true
mapping = [0, 0, 20, 20]
pos = [40, 10]

[element.triggers]
type = "trigger"
input = "pad_left_trigger"
secondary = 131331
mapping = [0, 50, 40, 10]
pos = [0, 60]
`

func writeAtlas(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	path := filepath.Join(dir, "atlas.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type fixture struct {
	store   *settings.Store
	holder  *element.Holder
	overlay *Overlay
}

func newFixture(s settings.Settings) *fixture {
	store := settings.NewStore(s)
	holder := element.NewHolder(element.SettingsDeadZone(store))
	return &fixture{store: store, holder: holder, overlay: New(store, holder, nil)}
}

func TestDrawBeforeLoad(t *testing.T) {
	f := newFixture(settings.Default())
	var rec gfx.Recorder
	f.overlay.Draw(&rec)

	assert.Empty(t, rec.Calls())
	assert.False(t, f.overlay.IsLoaded())
	assert.Equal(t, ModeNotLoaded, f.overlay.Mode())
	assert.NotNil(t, f.overlay.Registry())
}

func TestLoadMissingImage(t *testing.T) {
	s := settings.Default()
	s.ImageFile = filepath.Join(t.TempDir(), "missing.png")
	f := newFixture(s)

	err := f.overlay.Load(context.Background())
	assert.ErrorIs(t, err, ErrAssetMissing)
	assert.False(t, f.overlay.IsLoaded())
	assert.False(t, f.overlay.PassThrough())

	var rec gfx.Recorder
	f.overlay.Draw(&rec)
	assert.Empty(t, rec.Calls())

	w, h := f.overlay.Size()
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestLoadNoImageSet(t *testing.T) {
	f := newFixture(settings.Default())
	assert.ErrorIs(t, f.overlay.Load(context.Background()), ErrAssetMissing)
	assert.ErrorIs(t, f.overlay.Err(), ErrAssetMissing)
}

func TestPassThroughWithoutLayout(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 64, 48)
	s.LayoutFile = filepath.Join(dir, "absent.toml")
	f := newFixture(s)

	require.NoError(t, f.overlay.Load(context.Background()))
	assert.True(t, f.overlay.PassThrough())
	assert.False(t, f.overlay.IsLoaded())
	assert.Nil(t, f.overlay.Layout())

	var rec gfx.Recorder
	f.overlay.Draw(&rec)
	calls := rec.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, gfx.OpSprite, calls[0].Op)
	assert.Equal(t, image.Rect(0, 0, 64, 48), calls[0].Src)
	assert.Equal(t, image.Rect(0, 0, 64, 48), calls[0].Dst)

	w, h := f.overlay.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestPassThroughEmptyLayoutPath(t *testing.T) {
	s := settings.Default()
	s.ImageFile = writeAtlas(t, t.TempDir(), 32, 32)
	f := newFixture(s)

	require.NoError(t, f.overlay.Load(context.Background()))
	assert.True(t, f.overlay.PassThrough())
}

func TestMalformedLayoutFallsBack(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 64, 64)
	s.LayoutFile = writeFile(t, dir, "broken.toml", "[global\nwidth = ")
	f := newFixture(s)

	err := f.overlay.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssetMissing)
	assert.ErrorIs(t, err, layout.ErrMalformed)
	assert.True(t, f.overlay.PassThrough())

	var rec gfx.Recorder
	f.overlay.Draw(&rec)
	assert.Len(t, rec.Calls(), 1)
}

func TestOversizedLayoutUsesAtlasSize(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 64, 48)
	s.LayoutFile = writeFile(t, dir, "huge.toml", "[global]\nwidth = 2000000\nheight = 2000000\n")
	f := newFixture(s)

	err := f.overlay.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, layout.ErrMalformed)
	assert.True(t, f.overlay.PassThrough())

	w, h := f.overlay.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 48, h)
}

func TestLayoutMode(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 128, 128)
	s.LayoutFile = writeFile(t, dir, "layout.toml", testLayout)
	f := newFixture(s)

	require.NoError(t, f.overlay.Load(context.Background()))
	require.True(t, f.overlay.IsLoaded())
	assert.Equal(t, ModeLayout, f.overlay.Mode())
	assert.Equal(t, 3, f.overlay.Registry().Len())
	require.NotNil(t, f.overlay.Layout())
	assert.Equal(t, layout.Visibility{Gamepad: true}, layout.Visible(f.overlay.Layout()))

	w, h := f.overlay.Size()
	assert.Equal(t, 120, w)
	assert.Equal(t, 80, h)

	// Every element has data before the first draw.
	for _, el := range f.overlay.Registry().Elements() {
		_, ok := f.holder.Get(el.Code())
		assert.True(t, ok, el.ID())
	}

	var rec gfx.Recorder
	f.overlay.Draw(&rec)
	assert.Len(t, rec.Calls(), 3)

	f.holder.Apply(input.Press(input.Key(17), true))
	rec.Reset()
	f.overlay.Draw(&rec)
	key, ok := f.overlay.Registry().Lookup("key_w")
	require.True(t, ok)
	var pressedSrc image.Rectangle
	for _, c := range rec.Calls() {
		if c.Dst.Min == image.Pt(10, 10) {
			pressedSrc = c.Src
		}
	}
	assert.Equal(t, key.(*element.Button).PressedRegion(), pressedSrc)
}

func TestMouseMovementDisabledScenario(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 128, 128)
	s.LayoutFile = writeFile(t, dir, "layout.toml", testLayout)
	f := newFixture(s)
	require.NoError(t, f.overlay.Load(context.Background()))

	assert.False(t, layout.Visible(f.overlay.Layout()).MouseFields)

	before := f.holder.Snapshot()
	assert.False(t, f.holder.Apply(input.Move(25, -10)))
	assert.False(t, f.holder.Apply(input.Wheel(0, 1)))
	assert.Equal(t, before, f.holder.Snapshot())
}

func TestReloadKeepsPersistentState(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 128, 128)
	s.LayoutFile = writeFile(t, dir, "layout.toml", testLayout)
	f := newFixture(s)
	require.NoError(t, f.overlay.Load(context.Background()))

	caps := input.Key(58)
	w := input.Key(17)
	f.holder.Apply(input.Press(caps, true))
	f.holder.Apply(input.Press(caps, false))
	f.holder.Apply(input.Press(w, true))

	require.NoError(t, f.overlay.Load(context.Background()))

	d, ok := f.holder.Get(caps)
	require.True(t, ok)
	assert.True(t, d.(element.ButtonData).On, "toggle state survives reload")

	d, ok = f.holder.Get(w)
	require.True(t, ok)
	assert.False(t, d.(element.ButtonData).Pressed, "momentary state resets")
}

func TestSwitchToPassThroughDropsElements(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 128, 128)
	s.LayoutFile = writeFile(t, dir, "layout.toml", testLayout)
	f := newFixture(s)
	require.NoError(t, f.overlay.Load(context.Background()))
	require.NotZero(t, f.holder.Len())

	s.LayoutFile = ""
	f.store.Set(s)
	require.NoError(t, f.overlay.Load(context.Background()))
	assert.True(t, f.overlay.PassThrough())
	assert.Zero(t, f.holder.Len())
	assert.Zero(t, f.overlay.Registry().Len())
}

func TestLoadCanceled(t *testing.T) {
	f := newFixture(settings.Default())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.overlay.Load(ctx), context.Canceled)
	assert.Equal(t, ModeNotLoaded, f.overlay.Mode())
}

func TestLoadWhileDrawing(t *testing.T) {
	dir := t.TempDir()
	s := settings.Default()
	s.ImageFile = writeAtlas(t, dir, 128, 128)
	s.LayoutFile = writeFile(t, dir, "layout.toml", testLayout)
	f := newFixture(s)
	require.NoError(t, f.overlay.Load(context.Background()))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			var rec gfx.Recorder
			f.overlay.Draw(&rec)
			if n := len(rec.Calls()); n > 3 {
				t.Errorf("frame with %d draw calls", n)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			next := s
			if i%2 == 1 {
				next.LayoutFile = ""
			}
			f.store.Set(next)
			if err := f.overlay.Load(context.Background()); err != nil {
				t.Errorf("load: %v", err)
			}
		}
	}()

	// Give the loader time to finish before stopping the drawer.
	loaderDone := make(chan struct{})
	go func() {
		for f.overlay.Mode() != ModePassThrough {
			runtime.Gosched()
		}
		close(loaderDone)
	}()
	<-loaderDone
	close(stop)
	wg.Wait()
}
