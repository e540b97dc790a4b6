package main

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"inputoverlay/internal/input"
	"inputoverlay/internal/layout"
	"inputoverlay/internal/settings"
	"inputoverlay/internal/store"
)

const buttonLayout = `version = 1

[element.key_w]
type = "button"
code = 17
mapping = [0, 0, 20, 20]
pos = [10, 10]
`

var (
	released = color.RGBA{R: 0xff, A: 0xff}
	pressed  = color.RGBA{G: 0xff, A: 0xff}
)

// writeAssets writes a 64x48 atlas whose top rows are red and the rest
// green, so the released and pressed frames of the button differ.
func writeAssets(t *testing.T) (dir, atlas, layoutFile string) {
	t.Helper()
	dir = t.TempDir()

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			if y < 22 {
				img.Set(x, y, released)
			} else {
				img.Set(x, y, pressed)
			}
		}
	}
	atlas = filepath.Join(dir, "atlas.png")
	f, err := os.Create(atlas)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	layoutFile = filepath.Join(dir, "layout.toml")
	require.NoError(t, os.WriteFile(layoutFile, []byte(buttonLayout), 0o600))
	return dir, atlas, layoutFile
}

func TestParseCode(t *testing.T) {
	tests := []struct {
		in   string
		want input.Code
	}{
		{"17", input.Key(17)},
		{"key(30)", input.Key(30)},
		{"mouse_left", input.MouseLeft},
		{"mouse(4)", input.MouseX1},
		{"pad_a", input.PadA},
		{"pad(12)", input.PadDPadUp},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseCode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			// Names printed by the overlay parse back to the same code.
			again, err := parseCode(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}

	for _, bad := range []string{"nope", "joy(1)", "key(x)", "70000"} {
		_, err := parseCode(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCodes(t *testing.T) {
	codes, err := parseCodes(" 17, pad_b,,")
	require.NoError(t, err)
	assert.Equal(t, []input.Code{input.Key(17), input.PadB}, codes)

	codes, err = parseCodes("")
	require.NoError(t, err)
	assert.Empty(t, codes)
}

func TestRenderFrame(t *testing.T) {
	_, atlas, layoutFile := writeAssets(t)
	s := settings.Default()
	s.ImageFile = atlas
	s.LayoutFile = layoutFile

	opts := renderOptions{Settings: s, Background: 0x000000ff}
	frame, st, err := renderFrame(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "layout", st.Mode)
	assert.Equal(t, 1, st.Elements)
	require.Equal(t, image.Rect(0, 0, 64, 48), frame.Bounds())
	assert.Equal(t, released, frame.RGBAAt(15, 15))
	assert.Equal(t, color.RGBA{A: 0xff}, frame.RGBAAt(5, 5), "outside the element is background")

	opts.Presses = []input.Code{input.Key(17)}
	frame, _, err = renderFrame(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, pressed, frame.RGBAAt(15, 15))
}

func TestRenderFrameReplay(t *testing.T) {
	_, atlas, layoutFile := writeAssets(t)
	s := settings.Default()
	s.ImageFile = atlas
	s.LayoutFile = layoutFile

	start := time.Unix(1700000000, 0)
	var events []input.Event
	for i, down := range []bool{true, false, true} {
		e := store.Entry{Code: input.Key(17), Pressed: down, TimestampNs: start.Add(time.Duration(i) * time.Second).UnixNano()}
		events = append(events, e.Event())
	}

	frame, _, err := renderFrame(context.Background(), renderOptions{Settings: s, Background: 0xff, Replay: events})
	require.NoError(t, err)
	assert.Equal(t, pressed, frame.RGBAAt(15, 15), "ends held down")

	frame, _, err = renderFrame(context.Background(), renderOptions{Settings: s, Background: 0xff, Replay: events[:2]})
	require.NoError(t, err)
	assert.Equal(t, released, frame.RGBAAt(15, 15), "ends released")
}

func TestRenderFramePassThrough(t *testing.T) {
	_, atlas, _ := writeAssets(t)
	s := settings.Default()
	s.ImageFile = atlas

	frame, st, err := renderFrame(context.Background(), renderOptions{Settings: s, Background: 0xff})
	require.NoError(t, err)
	assert.True(t, st.PassThrough)
	assert.Equal(t, released, frame.RGBAAt(0, 0))
	assert.Equal(t, pressed, frame.RGBAAt(63, 47))
}

func TestRenderFrameMissingImage(t *testing.T) {
	s := settings.Default()
	s.ImageFile = filepath.Join(t.TempDir(), "missing.png")

	_, _, err := renderFrame(context.Background(), renderOptions{Settings: s})
	assert.Error(t, err)
}

func TestWriteImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, pressed)
	dir := t.TempDir()

	decoders := map[string]func(*os.File) (image.Image, error){
		"out.png":  func(f *os.File) (image.Image, error) { return png.Decode(f) },
		"out.bmp":  func(f *os.File) (image.Image, error) { return bmp.Decode(f) },
		"out.tiff": func(f *os.File) (image.Image, error) { return tiff.Decode(f) },
	}
	for name, decode := range decoders {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, writeImage(path, img))

			f, err := os.Open(path)
			require.NoError(t, err)
			defer f.Close()
			got, err := decode(f)
			require.NoError(t, err)
			assert.Equal(t, img.Bounds(), got.Bounds())
			r, g, b, _ := got.At(1, 1).RGBA()
			assert.Equal(t, [3]uint32{0, 0xffff, 0}, [3]uint32{r, g, b})
		})
	}

	require.NoError(t, writeImage(filepath.Join(dir, "out.jpg"), img))

	bad := filepath.Join(dir, "out.webp")
	assert.Error(t, writeImage(bad, img))
	_, err := os.Stat(bad)
	assert.True(t, os.IsNotExist(err), "failed output is removed")
}

func TestCheckLayout(t *testing.T) {
	_, atlas, layoutFile := writeAssets(t)

	report, err := checkLayout(layoutFile, "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Types[layout.TypeButton])
	assert.True(t, report.Atlas.Empty())
	assert.Empty(t, report.Warnings)

	report, err = checkLayout(layoutFile, atlas)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), report.Atlas)
	assert.Empty(t, report.Warnings)
}

func TestCheckLayoutOutsideAtlas(t *testing.T) {
	dir, atlas, _ := writeAssets(t)
	path := filepath.Join(dir, "wide.toml")
	require.NoError(t, os.WriteFile(path, []byte(`version = 1

[element.key_w]
type = "button"
code = 17
mapping = [50, 0, 40, 20]
pos = [0, 0]
`), 0o600))

	report, err := checkLayout(path, atlas)
	require.NoError(t, err)
	assert.Len(t, report.Warnings, 1)
}

func TestCheckLayoutMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[element.x]\ntype = \"lever\"\n"), 0o600))

	_, err := checkLayout(path, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, layout.ErrMalformed)
}
