package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"inputoverlay/internal/config"
	"inputoverlay/internal/gfx"
	"inputoverlay/internal/hook"
	"inputoverlay/internal/input"
	"inputoverlay/internal/settings"
	"inputoverlay/internal/source"
)

type renderOptions struct {
	Settings   settings.Settings
	Presses    []input.Code
	Background uint32

	// Replay is fed through a hook before the frame is drawn, spaced by
	// Speed (0 delivers the events back to back).
	Replay []input.Event
	Speed  float64
}

func cmdRender() {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	configPath := fs.String("config", "", configFlagUsage)
	imageFile := fs.String("image", "", "Texture atlas (overrides overlay.image_file)")
	layoutFile := fs.String("layout", "", "Layout file (overrides overlay.layout_file)")
	press := fs.String("press", "", "Comma-separated codes to draw pressed (17, key(30), mouse_left, pad_a)")
	bg := fs.String("bg", "", "Background color as #rrggbb or #rrggbbaa (default: preview.background)")
	out := fs.String("o", "frame.png", "Output file (.png, .jpg, .bmp, .tif)")
	fs.Parse(os.Args[2:])

	path := resolveConfigPath(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("loading config: %v", err)
	}

	opts := renderOptions{Settings: cfg.Settings(filepath.Dir(path))}
	if *imageFile != "" {
		opts.Settings.ImageFile = *imageFile
	}
	if *layoutFile != "" {
		opts.Settings.LayoutFile = *layoutFile
	}
	if opts.Presses, err = parseCodes(*press); err != nil {
		fatalf("parsing -press: %v", err)
	}
	background := cfg.Preview.Background
	if *bg != "" {
		background = *bg
	}
	if opts.Background, err = config.ParseColor(background); err != nil {
		fatalf("parsing background: %v", err)
	}

	frame, st, err := renderFrame(context.Background(), opts)
	if err != nil {
		fatalf("rendering: %v", err)
	}
	if err := writeImage(*out, frame); err != nil {
		fatalf("writing %s: %v", *out, err)
	}

	fmt.Printf("Rendered %dx%d frame (%s mode, %d elements) to %s\n",
		st.Width, st.Height, st.Mode, st.Elements, *out)
	if st.Error != "" {
		fmt.Printf("Warning: %s\n", st.Error)
	}
	for _, w := range st.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
}

// renderFrame loads the overlay, replays opts.Replay, applies the presses
// and draws one frame. An overlay that could not load its image is an
// error here, since there is nothing to draw.
func renderFrame(ctx context.Context, opts renderOptions) (*image.RGBA, source.Status, error) {
	var hooks []hook.Hook
	replayed := make(chan struct{})
	if len(opts.Replay) > 0 {
		replay := hook.Replay(opts.Replay, opts.Speed)
		hooks = append(hooks, hook.NewFunc("replay", func(ctx context.Context, emit func(input.Event)) error {
			defer close(replayed)
			return replay(ctx, emit)
		}))
	} else {
		close(replayed)
	}

	src := source.New(ctx, opts.Settings, source.Options{
		Hooks:  hooks,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer src.Destroy()

	st := src.Status()
	if st.Width == 0 || st.Height == 0 {
		if st.Error != "" {
			return nil, st, fmt.Errorf("nothing to draw: %s", st.Error)
		}
		return nil, st, fmt.Errorf("nothing to draw: no image configured")
	}

	select {
	case <-replayed:
	case <-ctx.Done():
		return nil, st, ctx.Err()
	}

	holder := src.Holder()
	for _, code := range opts.Presses {
		holder.Apply(input.Press(code, true))
	}

	canvas := gfx.NewCanvas(st.Width, st.Height)
	canvas.SetBackground(color.NRGBA{
		R: uint8(opts.Background >> 24),
		G: uint8(opts.Background >> 16),
		B: uint8(opts.Background >> 8),
		A: uint8(opts.Background),
	})
	canvas.Clear()
	src.Render(canvas)
	return canvas.Image(), st, nil
}

// parseCodes accepts well-known names (mouse_left, pad_a), class-prefixed
// indices (key(30), mouse(4), pad(12)) and bare numbers as keyboard keys.
func parseCodes(list string) ([]input.Code, error) {
	var codes []input.Code
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		code, err := parseCode(field)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func parseCode(s string) (input.Code, error) {
	if code, ok := input.ParseCode(s); ok {
		return code, nil
	}
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		return input.Key(uint16(n)), nil
	}

	open := strings.IndexByte(s, '(')
	if open > 0 && strings.HasSuffix(s, ")") {
		n, err := strconv.ParseUint(s[open+1:len(s)-1], 10, 16)
		if err == nil {
			var class input.Class
			switch s[:open] {
			case "key":
				class = input.ClassKeyboard
			case "mouse":
				class = input.ClassMouse
			case "pad":
				class = input.ClassGamepad
			default:
				return 0, fmt.Errorf("unknown code class %q", s[:open])
			}
			return input.Code(uint32(class)<<16 | uint32(n)), nil
		}
	}
	return 0, fmt.Errorf("unknown code %q", s)
}

// writeImage encodes img by the extension of path.
func writeImage(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		err = bmp.Encode(f, img)
	case ".tif", ".tiff":
		err = tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
	case ".png", "":
		err = png.Encode(f, img)
	default:
		err = fmt.Errorf("unsupported output format %q", filepath.Ext(path))
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
	}
	return err
}
