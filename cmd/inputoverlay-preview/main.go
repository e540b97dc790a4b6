// inputoverlay-preview shows the overlay in a desktop window, driven by
// the live input hooks, for setting up layouts without a streaming
// application.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"gioui.org/app"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"inputoverlay/cmd/inputoverlay-preview/internal/theme"
	"inputoverlay/cmd/inputoverlay-preview/internal/ui"
	"inputoverlay/internal/config"
	"inputoverlay/internal/host"
	"inputoverlay/internal/logging"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Configuration file (default: search the platform config directory)")
	scale := flag.Float64("scale", 0, "Screen pixels per overlay pixel (default: preview.scale, 0 fits the window)")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.FindConfigFile()
	}

	ctx, cancel := context.WithCancel(context.Background())
	h, err := host.New(ctx, host.Options{ConfigPath: path, Version: version})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error starting overlay: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefaultCrashHandler(h.Crash())

	cfg := h.Config()
	s := *scale
	if s == 0 {
		s = cfg.Preview.Scale
	}

	go func() {
		defer logging.RecoverPanic()

		w := new(app.Window)
		w.Option(app.Title(ui.StatusLine(h.Source().Status())))
		width, height := h.Source().Width(), h.Source().Height()
		if width == 0 || height == 0 {
			width, height = 640, 360
		}
		if s > 0 {
			width, height = int(float64(width)*s), int(float64(height)*s)
		}
		w.Option(app.Size(unit.Dp(width+300), unit.Dp(max(height+40, 480))))

		go h.Run(ctx, cfg.Preview.FPS)
		go ui.CheckLoop(ctx, h.Checker(), 2*time.Second)
		go invalidate(ctx, w, cfg.Preview.FPS)

		err := loop(w, h, s)
		cancel()
		if cerr := h.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()
	app.Main()
}

func loop(w *app.Window, h *host.Host, scale float64) error {
	t := theme.NewTheme(material.NewTheme())
	preview := ui.NewPreview(t, h, scale)
	preview.Snapshot = func() (string, error) { return saveSnapshot(h) }

	title := ""
	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			if next := ui.StatusLine(h.Source().Status()); next != title {
				title = next
				w.Option(app.Title(title))
			}

			gtx := app.NewContext(&ops, e)
			preview.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}

// invalidate redraws the window at fps.
func invalidate(ctx context.Context, w *app.Window, fps int) {
	if fps <= 0 {
		fps = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Invalidate()
		}
	}
}

func saveSnapshot(h *host.Host) (string, error) {
	frame := h.Frame()
	if frame.Bounds().Empty() {
		return "", fmt.Errorf("no frame")
	}
	dir := filepath.Join(config.DataDir(), "snapshots")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "frame-"+time.Now().Format("20060102-150405")+".png")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, frame); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
