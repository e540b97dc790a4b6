package ui

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/unit"
	"gioui.org/widget/material"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputoverlay/cmd/inputoverlay-preview/internal/theme"
	"inputoverlay/internal/health"
	"inputoverlay/internal/hook"
	"inputoverlay/internal/host"
	"inputoverlay/internal/logging"
	"inputoverlay/internal/source"
)

func newHost(t *testing.T, withImage bool) *host.Host {
	t.Helper()
	dir := t.TempDir()
	if withImage {
		f, err := os.Create(filepath.Join(dir, "atlas.png"))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 32, 16))))
		require.NoError(t, f.Close())
	}
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`version = 2

[overlay]
enabled = true
image_file = "atlas.png"

[watch]
enabled = false

[logging]
enabled = false
`), 0o600))

	logger, err := logging.New(&logging.Config{Output: "discard", Component: "test"})
	require.NoError(t, err)
	h, err := host.New(context.Background(), host.Options{
		ConfigPath: cfgPath,
		Hooks:      []hook.Hook{hook.NewFunc("synthetic", nil)},
		Logger:     logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func layoutOnce(p *Preview) layout.Dimensions {
	gtx := layout.Context{
		Ops:         new(op.Ops),
		Constraints: layout.Exact(image.Pt(800, 600)),
		Metric:      unit.Metric{PxPerDp: 1, PxPerSp: 1},
		Now:         time.Now(),
	}
	return p.Layout(gtx)
}

func TestPreviewLayout(t *testing.T) {
	for _, withImage := range []bool{true, false} {
		h := newHost(t, withImage)
		checkOnce(h.Checker())

		p := NewPreview(theme.NewTheme(material.NewTheme()), h, 0)
		dims := layoutOnce(p)
		assert.Equal(t, image.Pt(800, 600), dims.Size)

		p = NewPreview(theme.NewTheme(material.NewTheme()), h, 2)
		dims = layoutOnce(p)
		assert.Equal(t, image.Pt(800, 600), dims.Size)
	}
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "Input Overlay - 3 elements", StatusLine(source.Status{Loaded: true, Elements: 3}))
	assert.Equal(t, "Input Overlay - pass-through", StatusLine(source.Status{Mode: "pass-through"}))
}

func TestCheckLoop(t *testing.T) {
	c := health.NewChecker()
	c.RegisterFunc("assets", false, func(context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusHealthy}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		CheckLoop(ctx, c, 10*time.Millisecond)
		close(done)
	}()
	require.Eventually(t, func() bool {
		_, ok := c.GetResult("assets")
		return ok
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func checkOnce(c *health.Checker) {
	c.Check(context.Background())
}
