// Package theme holds the colors and metrics of the preview window.
package theme

import (
	"image/color"
	"runtime"

	"gioui.org/unit"
	"gioui.org/widget/material"

	"inputoverlay/internal/health"
)

// Palette is the window color set. The preview is always dark so the
// overlay frame reads the same as on a stream.
type Palette struct {
	Background, Surface, Border color.NRGBA
	Text, TextMuted             color.NRGBA
	Primary                     color.NRGBA
	Success, Warning, Error     color.NRGBA
}

// Metrics are the window sizes.
type Metrics struct {
	CornerRadius unit.Dp
	Spacing      unit.Dp
	Padding      unit.Dp
	SidebarWidth unit.Dp
	FontTitle    unit.Sp
	FontBody     unit.Sp
	FontCaption  unit.Sp
}

// Theme is a material theme plus the preview palette and metrics.
type Theme struct {
	*material.Theme
	Palette Palette
	Metrics Metrics
}

func rgb(c uint32) color.NRGBA {
	return color.NRGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 0xff}
}

type style struct {
	palette Palette
	metrics Metrics
}

var (
	fallbackStyle = style{
		palette: Palette{
			Background: rgb(0x202020), Surface: rgb(0x2c2c2c), Border: rgb(0x404040),
			Text: rgb(0xffffff), TextMuted: rgb(0xa0a0a0),
			Primary: rgb(0x0078d4),
			Success: rgb(0x6bbc0f), Warning: rgb(0xffb900), Error: rgb(0xe81123),
		},
		metrics: Metrics{
			CornerRadius: 4, Spacing: 8, Padding: 16, SidebarWidth: 260,
			FontTitle: 20, FontBody: 14, FontCaption: 12,
		},
	}

	styles = map[string]style{
		"darwin": {
			palette: Palette{
				Background: rgb(0x1e1e1e), Surface: rgb(0x262626), Border: rgb(0x3a3a3c),
				Text: rgb(0xf5f5f7), TextMuted: rgb(0x86868b),
				Primary: rgb(0x0a84ff),
				Success: rgb(0x30d158), Warning: rgb(0xff9f0a), Error: rgb(0xff453a),
			},
			metrics: Metrics{
				CornerRadius: 10, Spacing: 10, Padding: 20, SidebarWidth: 280,
				FontTitle: 22, FontBody: 13, FontCaption: 11,
			},
		},
	}
)

// NewTheme styles base for the running OS.
func NewTheme(base *material.Theme) *Theme {
	s, ok := styles[runtime.GOOS]
	if !ok {
		s = fallbackStyle
	}
	t := &Theme{Theme: base, Palette: s.palette, Metrics: s.metrics}
	t.Theme.Palette.Fg = s.palette.Text
	t.Theme.Palette.Bg = s.palette.Background
	t.Theme.Palette.ContrastBg = s.palette.Primary
	t.Theme.TextSize = s.metrics.FontBody
	return t
}

// StatusColor is the dot color for a health status.
func (t *Theme) StatusColor(s health.Status) color.NRGBA {
	switch s {
	case health.StatusHealthy:
		return t.Palette.Success
	case health.StatusDegraded:
		return t.Palette.Warning
	case health.StatusUnhealthy:
		return t.Palette.Error
	}
	return t.Palette.TextMuted
}
