// Package ui draws the preview window: the composited overlay frame next
// to a sidebar with the source, hook and health status.
package ui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"
	"time"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"inputoverlay/cmd/inputoverlay-preview/internal/theme"
	"inputoverlay/internal/element"
	"inputoverlay/internal/health"
	"inputoverlay/internal/host"
	"inputoverlay/internal/source"
)

// Preview is the main window content.
type Preview struct {
	theme *theme.Theme
	host  *host.Host
	scale float64

	reload   widget.Clickable
	snapshot widget.Clickable
	hookList widget.List

	// Snapshot writes the current frame and returns the file written.
	Snapshot func() (string, error)

	notice   string
	noticeAt time.Time
}

// NewPreview creates the preview for h. Scale is the number of screen
// pixels per overlay pixel; zero fits the frame to the window.
func NewPreview(t *theme.Theme, h *host.Host, scale float64) *Preview {
	return &Preview{
		theme: t,
		host:  h,
		scale: scale,
		hookList: widget.List{
			List: layout.List{Axis: layout.Vertical},
		},
	}
}

// Layout renders the preview.
func (p *Preview) Layout(gtx layout.Context) layout.Dimensions {
	p.handleClicks(gtx)
	paint.Fill(gtx.Ops, p.theme.Palette.Background)

	st := p.host.Source().Status()
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			w := gtx.Dp(p.theme.Metrics.SidebarWidth)
			gtx.Constraints.Min.X = w
			gtx.Constraints.Max.X = w
			return p.layoutSidebar(gtx, st)
		}),

		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			size := image.Pt(gtx.Dp(1), gtx.Constraints.Max.Y)
			paint.FillShape(gtx.Ops, p.theme.Palette.Border, clip.Rect{Max: size}.Op())
			return layout.Dimensions{Size: size}
		}),

		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return p.layoutFrame(gtx, st)
		}),
	)
}

func (p *Preview) handleClicks(gtx layout.Context) {
	if p.reload.Clicked(gtx) {
		if err := p.host.Source().Reload(context.Background()); err != nil {
			p.setNotice("Reload: " + err.Error())
		} else {
			p.setNotice("Reloaded")
		}
	}
	if p.snapshot.Clicked(gtx) && p.Snapshot != nil {
		if path, err := p.Snapshot(); err != nil {
			p.setNotice("Snapshot: " + err.Error())
		} else {
			p.setNotice("Saved " + path)
		}
	}
}

func (p *Preview) setNotice(msg string) {
	p.notice = msg
	p.noticeAt = time.Now()
}

func (p *Preview) layoutSidebar(gtx layout.Context, st source.Status) layout.Dimensions {
	th := p.theme
	return layout.UniformInset(th.Metrics.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				title := material.H6(th.Theme, "INPUT OVERLAY")
				title.Color = th.Palette.Primary
				title.TextSize = th.Metrics.FontTitle
				return title.Layout(gtx)
			}),
			layout.Rigid(layout.Spacer{Height: unit.Dp(24)}.Layout),

			layout.Rigid(p.row("Mode", st.Mode)),
			layout.Rigid(p.row("Size", fmt.Sprintf("%dx%d", st.Width, st.Height))),
			layout.Rigid(p.row("Elements", fmt.Sprint(st.Elements))),
			layout.Rigid(p.row("Active", fmt.Sprint(p.activeCount()))),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				if st.Error == "" {
					return layout.Dimensions{}
				}
				l := material.Caption(th.Theme, st.Error)
				l.Color = th.Palette.Warning
				return layout.Inset{Top: th.Metrics.Spacing}.Layout(gtx, l.Layout)
			}),

			layout.Rigid(layout.Spacer{Height: unit.Dp(24)}.Layout),
			layout.Rigid(p.heading("HEALTH")),
			layout.Rigid(p.layoutHealth),

			layout.Rigid(layout.Spacer{Height: unit.Dp(24)}.Layout),
			layout.Rigid(p.heading("HOOKS")),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return material.List(th.Theme, &p.hookList).Layout(gtx, len(st.Hooks), func(gtx layout.Context, i int) layout.Dimensions {
					h := st.Hooks[i]
					c, state := th.Palette.TextMuted, "stopped"
					switch {
					case h.Running:
						c, state = th.Palette.Success, "running"
					case !h.Available:
						c, state = th.Palette.Error, h.Reason
					}
					return p.statusRow(gtx, c, h.Name, state)
				})
			}),

			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				if p.notice == "" || time.Since(p.noticeAt) > 5*time.Second {
					return layout.Dimensions{}
				}
				l := material.Caption(th.Theme, p.notice)
				l.Color = th.Palette.TextMuted
				return layout.Inset{Bottom: th.Metrics.Spacing}.Layout(gtx, l.Layout)
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return layout.Flex{Spacing: layout.SpaceBetween}.Layout(gtx,
					layout.Flexed(1, material.Button(th.Theme, &p.reload, "Reload").Layout),
					layout.Rigid(layout.Spacer{Width: th.Metrics.Spacing}.Layout),
					layout.Flexed(1, material.Button(th.Theme, &p.snapshot, "Snapshot").Layout),
				)
			}),
		)
	})
}

func (p *Preview) layoutHealth(gtx layout.Context) layout.Dimensions {
	results := p.host.Checker().GetResults()
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	children := make([]layout.FlexChild, 0, len(names))
	for _, name := range names {
		res := results[name]
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return p.statusRow(gtx, p.theme.StatusColor(res.Status), name, string(res.Status))
		}))
	}
	return layout.Flex{Axis: layout.Vertical}.Layout(gtx, children...)
}

func (p *Preview) activeCount() int {
	n := 0
	for _, d := range p.host.Source().Holder().Snapshot() {
		switch v := d.(type) {
		case element.ButtonData:
			if v.Active() {
				n++
			}
		case element.TriggerData:
			if v.Pressed() {
				n++
			}
		}
	}
	return n
}

func (p *Preview) heading(text string) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		l := material.Label(p.theme.Theme, p.theme.Metrics.FontCaption, text)
		l.Color = p.theme.Palette.TextMuted
		return layout.Inset{Bottom: unit.Dp(6)}.Layout(gtx, l.Layout)
	}
}

func (p *Preview) row(label, value string) layout.Widget {
	return func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Spacing: layout.SpaceBetween}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				l := material.Body2(p.theme.Theme, label)
				l.Color = p.theme.Palette.TextMuted
				return l.Layout(gtx)
			}),
			layout.Rigid(material.Body2(p.theme.Theme, value).Layout),
		)
	}
}

func (p *Preview) statusRow(gtx layout.Context, c color.NRGBA, name, state string) layout.Dimensions {
	return layout.Inset{Bottom: unit.Dp(4)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Alignment: layout.Middle}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				d := gtx.Dp(8)
				paint.FillShape(gtx.Ops, c, clip.Ellipse{Max: image.Pt(d, d)}.Op(gtx.Ops))
				return layout.Dimensions{Size: image.Pt(d, d)}
			}),
			layout.Rigid(layout.Spacer{Width: unit.Dp(8)}.Layout),
			layout.Rigid(material.Body2(p.theme.Theme, name).Layout),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				l := material.Caption(p.theme.Theme, state)
				l.Color = p.theme.Palette.TextMuted
				l.Alignment = text.End
				l.MaxLines = 1
				return l.Layout(gtx)
			}),
		)
	})
}

func (p *Preview) layoutFrame(gtx layout.Context, st source.Status) layout.Dimensions {
	return layout.UniformInset(p.theme.Metrics.Padding).Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		size := gtx.Constraints.Max
		rr := gtx.Dp(p.theme.Metrics.CornerRadius)
		paint.FillShape(gtx.Ops, p.theme.Palette.Surface, clip.UniformRRect(image.Rectangle{Max: size}, rr).Op(gtx.Ops))

		frame := p.host.Frame()
		if frame.Bounds().Empty() {
			return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				msg := "Nothing to draw: set overlay.image_file"
				if !p.host.Config().Overlay.Enabled {
					msg = "Overlay disabled"
				}
				l := material.Body1(p.theme.Theme, msg)
				l.Color = p.theme.Palette.TextMuted
				return l.Layout(gtx)
			})
		}

		img := widget.Image{
			Src:      paint.NewImageOp(frame),
			Fit:      widget.Contain,
			Position: layout.Center,
		}
		if p.scale > 0 {
			img.Fit = widget.ScaleDown
			img.Scale = float32(p.scale) / gtx.Metric.PxPerDp
		}
		gtx.Constraints.Min = size
		return img.Layout(gtx)
	})
}

// StatusLine summarizes the source for the window title.
func StatusLine(st source.Status) string {
	if st.Loaded {
		return fmt.Sprintf("Input Overlay - %d elements", st.Elements)
	}
	return "Input Overlay - " + st.Mode
}

// CheckLoop runs the health checks every interval until ctx is done so the
// sidebar can read cached results.
func CheckLoop(ctx context.Context, c *health.Checker, interval time.Duration) {
	c.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}
