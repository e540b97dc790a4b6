package theme

import (
	"testing"

	"gioui.org/widget/material"

	"inputoverlay/internal/health"
)

func TestNewTheme(t *testing.T) {
	th := NewTheme(material.NewTheme())
	if th.Palette.Background.A != 0xFF {
		t.Error("background should be opaque")
	}
	if th.Theme.Palette.Fg != th.Palette.Text {
		t.Error("material foreground should follow the palette")
	}
	if th.Metrics.SidebarWidth <= 0 {
		t.Error("sidebar width not set")
	}
}

func TestStatusColor(t *testing.T) {
	th := NewTheme(material.NewTheme())
	cases := map[health.Status]bool{
		health.StatusHealthy:   th.StatusColor(health.StatusHealthy) == th.Palette.Success,
		health.StatusDegraded:  th.StatusColor(health.StatusDegraded) == th.Palette.Warning,
		health.StatusUnhealthy: th.StatusColor(health.StatusUnhealthy) == th.Palette.Error,
		health.StatusUnknown:   th.StatusColor(health.StatusUnknown) == th.Palette.TextMuted,
	}
	for status, ok := range cases {
		if !ok {
			t.Errorf("wrong color for %s", status)
		}
	}
}
