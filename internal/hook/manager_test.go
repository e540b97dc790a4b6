package hook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputoverlay/internal/health"
	"inputoverlay/internal/input"
)

// failing is an available hook whose Start fails with err.
type failing struct {
	name string
	err  error
}

func (f *failing) Name() string                          { return f.name }
func (f *failing) Available() (bool, string)             { return true, "" }
func (f *failing) Start(context.Context, Callback) error { return f.err }
func (f *failing) Stop() error                           { return nil }

func TestManagerToleratesUnavailable(t *testing.T) {
	var rec recorder
	good := NewFunc("synthetic", nil)
	m := NewManager(nil, NewUnavailable("evdev", "no permission"), good)

	require.NoError(t, m.Start(context.Background(), rec.cb))
	defer m.Stop()

	good.Emit(input.Press(input.Key(30), true))
	assert.Equal(t, 1, rec.len())

	status := m.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "evdev", status[0].Name)
	assert.False(t, status[0].Running)
	assert.Equal(t, "no permission", status[0].Reason)
	assert.Equal(t, "synthetic", status[1].Name)
	assert.True(t, status[1].Running)
}

func TestManagerStartErrors(t *testing.T) {
	boom := errors.New("boom")
	good := NewFunc("synthetic", nil)
	m := NewManager(nil,
		&failing{name: "gone", err: ErrHookUnavailable},
		&failing{name: "broken", err: boom},
		good,
	)

	err := m.Start(context.Background(), func(input.Event) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrHookUnavailable)
	assert.True(t, good.IsRunning(), "healthy hooks keep running")

	require.NoError(t, m.Stop())
	assert.False(t, good.IsRunning())
}

func TestManagerPanicGuard(t *testing.T) {
	calls := 0
	f := NewFunc("synthetic", nil)
	m := NewManager(nil, f)
	require.NoError(t, m.Start(context.Background(), func(ev input.Event) {
		calls++
		if ev.Pressed {
			panic("bad callback")
		}
	}))
	defer m.Stop()

	assert.NotPanics(t, func() {
		f.Emit(input.Press(input.Key(30), true))
		f.Emit(input.Press(input.Key(30), false))
	})
	assert.Equal(t, 2, calls)
}

func TestManagerHealth(t *testing.T) {
	f := NewFunc("synthetic", nil)
	m := NewManager(nil, f)
	check := m.HealthCheck()

	res := check(context.Background())
	assert.Equal(t, health.StatusDegraded, res.Status, "not started yet")

	require.NoError(t, m.Start(context.Background(), func(input.Event) {}))
	res = check(context.Background())
	assert.Equal(t, health.StatusHealthy, res.Status)
	assert.Equal(t, "running", res.Details["synthetic"])

	require.NoError(t, m.Stop())
	res = check(context.Background())
	assert.Equal(t, health.StatusDegraded, res.Status)
	assert.Equal(t, "stopped", res.Details["synthetic"])
}

func TestManagerHealthNeverUnhealthy(t *testing.T) {
	m := NewManager(nil, NewUnavailable("evdev", "unsupported"), NewUnavailable("joystick", "unsupported"))
	require.NoError(t, m.Start(context.Background(), func(input.Event) {}))

	checker := health.NewChecker()
	checker.RegisterFunc("hooks", false, m.HealthCheck())
	results := checker.Check(context.Background())

	assert.Equal(t, health.StatusDegraded, results["hooks"].Status)
	assert.NotEqual(t, health.StatusUnhealthy, checker.OverallStatus())
}

func TestManagerStopWaitsForCallbacks(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	f := NewFunc("slow", func(ctx context.Context, emit func(input.Event)) error {
		emit(input.Move(1, 1))
		return nil
	})
	m := NewManager(nil, f)
	require.NoError(t, m.Start(context.Background(), func(input.Event) {
		close(entered)
		<-release
	}))
	<-entered

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a callback was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
