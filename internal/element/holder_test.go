package element

import (
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inputoverlay/internal/input"
	"inputoverlay/internal/layout"
	"inputoverlay/internal/settings"
)

var testAtlas = image.Rect(0, 0, 256, 256)

func testRegistry(t *testing.T, els map[string]layout.Element) *Registry {
	t.Helper()
	reg := NewRegistry(&layout.Layout{Version: layout.Version, Elements: els}, testAtlas)
	require.NoError(t, reg.Err())
	return reg
}

func keyButton(code uint32) layout.Element {
	return layout.Element{Type: layout.TypeButton, Code: code, Mapping: []int{0, 0, 10, 10}, Pos: []int{0, 0}}
}

func triggerPair() layout.Element {
	return layout.Element{
		Type:      layout.TypeTrigger,
		Input:     "pad_left_trigger",
		Secondary: uint32(input.PadRightTrigger),
		Mapping:   []int{0, 20, 30, 10},
		Pos:       []int{0, 0},
	}
}

func TestHolderIgnoresUnknownCodes(t *testing.T) {
	h := NewHolder(nil)
	h.Rebuild(testRegistry(t, map[string]layout.Element{"w": keyButton(17)}))

	before := h.Snapshot()
	assert.False(t, h.Apply(input.Press(input.Key(30), true)))
	assert.False(t, h.Apply(input.Move(5, 5)))
	assert.Equal(t, before, h.Snapshot())

	_, ok := h.Get(input.Key(30))
	assert.False(t, ok)
}

func TestHolderPressReleasePairs(t *testing.T) {
	h := NewHolder(nil)
	h.Rebuild(testRegistry(t, map[string]layout.Element{"w": keyButton(17), "a": keyButton(30)}))

	w := input.Key(17)
	assert.True(t, h.Apply(input.Press(w, true)))
	assert.False(t, h.Apply(input.Press(w, true)), "repeat changes nothing")

	// A release of another key leaves w pressed.
	h.Apply(input.Press(input.Key(30), false))
	d, ok := h.Get(w)
	require.True(t, ok)
	assert.True(t, d.(ButtonData).Pressed)

	assert.True(t, h.Apply(input.Press(w, false)))
	d, _ = h.Get(w)
	assert.False(t, d.(ButtonData).Pressed)
}

func TestHolderMouseMoveWithoutElement(t *testing.T) {
	h := NewHolder(nil)
	h.Rebuild(testRegistry(t, map[string]layout.Element{"w": keyButton(17)}))

	before := h.Snapshot()
	assert.False(t, h.Apply(input.Move(40, -12)))
	assert.Equal(t, before, h.Snapshot())
}

func TestHolderTriggerPairOrderIndependent(t *testing.T) {
	events := []input.Event{
		input.AxisEvent(input.PadLeftTrigger, input.AxisLeftTrigger, 0),
		input.AxisEvent(input.PadRightTrigger, input.AxisRightTrigger, 0.6),
	}

	for _, order := range [][]int{{0, 1}, {1, 0}} {
		h := NewHolder(nil)
		h.Rebuild(testRegistry(t, map[string]layout.Element{"lt": triggerPair()}))

		for _, i := range order {
			h.Apply(events[i])
		}
		d, ok := h.Get(input.PadLeftTrigger)
		require.True(t, ok)
		td := d.(TriggerData)
		assert.True(t, td.Pressed(), "order %v", order)
		assert.Equal(t, 0.6, td.Value())
	}
}

func TestHolderSharedCodeKeepsEachKind(t *testing.T) {
	// Ids decide draw order, so both orders of the shared code are covered.
	for _, buttonID := range []string{"a_rt_button", "z_rt_button"} {
		t.Run(buttonID, func(t *testing.T) {
			h := NewHolder(nil)
			h.Rebuild(testRegistry(t, map[string]layout.Element{
				buttonID:   {Type: layout.TypeButton, Input: "pad_right_trigger", Mapping: []int{0, 0, 10, 10}},
				"triggers": triggerPair(),
			}))
			assert.Equal(t, 3, h.Len())

			require.True(t, h.Apply(input.AxisEvent(input.PadRightTrigger, input.AxisRightTrigger, 1)))

			d, ok := h.GetKind(input.PadLeftTrigger, KindTrigger)
			require.True(t, ok)
			td := d.(TriggerData)
			assert.True(t, td.Pressed())
			assert.Equal(t, 1.0, td.Value())

			d, ok = h.GetKind(input.PadRightTrigger, KindButton)
			require.True(t, ok)
			assert.True(t, d.(ButtonData).Pressed)

			_, ok = h.GetKind(input.PadLeftTrigger, KindButton)
			assert.False(t, ok)
		})
	}
}

func TestHolderMergeDuplicateKeepsLaterReleases(t *testing.T) {
	h := NewHolder(nil)
	h.Ensure(input.Key(42), ButtonData{})
	h.Ensure(input.Key(54), ButtonData{})
	require.True(t, h.MergeDuplicate(input.Key(42), input.Key(54)))
	assert.False(t, h.MergeDuplicate(input.Key(42), input.Key(99)))
	assert.False(t, h.MergeDuplicate(input.Key(42), input.Key(42)))

	h.Apply(input.Press(input.Key(54), true))
	d, _ := h.Get(input.Key(42))
	assert.True(t, d.(ButtonData).Pressed)

	h.Apply(input.Press(input.Key(54), false))
	d, _ = h.Get(input.Key(42))
	assert.False(t, d.(ButtonData).Pressed)
}

func TestHolderRebuildPersistence(t *testing.T) {
	toggle := keyButton(58)
	toggle.Toggle = true
	stick := layout.Element{Type: layout.TypeStick, Input: "pad_left_stick", Mapping: []int{0, 40, 20, 20}}
	mouse := layout.Element{Type: layout.TypeMouseMovement, Mapping: []int{0, 80, 8, 8}}

	h := NewHolder(nil)
	h.Rebuild(testRegistry(t, map[string]layout.Element{
		"caps": toggle, "w": keyButton(17), "ls": stick, "mouse": mouse, "lt": triggerPair(),
	}))

	h.Apply(input.Press(input.Key(58), true))
	h.Apply(input.Press(input.Key(58), false))
	h.Apply(input.Press(input.Key(17), true))
	h.Apply(input.AxisEvent(input.PadLeftStick, input.AxisX, 0.7))
	h.Apply(input.Move(12, 0))
	h.Apply(input.AxisEvent(input.PadRightTrigger, input.AxisRightTrigger, 0.3))

	// Reload with the same ids, minus the trigger pair.
	h.Rebuild(testRegistry(t, map[string]layout.Element{
		"caps": toggle, "w": keyButton(17), "ls": stick, "mouse": mouse,
	}))

	d, _ := h.Get(input.Key(58))
	assert.True(t, d.(ButtonData).On, "toggle survives")
	d, _ = h.Get(input.Key(17))
	assert.Equal(t, ButtonData{}, d, "momentary button resets")
	d, _ = h.Get(input.PadLeftStick)
	assert.Equal(t, 0.7, d.(StickData).X, "stick survives")
	d, _ = h.Get(input.MouseMove)
	assert.Equal(t, MouseMoveData{}, d, "mouse resets")
	_, ok := h.Get(input.PadRightTrigger)
	assert.False(t, ok, "dropped codes are gone")
	assert.Equal(t, 4, h.Len())
}

func TestHolderRebuildKindChangeResets(t *testing.T) {
	h := NewHolder(nil)
	h.Rebuild(testRegistry(t, map[string]layout.Element{"lt": triggerPair()}))
	h.Apply(input.AxisEvent(input.PadLeftTrigger, input.AxisLeftTrigger, 1))

	asButton := layout.Element{Type: layout.TypeButton, Input: "pad_left_trigger", Mapping: []int{0, 0, 10, 10}}
	h.Rebuild(testRegistry(t, map[string]layout.Element{"lt": asButton}))

	d, _ := h.Get(input.PadLeftTrigger)
	assert.Equal(t, ButtonData{}, d)
}

func TestHolderStickAliasAndDeadZone(t *testing.T) {
	s := settings.Default()
	s.LeftDeadZone = 0.25
	store := settings.NewStore(s)

	h := NewHolder(SettingsDeadZone(store))
	h.Rebuild(testRegistry(t, map[string]layout.Element{
		"ls": {Type: layout.TypeStick, Input: "pad_left_stick", Mapping: []int{0, 0, 20, 20}},
	}))

	h.Apply(input.AxisEvent(input.PadLeftStick, input.AxisX, 0.2))
	h.Apply(input.AxisEvent(input.PadLeftStick, input.AxisY, 0.3))
	assert.True(t, h.Apply(input.Press(input.PadL3, true)))

	d, _ := h.Get(input.PadLeftStick)
	assert.Equal(t, StickData{X: 0, Y: 0.3, Pressed: true}, d)
}

func TestHolderWheelMiddleAlias(t *testing.T) {
	h := NewHolder(nil)
	h.Rebuild(testRegistry(t, map[string]layout.Element{
		"wheel": {Type: layout.TypeWheel, Mapping: []int{0, 0, 10, 10}},
		"mmb":   {Type: layout.TypeButton, Input: "mouse_middle", Mapping: []int{0, 20, 10, 10}},
	}))

	assert.True(t, h.Apply(input.Press(input.MouseMiddle, true)))

	d, _ := h.Get(input.MouseWheel)
	assert.True(t, d.(WheelData).Middle)
	d, _ = h.Get(input.MouseMiddle)
	assert.True(t, d.(ButtonData).Pressed)
}

func TestHolderTick(t *testing.T) {
	h := NewHolder(nil)
	h.Ensure(input.MouseWheel, WheelData{})
	h.Apply(input.Wheel(0, 1))
	h.Tick(time.Second)

	d, _ := h.Get(input.MouseWheel)
	assert.False(t, d.(WheelData).Up)
}

func TestHolderConcurrentApplyAndGet(t *testing.T) {
	h := NewHolder(nil)
	h.Rebuild(testRegistry(t, map[string]layout.Element{"w": keyButton(17), "lt": triggerPair()}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				h.Apply(input.Press(input.Key(17), j%2 == 0))
				h.Apply(input.AxisEvent(input.PadRightTrigger, input.AxisRightTrigger, float64(j%10)/10))
			}
		}(i)
	}
	for j := 0; j < 500; j++ {
		h.Get(input.Key(17))
		h.Get(input.PadLeftTrigger)
		h.Tick(time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, 3, h.Len())
}
