package element

import (
	"sync"
	"time"

	"inputoverlay/internal/input"
	"inputoverlay/internal/settings"
)

// DeadZoneFunc returns the analog dead zone for a code.
type DeadZoneFunc func(code input.Code) float64

// SettingsDeadZone reads the stick dead zones from the current settings
// snapshot on every call.
func SettingsDeadZone(store *settings.Store) DeadZoneFunc {
	return func(code input.Code) float64 {
		s := store.Load()
		switch code {
		case input.PadLeftStick:
			return s.LeftDeadZone
		case input.PadRightStick:
			return s.RightDeadZone
		}
		return 0
	}
}

// Slot identifies one Data entry. Elements of different kinds may be bound
// to the same code, a button and a trigger pair on one trigger for example,
// and each keeps its own entry.
type Slot struct {
	Code input.Code
	Kind Kind
}

// Holder owns the Data of every element, keyed by input code and kind.
//
// Apply is called from hook goroutines and Get from the render goroutine;
// one RWMutex guards all state. Events for one code are applied in
// delivery order to every entry bound to it.
type Holder struct {
	mu       sync.RWMutex
	data     map[Slot]Data
	kinds    map[input.Code][]Kind       // entries per code, in registration order
	links    map[Slot]Slot               // primary -> secondary
	aliases  map[input.Code][]input.Code // extra code -> codes it also updates
	deadZone DeadZoneFunc
}

// NewHolder creates an empty holder. deadZone may be nil.
func NewHolder(deadZone DeadZoneFunc) *Holder {
	if deadZone == nil {
		deadZone = func(input.Code) float64 { return 0 }
	}
	return &Holder{
		data:     make(map[Slot]Data),
		kinds:    make(map[input.Code][]Kind),
		links:    make(map[Slot]Slot),
		aliases:  make(map[input.Code][]input.Code),
		deadZone: deadZone,
	}
}

// Apply updates every entry for ev.Code, and the entries of codes that
// ev.Code is an alias for. It reports whether any entry changed state.
// Events for codes without an entry are ignored.
func (h *Holder) Apply(ev input.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	applied := h.applyLocked(ev.Code, ev)
	for _, target := range h.aliases[ev.Code] {
		if h.applyLocked(target, ev) {
			applied = true
		}
	}
	return applied
}

func (h *Holder) applyLocked(code input.Code, ev input.Event) bool {
	applied := false
	for _, kind := range h.kinds[code] {
		slot := Slot{code, kind}
		d := h.data[slot]
		next := d.apply(ev, h.deadZone(code))
		h.data[slot] = next
		if next != d {
			applied = true
		}
	}
	return applied
}

// Get returns the data of the first entry registered for code. Use GetKind
// when elements of several kinds share the code.
func (h *Holder) Get(code input.Code) (Data, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	kinds := h.kinds[code]
	if len(kinds) == 0 {
		return nil, false
	}
	return h.mergedLocked(Slot{code, kinds[0]}), true
}

// GetKind returns the data of the kind entry for code. When a secondary
// entry is linked to it the result is the merge of both.
func (h *Holder) GetKind(code input.Code, kind Kind) (Data, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.data[Slot{code, kind}]; !ok {
		return nil, false
	}
	return h.mergedLocked(Slot{code, kind}), true
}

func (h *Holder) mergedLocked(slot Slot) Data {
	d := h.data[slot]
	if sec, linked := h.links[slot]; linked {
		if sd, ok := h.data[sec]; ok {
			d = d.Merge(sd)
		}
	}
	return d
}

// MergeDuplicate links secondary into primary: from now on reads of the
// primary entry merge both. The two codes need an entry of the same kind.
func (h *Holder) MergeDuplicate(primary, secondary input.Code) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if primary == secondary {
		return false
	}
	for _, kind := range h.kinds[primary] {
		if _, ok := h.data[Slot{secondary, kind}]; ok {
			h.links[Slot{primary, kind}] = Slot{secondary, kind}
			return true
		}
	}
	return false
}

// Ensure creates the entry for code and the kind of d if none exists.
func (h *Holder) Ensure(code input.Code, d Data) {
	h.mu.Lock()
	defer h.mu.Unlock()

	slot := Slot{code, d.Kind()}
	if _, ok := h.data[slot]; !ok {
		h.data[slot] = d
		h.kinds[code] = append(h.kinds[code], slot.Kind)
	}
}

// Rebuild replaces the entry set with one entry per element code and kind
// in reg. Persistent data present before and after is kept; everything
// else starts from the element's default.
func (h *Holder) Rebuild(reg *Registry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data := make(map[Slot]Data)
	kinds := make(map[input.Code][]Kind)
	links := make(map[Slot]Slot)
	aliases := make(map[input.Code][]input.Code)

	keep := func(code input.Code, def Data) Slot {
		slot := Slot{code, def.Kind()}
		if _, done := data[slot]; done {
			return slot
		}
		kinds[code] = append(kinds[code], slot.Kind)
		if old, ok := h.data[slot]; ok && old.Persistent() {
			data[slot] = old
			return slot
		}
		data[slot] = def
		return slot
	}

	if reg != nil {
		for _, el := range reg.Elements() {
			code := el.Code()
			primary := keep(code, el.DefaultData())
			if sec := el.Secondary(); sec != 0 && sec != code {
				links[primary] = keep(sec, el.DefaultData())
			}
			for _, a := range el.Aliases() {
				if !containsCode(aliases[a], code) {
					aliases[a] = append(aliases[a], code)
				}
			}
		}
	}

	h.data = data
	h.kinds = kinds
	h.links = links
	h.aliases = aliases
}

func containsCode(codes []input.Code, c input.Code) bool {
	for _, x := range codes {
		if x == c {
			return true
		}
	}
	return false
}

// Tick advances time-based state (mouse anchor, wheel hold).
func (h *Holder) Tick(dt time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for slot, d := range h.data {
		h.data[slot] = d.tick(dt)
	}
}

// Len returns the number of entries.
func (h *Holder) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.data)
}

// Snapshot returns a copy of every entry, merged with linked secondaries.
func (h *Holder) Snapshot() map[Slot]Data {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[Slot]Data, len(h.data))
	for slot := range h.data {
		out[slot] = h.mergedLocked(slot)
	}
	return out
}
