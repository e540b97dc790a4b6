package element

import (
	"errors"
	"image"
	"sort"

	"inputoverlay/internal/input"
	"inputoverlay/internal/layout"
)

// Registry is the immutable, draw-ordered set of elements of one layout.
type Registry struct {
	elements []Element
	byID     map[string]Element
	warnings []error
}

// NewRegistry builds the elements of l against the atlas bounds. Sections
// that cannot be built are skipped; they and malformed regions are
// reported through Warnings.
func NewRegistry(l *layout.Layout, atlas image.Rectangle) *Registry {
	r := &Registry{byID: make(map[string]Element)}
	if l == nil {
		return r
	}
	for _, id := range l.IDs() {
		el, err := New(id, l.Elements[id], atlas)
		if err != nil {
			r.warnings = append(r.warnings, err)
		}
		if el == nil {
			continue
		}
		r.elements = append(r.elements, el)
		r.byID[id] = el
	}
	return r
}

// NewRegistryFrom orders already built elements by z-level then id.
// Later duplicates of an id are dropped.
func NewRegistryFrom(elements ...Element) *Registry {
	r := &Registry{byID: make(map[string]Element)}
	for _, el := range elements {
		if el == nil {
			continue
		}
		if _, dup := r.byID[el.ID()]; dup {
			continue
		}
		r.byID[el.ID()] = el
		r.elements = append(r.elements, el)
	}
	sort.SliceStable(r.elements, func(i, j int) bool {
		a, b := r.elements[i], r.elements[j]
		if a.ZLevel() != b.ZLevel() {
			return a.ZLevel() < b.ZLevel()
		}
		return a.ID() < b.ID()
	})
	return r
}

// Elements returns the elements in draw order. The slice must not be
// modified.
func (r *Registry) Elements() []Element {
	if r == nil {
		return nil
	}
	return r.elements
}

// Len returns the number of elements.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.elements)
}

// Lookup returns the element with the given id.
func (r *Registry) Lookup(id string) (Element, bool) {
	if r == nil {
		return nil, false
	}
	el, ok := r.byID[id]
	return el, ok
}

// Codes returns every code the registry holds data for, in draw order,
// without duplicates. Secondary codes follow their primary.
func (r *Registry) Codes() []input.Code {
	if r == nil {
		return nil
	}
	seen := make(map[input.Code]bool)
	var codes []input.Code
	add := func(c input.Code) {
		if c == 0 || seen[c] {
			return
		}
		seen[c] = true
		codes = append(codes, c)
	}
	for _, el := range r.elements {
		add(el.Code())
		add(el.Secondary())
	}
	return codes
}

// Has reports whether an element of the given kind exists.
func (r *Registry) Has(kind Kind) bool {
	for _, el := range r.Elements() {
		if el.Kind() == kind {
			return true
		}
	}
	return false
}

// Warnings returns the problems found while building the registry.
func (r *Registry) Warnings() []error {
	if r == nil {
		return nil
	}
	return r.warnings
}

// Err joins the warnings into one error, or returns nil.
func (r *Registry) Err() error {
	return errors.Join(r.Warnings()...)
}
