package world

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ElementKind enumerates the materials that can fill a cell.
type ElementKind uint8

const (
	ElementAir  ElementKind = iota // Never stored; an empty cell is air
	ElementDirt                    // Diggable ground
	ElementSand                    // Loose fill carried by workers
	ElementFood                    // Edible
)

// ElementName returns a human-readable name for an element kind.
func ElementName(k ElementKind) string {
	switch k {
	case ElementAir:
		return "Air"
	case ElementDirt:
		return "Dirt"
	case ElementSand:
		return "Sand"
	case ElementFood:
		return "Food"
	default:
		return "Unknown"
	}
}

// ElementKindFromString parses a case-insensitive element name.
func ElementKindFromString(s string) (ElementKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "air":
		return ElementAir, true
	case "dirt":
		return ElementDirt, true
	case "sand":
		return ElementSand, true
	case "food":
		return ElementFood, true
	}
	return ElementAir, false
}

// Element is a single piece of material. A carried element has no cell.
type Element struct {
	ID       ElementID   `json:"id"`
	UUID     uuid.UUID   `json:"uuid"`
	Kind     ElementKind `json:"kind"`
	Position Position    `json:"position"`
	Carried  bool        `json:"carried"`
}

// World owns the nest grid and the registry of every live element.
type World struct {
	Grid         *Grid
	SurfaceLevel int // Lowest air row; dirt starts at SurfaceLevel+1

	elements map[ElementID]*Element
	nextID   ElementID
}

// NewWorld creates an empty world with an allocated grid.
func NewWorld(width, height, surfaceLevel int) *World {
	return &World{
		Grid:         NewGrid(width, height),
		SurfaceLevel: surfaceLevel,
		elements:     make(map[ElementID]*Element),
		nextID:       1,
	}
}

// Element looks up an element by ID.
func (w *World) Element(id ElementID) (*Element, bool) {
	e, ok := w.elements[id]
	return e, ok
}

// ElementAt returns the element occupying a cell, if any.
func (w *World) ElementAt(p Position) (*Element, bool) {
	id, ok := w.Grid.Get(p)
	if !ok {
		return nil, false
	}
	e, ok := w.elements[id]
	return e, ok
}

// IsKind reports whether the cell holds an element of the given kind.
// Asking for ElementAir reports whether the in-bounds cell is empty.
func (w *World) IsKind(p Position, kind ElementKind) bool {
	if kind == ElementAir {
		_, occupied := w.Grid.Get(p)
		return w.Grid.InBounds(p) && !occupied
	}
	e, ok := w.ElementAt(p)
	return ok && e.Kind == kind
}

// IsEmpty reports whether an in-bounds cell holds no element.
func (w *World) IsEmpty(p Position) bool {
	return w.IsKind(p, ElementAir)
}

// Spawn places a new element into an empty in-bounds cell.
// It returns false when the cell is occupied or outside the grid.
func (w *World) Spawn(kind ElementKind, p Position) (*Element, bool) {
	if kind == ElementAir || !w.IsEmpty(p) {
		return nil, false
	}
	e := &Element{
		ID:       w.nextID,
		UUID:     uuid.New(),
		Kind:     kind,
		Position: p,
	}
	w.nextID++
	w.elements[e.ID] = e
	w.Grid.Set(p, e.ID)
	return e, true
}

// Lift takes an element out of its cell so it can be carried.
func (w *World) Lift(id ElementID) (*Element, bool) {
	e, ok := w.elements[id]
	if !ok || e.Carried {
		return nil, false
	}
	w.Grid.Clear(e.Position)
	e.Carried = true
	return e, true
}

// Remove deletes an element, emptying its cell if it was placed.
func (w *World) Remove(id ElementID) {
	e, ok := w.elements[id]
	if !ok {
		return
	}
	if !e.Carried {
		if cur, ok := w.Grid.Get(e.Position); ok && cur == id {
			w.Grid.Clear(e.Position)
		}
	}
	delete(w.elements, id)
}

// Restore reinserts a previously saved element verbatim.
func (w *World) Restore(e Element) error {
	if e.ID == 0 {
		return fmt.Errorf("restore element: zero id")
	}
	if _, exists := w.elements[e.ID]; exists {
		return fmt.Errorf("restore element %d: duplicate id", e.ID)
	}
	if !e.Carried {
		if !w.Grid.InBounds(e.Position) {
			return fmt.Errorf("restore element %d: position %s out of bounds", e.ID, e.Position)
		}
		if cur, occupied := w.Grid.Get(e.Position); occupied {
			return fmt.Errorf("restore element %d: cell %s already holds %d", e.ID, e.Position, cur)
		}
		w.Grid.Set(e.Position, e.ID)
	}
	restored := e
	w.elements[e.ID] = &restored
	if e.ID >= w.nextID {
		w.nextID = e.ID + 1
	}
	return nil
}

// Elements returns all live elements ordered by ID.
func (w *World) Elements() []*Element {
	out := make([]*Element, 0, len(w.elements))
	for _, e := range w.elements {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ElementCount returns the number of live elements.
func (w *World) ElementCount() int {
	return len(w.elements)
}

// ElementCounts returns a summary of element kind distribution.
func ElementCounts(w *World) map[ElementKind]int {
	counts := make(map[ElementKind]int)
	for _, e := range w.elements {
		counts[e.Kind]++
	}
	return counts
}
