package world

import "fmt"

// ElementID identifies an element within one story. Zero means no element.
type ElementID uint64

// Grid maps every cell to the element occupying it. An empty cell is air.
// Cells are stored row-major: index = y*Width + x.
//
// A zero Grid is uninitialized; reads report empty and writes panic.
type Grid struct {
	width  int
	height int
	cells  []ElementID
}

// NewGrid allocates an empty grid of the given size.
func NewGrid(width, height int) *Grid {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("world: invalid grid size %dx%d", width, height))
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]ElementID, width*height),
	}
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Initialized reports whether the cell cache has been allocated.
func (g *Grid) Initialized() bool { return g.cells != nil }

// InBounds returns true if the position lies within the grid.
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.width && p.Y >= 0 && p.Y < g.height
}

// Get returns the element occupying a cell. The second result is false for
// empty cells and for positions outside the grid.
func (g *Grid) Get(p Position) (ElementID, bool) {
	if g.cells == nil || !g.InBounds(p) {
		return 0, false
	}
	id := g.cells[p.Y*g.width+p.X]
	return id, id != 0
}

// Set writes an element into a cell, replacing whatever was there.
// Writing before initialization or outside the grid is a programming error.
func (g *Grid) Set(p Position, id ElementID) {
	g.mustIndex(p)
	g.cells[p.Y*g.width+p.X] = id
}

// Clear empties a cell.
func (g *Grid) Clear(p Position) {
	g.Set(p, 0)
}

func (g *Grid) mustIndex(p Position) {
	if g.cells == nil {
		panic("world: grid mutated before initialization")
	}
	if !g.InBounds(p) {
		panic(fmt.Sprintf("world: position %s outside %dx%d grid", p, g.width, g.height))
	}
}

// Occupied returns the number of non-empty cells.
func (g *Grid) Occupied() int {
	n := 0
	for _, id := range g.cells {
		if id != 0 {
			n++
		}
	}
	return n
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, occupied=%d)", g.width, g.height, g.Occupied())
}
