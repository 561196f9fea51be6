// Package world provides the nest grid, its elements, and the deferred
// grid mutations that keep at most one element in any cell.
// Row 0 is the sky; y grows downward into the dirt.
package world

import "fmt"

// Position is a cell coordinate on the nest grid.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Unit offsets.
var (
	PositionX    = Position{X: 1, Y: 0}
	PositionNegX = Position{X: -1, Y: 0}
	PositionY    = Position{X: 0, Y: 1}
	PositionNegY = Position{X: 0, Y: -1}
)

// Add returns the component-wise sum.
func (p Position) Add(o Position) Position {
	return Position{X: p.X + o.X, Y: p.Y + o.Y}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
