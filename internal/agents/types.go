// Package agents provides the ant data model, hunger, and the initiative
// token that limits each ant to one consequential action per tick.
package agents

import (
	"github.com/google/uuid"

	"github.com/talgya/mini-colony/internal/world"
)

// AntID identifies an ant. IDs are issued in creation order, which is also
// the deterministic iteration order for every per-tick system.
type AntID uint64

// Role affects regurgitation priority only.
type Role uint8

const (
	RoleWorker Role = iota
	RoleQueen
)

func (r Role) String() string {
	if r == RoleQueen {
		return "Queen"
	}
	return "Worker"
}

// Facing is the horizontal direction an ant's body points.
type Facing uint8

const (
	FacingRight Facing = iota
	FacingLeft
)

// Angle is the rotation of an ant's body, counter-clockwise.
type Angle uint16

const (
	Angle0   Angle = 0
	Angle90  Angle = 90
	Angle180 Angle = 180
	Angle270 Angle = 270
)

// Orientation combines facing and angle. The cell "ahead" of an ant is
// derived from it.
type Orientation struct {
	Facing Facing `json:"facing"`
	Angle  Angle  `json:"angle"`
}

// Forward returns the unit offset an ant with this orientation moves along.
// Row 0 is the sky, so "up" is negative Y.
func (o Orientation) Forward() world.Position {
	var d world.Position
	switch o.Angle {
	case Angle90:
		d = world.PositionNegY
	case Angle180:
		d = world.PositionNegX
	case Angle270:
		d = world.PositionY
	default:
		d = world.PositionX
	}
	if o.Facing == FacingLeft {
		d.X = -d.X
	}
	return d
}

// Ahead returns the cell directly in front of an ant standing at p.
func (o Orientation) Ahead(p world.Position) world.Position {
	return p.Add(o.Forward())
}

// TurnAround flips the facing.
func (o Orientation) TurnAround() Orientation {
	if o.Facing == FacingLeft {
		o.Facing = FacingRight
	} else {
		o.Facing = FacingLeft
	}
	return o
}

// Rotate turns the body a quarter turn counter-clockwise.
func (o Orientation) Rotate() Orientation {
	o.Angle = (o.Angle + 90) % 360
	return o
}

// Inventory holds at most one carried element.
type Inventory struct {
	Element world.ElementID   `json:"element,omitempty"`
	Kind    world.ElementKind `json:"kind,omitempty"`
}

// Empty reports whether the ant carries nothing.
func (inv Inventory) Empty() bool { return inv.Element == 0 }

// Carrying reports whether the ant carries an element of the given kind.
func (inv Inventory) Carrying(kind world.ElementKind) bool {
	return !inv.Empty() && inv.Kind == kind
}

// Ant is a single colony member.
type Ant struct {
	ID   AntID     `json:"id"`
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
	Role Role      `json:"role"`

	Position    world.Position `json:"position"`
	Orientation Orientation    `json:"orientation"`
	Inventory   Inventory      `json:"inventory"`

	Hunger Hunger `json:"hunger"`

	// Nil once the ant is dead. Dead ants never regain initiative.
	Initiative *Initiative `json:"initiative,omitempty"`

	Dead     bool   `json:"dead"`
	BornTick uint64 `json:"born_tick"`
}

// Alive reports whether the ant has not died.
func (a *Ant) Alive() bool { return !a.Dead }

// CanAct reports whether the ant still holds its action initiative.
func (a *Ant) CanAct() bool { return a.Initiative.CanAct() }

// Ahead returns the cell in front of the ant.
func (a *Ant) Ahead() world.Position { return a.Orientation.Ahead(a.Position) }

// Kill marks the ant dead and strips its initiative permanently.
// Position and inventory are kept so observers can still draw the body.
func (a *Ant) Kill() {
	a.Dead = true
	a.Initiative = nil
}
