package agents

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

// Initiative is the per-ant arbitration token. Any system performing a
// consequential action must check CanAct first and call Consume exactly
// once when the action succeeds. The eligibility pass (Refresh) runs once
// per tick before any agent system.
type Initiative struct {
	hasAction   bool
	hasMovement bool
	timer       int // Ticks left to sit out before both flags return
	cooldown    int
}

// NewInitiative returns a ready token. rng staggers the first cooldown so
// freshly spawned ants do not all act on the same tick.
func NewInitiative(cooldown int, rng *rand.Rand) *Initiative {
	if cooldown < 0 {
		cooldown = 0
	}
	i := &Initiative{hasAction: true, hasMovement: true, cooldown: cooldown}
	if rng != nil && cooldown > 0 {
		i.timer = rng.Intn(cooldown + 1)
		if i.timer > 0 {
			i.hasAction, i.hasMovement = false, false
		}
	}
	return i
}

// CanAct reports whether the action flag is available. A nil token (dead
// ant) can never act.
func (i *Initiative) CanAct() bool { return i != nil && i.hasAction }

// CanMove reports whether the movement flag is available.
func (i *Initiative) CanMove() bool { return i != nil && i.hasMovement }

// Consume spends the action and movement for this tick. Calling it without
// CanAct is a programming error.
func (i *Initiative) Consume() {
	if !i.CanAct() {
		panic("agents: initiative consumed without CanAct")
	}
	i.hasAction = false
	i.hasMovement = false
	i.timer = i.cooldown
}

// ConsumeMovement spends only the movement flag.
func (i *Initiative) ConsumeMovement() {
	if !i.CanMove() {
		panic("agents: movement consumed without CanMove")
	}
	i.hasMovement = false
	if i.timer < i.cooldown {
		i.timer = i.cooldown
	}
}

// Refresh is the eligibility pass. An ant that acted sits out cooldown
// ticks, then both flags are restored.
func (i *Initiative) Refresh() {
	if i == nil {
		return
	}
	if i.timer > 0 {
		i.timer--
		return
	}
	i.hasAction = true
	i.hasMovement = true
}

// InitiativeState is the plain view used for snapshots.
type InitiativeState struct {
	HasAction   bool `json:"has_action"`
	HasMovement bool `json:"has_movement"`
	Timer       int  `json:"timer"`
	Cooldown    int  `json:"cooldown"`
}

// State returns the plain view of i.
func (i *Initiative) State() InitiativeState {
	return InitiativeState{HasAction: i.hasAction, HasMovement: i.hasMovement, Timer: i.timer, Cooldown: i.cooldown}
}

// RestoreInitiative rebuilds a token from a snapshot.
func RestoreInitiative(s InitiativeState) (*Initiative, error) {
	if s.Timer < 0 || s.Cooldown < 0 {
		return nil, fmt.Errorf("restore initiative: negative timer %d or cooldown %d", s.Timer, s.Cooldown)
	}
	return &Initiative{hasAction: s.HasAction, hasMovement: s.HasMovement, timer: s.Timer, cooldown: s.Cooldown}, nil
}

func (i *Initiative) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.State())
}

func (i *Initiative) UnmarshalJSON(b []byte) error {
	var s InitiativeState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	r, err := RestoreInitiative(s)
	if err != nil {
		return err
	}
	*i = *r
	return nil
}
