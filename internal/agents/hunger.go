// Hunger is a bounded accumulator that grows every tick. Tiers derived from
// the value/max ratio drive foraging, eating, sharing and starvation.
package agents

import (
	"encoding/json"
	"fmt"
)

// DefaultHungerMax is the hunger capacity of a freshly spawned ant.
const DefaultHungerMax = 100.0

// EatFraction is the share of max removed by eating one carried food.
const EatFraction = 0.20

// Hunger keeps 0 <= value <= max on every mutation.
type Hunger struct {
	value float64
	max   float64
	rate  float64 // Added per tick
}

// NewHunger returns an empty hunger that reaches max after maxSeconds of
// story time at the given tick rate.
func NewHunger(maxSeconds float64, ticksPerSecond int) Hunger {
	h := Hunger{max: DefaultHungerMax}
	if maxSeconds > 0 && ticksPerSecond > 0 {
		h.rate = h.max / (maxSeconds * float64(ticksPerSecond))
	}
	return h
}

// HungerState is the plain view used for snapshots.
type HungerState struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
	Rate  float64 `json:"rate"`
}

// RestoreHunger rebuilds hunger from a snapshot, clamping the value.
func RestoreHunger(s HungerState) Hunger {
	h := Hunger{max: s.Max, rate: s.Rate}
	if h.max <= 0 {
		h.max = DefaultHungerMax
	}
	if h.rate < 0 {
		h.rate = 0
	}
	h.set(s.Value)
	return h
}

// State returns the plain view of h.
func (h Hunger) State() HungerState {
	return HungerState{Value: h.value, Max: h.max, Rate: h.rate}
}

func (h Hunger) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.State())
}

func (h *Hunger) UnmarshalJSON(b []byte) error {
	var s HungerState
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*h = RestoreHunger(s)
	return nil
}

func (h Hunger) Value() float64 { return h.value }

func (h Hunger) Max() float64 { return h.max }

func (h Hunger) Rate() float64 { return h.rate }

// Ratio returns value/max in [0, 1].
func (h Hunger) Ratio() float64 {
	if h.max <= 0 {
		return 0
	}
	return h.value / h.max
}

// IsStarved reports whether hunger has reached max.
func (h Hunger) IsStarved() bool { return h.max > 0 && h.value >= h.max }

// Headroom is how much more hunger fits before max.
func (h Hunger) Headroom() float64 { return h.max - h.value }

// Tick advances hunger by one tick's rate.
func (h *Hunger) Tick() { h.set(h.value + h.rate) }

// Add increases hunger.
func (h *Hunger) Add(v float64) { h.set(h.value + v) }

// Reduce decreases hunger.
func (h *Hunger) Reduce(v float64) { h.set(h.value - v) }

// Eat removes EatFraction of max, never going below zero.
func (h *Hunger) Eat() { h.Reduce(h.max * EatFraction) }

func (h *Hunger) set(v float64) {
	switch {
	case v < 0:
		v = 0
	case v > h.max:
		v = h.max
	}
	h.value = v
}

// Tier is an ordered hunger severity level.
type Tier uint8

const (
	TierFull Tier = iota
	TierPeckish
	TierHungry
	TierStarving
	TierStarved
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "Full"
	case TierPeckish:
		return "Peckish"
	case TierHungry:
		return "Hungry"
	case TierStarving:
		return "Starving"
	case TierStarved:
		return "Starved"
	}
	return "Unknown"
}

// AtLeast reports whether t is as severe as o or worse.
func (t Tier) AtLeast(o Tier) bool { return t >= o }

// Tiers holds the ratio thresholds for each tier. Starved is always 1.0.
type Tiers struct {
	Peckish  float64 `yaml:"peckish" json:"peckish"`
	Hungry   float64 `yaml:"hungry" json:"hungry"`
	Starving float64 `yaml:"starving" json:"starving"`
}

// DefaultTiers returns the 25/50/75 thresholds.
func DefaultTiers() Tiers {
	return Tiers{Peckish: 0.25, Hungry: 0.50, Starving: 0.75}
}

// Validate checks the thresholds are strictly increasing inside (0, 1).
func (t Tiers) Validate() error {
	if !(0 < t.Peckish && t.Peckish < t.Hungry && t.Hungry < t.Starving && t.Starving < 1) {
		return fmt.Errorf("hunger tiers must satisfy 0 < peckish < hungry < starving < 1, got %.2f/%.2f/%.2f",
			t.Peckish, t.Hungry, t.Starving)
	}
	return nil
}

// Of classifies h.
func (t Tiers) Of(h Hunger) Tier {
	r := h.Ratio()
	switch {
	case h.IsStarved():
		return TierStarved
	case r >= t.Starving:
		return TierStarving
	case r >= t.Hungry:
		return TierHungry
	case r >= t.Peckish:
		return TierPeckish
	}
	return TierFull
}
