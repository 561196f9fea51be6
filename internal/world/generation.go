// Nest generation using layered simplex noise.
// Fills everything below the surface with dirt, scatters sand pockets
// through the dirt and food along the surface.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds nest generation parameters.
type GenConfig struct {
	Width              int
	Height             int
	Seed               int64   // Random seed (0 = random)
	InitialDirtPercent float64 // Share of rows that start as dirt (0.0–1.0)
	SandDensity        float64 // Share of dirt cells turned to sand (0.0–1.0)
	FoodDensity        float64 // Share of surface cells holding food (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:              144,
		Height:             81,
		Seed:               0,
		InitialDirtPercent: 2.0 / 3.0,
		SandDensity:        0.08,
		FoodDensity:        0.05,
	}
}

// SmallTestConfig returns a tiny nest for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Width:              16,
		Height:             12,
		Seed:               42,
		InitialDirtPercent: 0.5,
		SandDensity:        0.1,
		FoodDensity:        0.2,
	}
}

// SurfaceLevel returns the lowest air row for the given size.
func SurfaceLevel(height int, dirtPercent float64) int {
	return int(float64(height) - float64(height)*dirtPercent)
}

// Generate creates a nest with dirt, sand and food.
func Generate(cfg GenConfig) *World {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	sandNoise := opensimplex.NewNormalized(seed)
	foodNoise := opensimplex.NewNormalized(seed + 1)

	surface := SurfaceLevel(cfg.Height, cfg.InitialDirtPercent)
	w := NewWorld(cfg.Width, cfg.Height, surface)

	for y := surface + 1; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			kind := ElementDirt
			// Clustered noise gives pockets rather than salt-and-pepper.
			if octaveNoise(sandNoise, float64(x), float64(y), 3, 0.12, 0.5) > 1-cfg.SandDensity {
				kind = ElementSand
			}
			w.Spawn(kind, Position{X: x, Y: y})
		}
	}

	// Food rests on top of the dirt.
	if surface >= 0 && surface < cfg.Height {
		for x := 0; x < cfg.Width; x++ {
			if octaveNoise(foodNoise, float64(x), 0, 2, 0.3, 0.5) > 1-cfg.FoodDensity {
				w.Spawn(ElementFood, Position{X: x, Y: surface})
			}
		}
	}

	return w
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
