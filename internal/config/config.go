// Package config loads colony settings from a YAML file layered over
// defaults, with secrets taken from the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/world"
)

// AdminKeyEnv names the environment variable holding the admin bearer token.
const AdminKeyEnv = "COLONYSIM_ADMIN_KEY"

// RandomOrgKeyEnv names the environment variable holding a random.org key.
const RandomOrgKeyEnv = "COLONYSIM_RANDOM_ORG_KEY"

// Config is the full set of tunables.
type Config struct {
	Simulation  Simulation   `yaml:"simulation"`
	World       World        `yaml:"world"`
	Ants        Ants         `yaml:"ants"`
	Hunger      agents.Tiers `yaml:"hunger"`
	Persistence Persistence  `yaml:"persistence"`
	API         API          `yaml:"api"`
	Logging     Logging      `yaml:"logging"`

	// From the environment only.
	AdminKey     string `yaml:"-"`
	RandomOrgKey string `yaml:"-"`
}

type Simulation struct {
	Seed             int64         `yaml:"seed"` // Zero draws a fresh seed
	TicksPerSecond   int           `yaml:"ticks_per_second"`
	FrameInterval    time.Duration `yaml:"frame_interval"`
	MaxStepsPerFrame int           `yaml:"max_steps_per_frame"`
	RealTime         bool          `yaml:"real_time"`
	RealSun          bool          `yaml:"real_sun"`
	Latitude         float64       `yaml:"latitude"`
	Longitude        float64       `yaml:"longitude"`
}

type World struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	InitialDirtPercent float64 `yaml:"initial_dirt_percent"`
	InitialWorkers     int     `yaml:"initial_workers"`
	SandDensity        float64 `yaml:"sand_density"`
	FoodDensity        float64 `yaml:"food_density"`
}

type Ants struct {
	HungerMaxSeconds        float64 `yaml:"hunger_max_seconds"`
	InitiativeCooldownTicks int     `yaml:"initiative_cooldown_ticks"`
	TurnChance              float64 `yaml:"turn_chance"`
}

type Persistence struct {
	DBPath           string        `yaml:"db_path"`
	ArchiveDir       string        `yaml:"archive_dir"`
	AutosaveInterval time.Duration `yaml:"autosave_interval"` // Zero disables autosave
}

type API struct {
	Port           int `yaml:"port"` // Zero disables the HTTP API
	CommandsPerMin int `yaml:"commands_per_minute"`
	MaxStreamConns int `yaml:"max_stream_conns"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	ec := engine.DefaultConfig()
	gen := world.DefaultGenConfig()
	return Config{
		Simulation: Simulation{
			TicksPerSecond:   engine.DefaultTicksPerSecond,
			FrameInterval:    time.Second / 60,
			MaxStepsPerFrame: 2000,
			Latitude:         ec.Latitude,
			Longitude:        ec.Longitude,
		},
		World: World{
			Width:              gen.Width,
			Height:             gen.Height,
			InitialDirtPercent: gen.InitialDirtPercent,
			InitialWorkers:     ec.InitialWorkers,
			SandDensity:        gen.SandDensity,
			FoodDensity:        gen.FoodDensity,
		},
		Ants: Ants{
			HungerMaxSeconds:        ec.HungerMaxSeconds,
			InitiativeCooldownTicks: ec.InitiativeCooldown,
			TurnChance:              ec.TurnChance,
		},
		Hunger: agents.DefaultTiers(),
		Persistence: Persistence{
			DBPath:           "data/colony.db",
			ArchiveDir:       "data/archive",
			AutosaveInterval: time.Minute,
		},
		API: API{
			Port:           8080,
			CommandsPerMin: 120,
			MaxStreamConns: 4,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads path over Default, applies the environment and validates.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := decode(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	cfg.AdminKey = os.Getenv(AdminKeyEnv)
	cfg.RandomOrgKey = os.Getenv(RandomOrgKeyEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decode rejects unknown keys so typos do not silently fall back to defaults.
func decode(raw []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	s := c.Simulation
	if s.TicksPerSecond < 1 || s.TicksPerSecond > engine.MaxUserTicksPerSecond {
		add("simulation.ticks_per_second must be 1..%d, got %d", engine.MaxUserTicksPerSecond, s.TicksPerSecond)
	}
	if s.FrameInterval <= 0 {
		add("simulation.frame_interval must be positive, got %s", s.FrameInterval)
	}
	if s.MaxStepsPerFrame < 1 {
		add("simulation.max_steps_per_frame must be positive, got %d", s.MaxStepsPerFrame)
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		add("simulation.latitude must be -90..90, got %g", s.Latitude)
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		add("simulation.longitude must be -180..180, got %g", s.Longitude)
	}
	if s.RealSun && !s.RealTime {
		add("simulation.real_sun requires simulation.real_time")
	}

	w := c.World
	if w.Width < 2 || w.Height < 2 {
		add("world.width and world.height must be at least 2, got %dx%d", w.Width, w.Height)
	}
	if w.InitialDirtPercent < 0 || w.InitialDirtPercent >= 1 {
		add("world.initial_dirt_percent must be in [0, 1), got %g", w.InitialDirtPercent)
	}
	if w.InitialWorkers < 0 {
		add("world.initial_workers must be non-negative, got %d", w.InitialWorkers)
	}
	if w.SandDensity < 0 || w.SandDensity > 1 {
		add("world.sand_density must be in [0, 1], got %g", w.SandDensity)
	}
	if w.FoodDensity < 0 || w.FoodDensity > 1 {
		add("world.food_density must be in [0, 1], got %g", w.FoodDensity)
	}

	a := c.Ants
	if a.HungerMaxSeconds <= 0 {
		add("ants.hunger_max_seconds must be positive, got %g", a.HungerMaxSeconds)
	}
	if a.InitiativeCooldownTicks < 0 {
		add("ants.initiative_cooldown_ticks must be non-negative, got %d", a.InitiativeCooldownTicks)
	}
	if a.TurnChance < 0 || a.TurnChance > 1 {
		add("ants.turn_chance must be in [0, 1], got %g", a.TurnChance)
	}

	if err := c.Hunger.Validate(); err != nil {
		add("hunger: %v", err)
	}

	if c.Persistence.DBPath == "" {
		add("persistence.db_path must be set")
	}
	if c.Persistence.AutosaveInterval < 0 {
		add("persistence.autosave_interval must be non-negative, got %s", c.Persistence.AutosaveInterval)
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		add("api.port must be 0..65535, got %d", c.API.Port)
	}
	if c.API.CommandsPerMin < 1 {
		add("api.commands_per_minute must be positive, got %d", c.API.CommandsPerMin)
	}
	if c.API.MaxStreamConns < 1 {
		add("api.max_stream_conns must be positive, got %d", c.API.MaxStreamConns)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		add("logging.level: %v", err)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Engine converts the settings into a simulation config. seed replaces a
// zero Simulation.Seed.
func (c Config) Engine(seed int64) engine.Config {
	if c.Simulation.Seed != 0 {
		seed = c.Simulation.Seed
	}
	return engine.Config{
		Seed:               seed,
		TicksPerSecond:     c.Simulation.TicksPerSecond,
		RealTime:           c.Simulation.RealTime,
		RealSun:            c.Simulation.RealSun,
		Latitude:           c.Simulation.Latitude,
		Longitude:          c.Simulation.Longitude,
		HungerMaxSeconds:   c.Ants.HungerMaxSeconds,
		InitiativeCooldown: c.Ants.InitiativeCooldownTicks,
		TurnChance:         c.Ants.TurnChance,
		Tiers:              c.Hunger,
		InitialWorkers:     c.World.InitialWorkers,
		Gen: world.GenConfig{
			Width:              c.World.Width,
			Height:             c.World.Height,
			Seed:               seed,
			InitialDirtPercent: c.World.InitialDirtPercent,
			SandDensity:        c.World.SandDensity,
			FoodDensity:        c.World.FoodDensity,
		},
	}
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}
