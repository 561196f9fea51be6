// Ant spawning: the initial colony and ants added later by commands.
package agents

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/mini-colony/internal/world"
)

// SpawnConfig controls the traits every new ant starts with.
type SpawnConfig struct {
	Seed             int64
	HungerMaxSeconds float64 // Story seconds from empty to starved
	TicksPerSecond   int
	Cooldown         int // Initiative cooldown in ticks
}

// Spawner creates ants for the simulation.
type Spawner struct {
	cfg    SpawnConfig
	rng    *rand.Rand
	nextID AntID
}

// NewSpawner creates an ant spawner with the given config.
func NewSpawner(cfg SpawnConfig) *Spawner {
	return &Spawner{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed + 300)),
		nextID: 1,
	}
}

// SetNextID sets the next ant ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AntID) {
	s.nextID = id
}

// NextID returns the ID the next spawned ant will receive.
func (s *Spawner) NextID() AntID { return s.nextID }

// SpawnQueen creates the colony's queen facing a random direction.
func (s *Spawner) SpawnQueen(p world.Position, tick uint64) *Ant {
	a := s.spawnOne(RoleQueen, p, tick)
	a.Name = "Queen " + a.Name
	return a
}

// SpawnWorker creates a worker facing a random direction.
func (s *Spawner) SpawnWorker(p world.Position, tick uint64) *Ant {
	return s.spawnOne(RoleWorker, p, tick)
}

// SpawnColony places a queen and count workers on empty cells of the
// surface row, filling outward from the middle. Ants that do not fit are
// skipped.
func (s *Spawner) SpawnColony(w *world.World, count int, tick uint64) []*Ant {
	mid := w.Grid.Width() / 2
	row := w.SurfaceLevel
	if row < 0 {
		row = 0
	}

	var cells []world.Position
	for offset := 0; offset <= w.Grid.Width(); offset++ {
		xs := []int{mid - offset, mid + offset}
		if offset == 0 {
			xs = xs[:1]
		}
		for _, x := range xs {
			p := world.Position{X: x, Y: row}
			if w.IsEmpty(p) {
				cells = append(cells, p)
			}
		}
	}
	if len(cells) == 0 {
		return nil
	}

	ants := []*Ant{s.SpawnQueen(cells[0], tick)}
	for _, p := range cells[1:] {
		if len(ants) > count {
			break
		}
		ants = append(ants, s.SpawnWorker(p, tick))
	}
	return ants
}

func (s *Spawner) spawnOne(role Role, p world.Position, tick uint64) *Ant {
	id := s.nextID
	s.nextID++

	facing := FacingRight
	if s.rng.Float32() < 0.5 {
		facing = FacingLeft
	}

	return &Ant{
		ID:          id,
		UUID:        uuid.New(),
		Name:        s.generateName(),
		Role:        role,
		Position:    p,
		Orientation: Orientation{Facing: facing, Angle: Angle0},
		Hunger:      NewHunger(s.cfg.HungerMaxSeconds, s.cfg.TicksPerSecond),
		Initiative:  NewInitiative(s.cfg.Cooldown, s.rng),
		BornTick:    tick,
	}
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var firstNames = []string{
	"Astrid", "Bram", "Calla", "Doran", "Elara", "Finn", "Greta",
	"Halvard", "Iris", "Jasper", "Kira", "Leif", "Mira", "Nils",
	"Olwen", "Petra", "Quinn", "Runa", "Stellan", "Thea", "Ulric",
	"Vera", "Wren", "Yara", "Zander", "Birgit", "Cade", "Dagny",
}

var lastNames = []string{
	"Loam", "Burrow", "Sandgrain", "Deepwell", "Rootcrawl", "Clayfoot",
	"Tunnelwright", "Pebble", "Mossback", "Hollow", "Crumb", "Seedkeeper",
	"Amberjaw", "Silt", "Dewdrop", "Stonecap", "Thistle", "Underleaf",
}
