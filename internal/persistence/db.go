// Package persistence provides SQLite-based colony state storage.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-colony/internal/agents"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/world"
)

// Meta keys.
const (
	metaStory          = "story"
	metaRealWorldTime  = "real_world_time"
	metaTicksPerSecond = "ticks_per_second"
	metaWidth          = "width"
	metaHeight         = "height"
	metaSurfaceLevel   = "surface_level"
	metaSeed           = "seed"
	metaNextAntID      = "next_ant_id"
	metaLastTick       = "last_tick"
)

// DB wraps a SQLite connection for colony state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ants (
		id INTEGER PRIMARY KEY,
		uuid TEXT NOT NULL,
		name TEXT NOT NULL,
		role INTEGER NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		facing INTEGER NOT NULL,
		angle INTEGER NOT NULL,
		carried_element INTEGER NOT NULL,
		carried_kind INTEGER NOT NULL,
		hunger_json TEXT NOT NULL,
		initiative_json TEXT,
		dead INTEGER NOT NULL,
		born_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS elements (
		id INTEGER PRIMARY KEY,
		uuid TEXT NOT NULL,
		kind INTEGER NOT NULL,
		pos_x INTEGER NOT NULL,
		pos_y INTEGER NOT NULL,
		carried INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_ants_dead ON ants(dead);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type antRow struct {
	ID             uint64         `db:"id"`
	UUID           string         `db:"uuid"`
	Name           string         `db:"name"`
	Role           uint8          `db:"role"`
	PosX           int            `db:"pos_x"`
	PosY           int            `db:"pos_y"`
	Facing         uint8          `db:"facing"`
	Angle          int            `db:"angle"`
	CarriedElement uint64         `db:"carried_element"`
	CarriedKind    uint8          `db:"carried_kind"`
	HungerJSON     string         `db:"hunger_json"`
	InitiativeJSON sql.NullString `db:"initiative_json"`
	Dead           bool           `db:"dead"`
	BornTick       uint64         `db:"born_tick"`
}

type elementRow struct {
	ID      uint64 `db:"id"`
	UUID    string `db:"uuid"`
	Kind    uint8  `db:"kind"`
	PosX    int    `db:"pos_x"`
	PosY    int    `db:"pos_y"`
	Carried bool   `db:"carried"`
}

func toAntRow(a engine.AntSnapshot) (antRow, error) {
	hungerJSON, err := json.Marshal(a.Hunger)
	if err != nil {
		return antRow{}, err
	}
	row := antRow{
		ID:             uint64(a.ID),
		UUID:           a.UUID.String(),
		Name:           a.Name,
		Role:           uint8(a.Role),
		PosX:           a.Position.X,
		PosY:           a.Position.Y,
		Facing:         uint8(a.Orientation.Facing),
		Angle:          int(a.Orientation.Angle),
		CarriedElement: uint64(a.Inventory.Element),
		CarriedKind:    uint8(a.Inventory.Kind),
		HungerJSON:     string(hungerJSON),
		Dead:           a.Dead,
		BornTick:       a.BornTick,
	}
	if a.Initiative != nil {
		iniJSON, err := json.Marshal(a.Initiative)
		if err != nil {
			return antRow{}, err
		}
		row.InitiativeJSON = sql.NullString{String: string(iniJSON), Valid: true}
	}
	return row, nil
}

func (r antRow) snapshot() (engine.AntSnapshot, error) {
	id, err := uuid.Parse(r.UUID)
	if err != nil {
		return engine.AntSnapshot{}, fmt.Errorf("ant %d uuid: %w", r.ID, err)
	}
	a := engine.AntSnapshot{
		ID:       agents.AntID(r.ID),
		UUID:     id,
		Name:     r.Name,
		Role:     agents.Role(r.Role),
		Position: world.Position{X: r.PosX, Y: r.PosY},
		Orientation: agents.Orientation{
			Facing: agents.Facing(r.Facing),
			Angle:  agents.Angle(r.Angle),
		},
		Inventory: agents.Inventory{
			Element: world.ElementID(r.CarriedElement),
			Kind:    world.ElementKind(r.CarriedKind),
		},
		Dead:     r.Dead,
		BornTick: r.BornTick,
	}
	if err := json.Unmarshal([]byte(r.HungerJSON), &a.Hunger); err != nil {
		return engine.AntSnapshot{}, fmt.Errorf("ant %d hunger: %w", r.ID, err)
	}
	if r.InitiativeJSON.Valid {
		var ini agents.InitiativeState
		if err := json.Unmarshal([]byte(r.InitiativeJSON.String), &ini); err != nil {
			return engine.AntSnapshot{}, fmt.Errorf("ant %d initiative: %w", r.ID, err)
		}
		a.Initiative = &ini
	}
	return a, nil
}

// SaveWorldState replaces the stored colony with snap in one transaction.
func (db *DB) SaveWorldState(snap engine.WorldSnapshot) error {
	slog.Info("saving colony state", "ants", len(snap.Ants), "elements", len(snap.Elements), "tick", snap.Story.ElapsedTicks)

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveAnts(tx, snap.Ants); err != nil {
		return fmt.Errorf("save ants: %w", err)
	}
	if err := saveElements(tx, snap.Elements); err != nil {
		return fmt.Errorf("save elements: %w", err)
	}
	if err := saveSnapshotMeta(tx, snap); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Info("colony state saved")
	return nil
}

func saveAnts(tx *sqlx.Tx, ants []engine.AntSnapshot) error {
	if _, err := tx.Exec("DELETE FROM ants"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO ants
		(id, uuid, name, role, pos_x, pos_y, facing, angle,
		 carried_element, carried_kind, hunger_json, initiative_json, dead, born_tick)
		VALUES (:id, :uuid, :name, :role, :pos_x, :pos_y, :facing, :angle,
		 :carried_element, :carried_kind, :hunger_json, :initiative_json, :dead, :born_tick)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range ants {
		row, err := toAntRow(a)
		if err != nil {
			return fmt.Errorf("encode ant %d: %w", a.ID, err)
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert ant %d: %w", a.ID, err)
		}
	}
	return nil
}

func saveElements(tx *sqlx.Tx, elements []world.Element) error {
	if _, err := tx.Exec("DELETE FROM elements"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO elements
		(id, uuid, kind, pos_x, pos_y, carried)
		VALUES (:id, :uuid, :kind, :pos_x, :pos_y, :carried)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range elements {
		row := elementRow{
			ID:      uint64(e.ID),
			UUID:    e.UUID.String(),
			Kind:    uint8(e.Kind),
			PosX:    e.Position.X,
			PosY:    e.Position.Y,
			Carried: e.Carried,
		}
		if _, err := stmt.Exec(row); err != nil {
			return fmt.Errorf("insert element %d: %w", e.ID, err)
		}
	}
	return nil
}

func saveSnapshotMeta(tx *sqlx.Tx, snap engine.WorldSnapshot) error {
	story, err := json.Marshal(snap.Story)
	if err != nil {
		return err
	}
	meta := map[string]string{
		metaStory:          string(story),
		metaRealWorldTime:  strconv.FormatInt(int64(snap.RealWorldTime), 10),
		metaTicksPerSecond: strconv.Itoa(snap.TicksPerSecond),
		metaWidth:          strconv.Itoa(snap.Width),
		metaHeight:         strconv.Itoa(snap.Height),
		metaSurfaceLevel:   strconv.Itoa(snap.SurfaceLevel),
		metaSeed:           strconv.FormatInt(snap.Seed, 10),
		metaNextAntID:      strconv.FormatUint(uint64(snap.NextAntID), 10),
		metaLastTick:       strconv.FormatUint(snap.Story.ElapsedTicks, 10),
	}
	for k, v := range meta {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", k, v); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
	}
	return nil
}

// HasWorldState reports whether a colony has been saved.
func (db *DB) HasWorldState() bool {
	_, err := db.GetMeta(metaStory)
	return err == nil
}

// LoadWorldState reads the saved colony back as a snapshot.
func (db *DB) LoadWorldState() (engine.WorldSnapshot, error) {
	var snap engine.WorldSnapshot

	meta, err := db.allMeta()
	if err != nil {
		return snap, fmt.Errorf("load meta: %w", err)
	}
	raw, ok := meta[metaStory]
	if !ok {
		return snap, fmt.Errorf("load meta: no saved colony")
	}
	if err := json.Unmarshal([]byte(raw), &snap.Story); err != nil {
		return snap, fmt.Errorf("load story: %w", err)
	}

	p := metaParser{meta: meta}
	snap.RealWorldTime = engine.RealWorldTime(p.int64(metaRealWorldTime))
	snap.TicksPerSecond = int(p.int64(metaTicksPerSecond))
	snap.Width = int(p.int64(metaWidth))
	snap.Height = int(p.int64(metaHeight))
	snap.SurfaceLevel = int(p.int64(metaSurfaceLevel))
	snap.Seed = p.int64(metaSeed)
	snap.NextAntID = agents.AntID(p.int64(metaNextAntID))
	if p.err != nil {
		return snap, fmt.Errorf("load meta: %w", p.err)
	}

	if snap.Ants, err = db.loadAnts(); err != nil {
		return snap, fmt.Errorf("load ants: %w", err)
	}
	if snap.Elements, err = db.loadElements(); err != nil {
		return snap, fmt.Errorf("load elements: %w", err)
	}
	return snap, nil
}

func (db *DB) allMeta() (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.Select(&rows, "SELECT key, value FROM world_meta"); err != nil {
		return nil, err
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}
	return meta, nil
}

// metaParser keeps the first parse failure.
type metaParser struct {
	meta map[string]string
	err  error
}

func (p *metaParser) int64(key string) int64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(p.meta[key], 10, 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return v
}

func (db *DB) loadAnts() ([]engine.AntSnapshot, error) {
	var rows []antRow
	if err := db.conn.Select(&rows, "SELECT * FROM ants ORDER BY id"); err != nil {
		return nil, err
	}
	ants := make([]engine.AntSnapshot, 0, len(rows))
	for _, r := range rows {
		a, err := r.snapshot()
		if err != nil {
			return nil, err
		}
		ants = append(ants, a)
	}
	return ants, nil
}

func (db *DB) loadElements() ([]world.Element, error) {
	var rows []elementRow
	if err := db.conn.Select(&rows, "SELECT * FROM elements ORDER BY id"); err != nil {
		return nil, err
	}
	var elements []world.Element
	for _, r := range rows {
		id, err := uuid.Parse(r.UUID)
		if err != nil {
			return nil, fmt.Errorf("element %d uuid: %w", r.ID, err)
		}
		elements = append(elements, world.Element{
			ID:       world.ElementID(r.ID),
			UUID:     id,
			Kind:     world.ElementKind(r.Kind),
			Position: world.Position{X: r.PosX, Y: r.PosY},
			Carried:  r.Carried,
		})
	}
	return elements, nil
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecordEvents appends events from ch in batches until ctx is cancelled or
// ch is closed. Failed batches are logged and dropped.
func (db *DB) RecordEvents(ctx context.Context, ch <-chan engine.Event, flushEvery time.Duration) {
	if flushEvery <= 0 {
		flushEvery = 5 * time.Second
	}
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	var batch []engine.Event
	flush := func() {
		if err := db.SaveEvents(batch); err != nil {
			slog.Error("event save failed", "events", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	defer flush()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			batch = append(batch, e)
		case <-ticker.C:
			flush()
		}
	}
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in colony metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns ErrNoMeta.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrNoMeta, key)
	}
	return value, err
}

// ErrNoMeta is returned by GetMeta for unknown keys.
var ErrNoMeta = errors.New("persistence: no such meta key")
