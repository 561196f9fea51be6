// Command colonysim runs the ant colony simulation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/mini-colony/internal/api"
	"github.com/talgya/mini-colony/internal/config"
	"github.com/talgya/mini-colony/internal/engine"
	"github.com/talgya/mini-colony/internal/entropy"
	"github.com/talgya/mini-colony/internal/persistence"
	"github.com/talgya/mini-colony/internal/persistence/archive"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	restorePath := flag.String("restore", "", `restore from an archive file instead of the database ("latest" picks the newest)`)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	level, _ := config.ParseLevel(cfg.Logging.Level)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Database ──────────────────────────────────────────────────────
	dbPath := cfg.Persistence.DBPath
	os.MkdirAll(filepath.Dir(dbPath), 0755)
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Load or Found Colony ──────────────────────────────────────────
	sim, resumed, err := loadColony(ctx, cfg, db, *restorePath)
	if err != nil {
		slog.Error("failed to load colony", "error", err)
		os.Exit(1)
	}

	// Save on founding or archive restore; a colony loaded from the
	// database is already saved.
	if !resumed || *restorePath != "" {
		if err := db.SaveWorldState(sim.Snapshot()); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim, engine.SystemTime{})
	eng.FrameInterval = cfg.Simulation.FrameInterval
	eng.MaxStepsPerFrame = cfg.Simulation.MaxStepsPerFrame
	eng.AutosaveInterval = cfg.Persistence.AutosaveInterval
	eng.OnSave = db.SaveWorldState
	eng.SaveDaily = true
	eng.OnDay = sim.TickDay

	// Persist the event stream in batches.
	subID, events := sim.Events.Subscribe()
	recorded := make(chan struct{})
	go func() {
		db.RecordEvents(ctx, events, 5*time.Second)
		close(recorded)
	}()

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn(config.AdminKeyEnv + " not set, admin POST endpoints will be disabled")
	}
	if cfg.API.Port > 0 {
		apiServer := &api.Server{
			Eng:               eng,
			DB:                db,
			ArchiveDir:        cfg.Persistence.ArchiveDir,
			Port:              cfg.API.Port,
			AdminKey:          cfg.AdminKey,
			CommandsPerMinute: cfg.API.CommandsPerMin,
			MaxStreams:        cfg.API.MaxStreamConns,
		}
		apiServer.Start(ctx)
	}

	// ── Start ─────────────────────────────────────────────────────────
	r := eng.Start()
	if !r.FirstRun {
		slog.Info("reconciled suspension",
			"gap", r.Gap.Round(time.Second),
			"backlog", r.Backlog,
			"teleported_ticks", humanize.Comma(int64(r.TeleportedTicks)),
		)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	st := eng.Status()
	fmt.Printf("\nThe colony is alive: %d ants at %s.\n", st.Stats.Alive, st.Time)
	if cfg.API.Port > 0 {
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)
	eng.Stop()

	sim.Events.Unsubscribe(subID)
	<-recorded

	// Final save on shutdown.
	slog.Info("final save...")
	snap := eng.Snapshot()
	if err := db.SaveWorldState(snap); err != nil {
		slog.Error("final save failed", "error", err)
	}
	if dir := cfg.Persistence.ArchiveDir; dir != "" {
		path := filepath.Join(dir, archive.Name(snap.Story.ElapsedTicks))
		if err := archive.Write(path, snap); err != nil {
			slog.Error("final archive failed", "path", path, "error", err)
		} else {
			slog.Info("archive written", "path", path)
		}
	}

	fmt.Println("Simulation stopped. Colony saved.")
}

// loadColony restores from an archive when one is named, otherwise from the
// database, and founds a new colony when neither holds one. resumed reports
// whether an existing colony was restored.
func loadColony(ctx context.Context, cfg config.Config, db *persistence.DB, restorePath string) (*engine.Simulation, bool, error) {
	if restorePath == "latest" {
		path, ok, err := archive.Latest(cfg.Persistence.ArchiveDir)
		if err != nil {
			return nil, false, fmt.Errorf("list archives: %w", err)
		}
		if !ok {
			return nil, false, fmt.Errorf("no archives in %s", cfg.Persistence.ArchiveDir)
		}
		restorePath = path
	}

	switch {
	case restorePath != "":
		h, snap, err := archive.Read(restorePath)
		if err != nil {
			return nil, false, fmt.Errorf("read archive: %w", err)
		}
		sim, err := engine.RestoreSimulation(cfg.Engine(snap.Seed), snap)
		if err != nil {
			return nil, false, err
		}
		slog.Info("colony restored from archive",
			"path", restorePath,
			"tick", humanize.Comma(int64(h.Tick)),
			"ants", h.Ants,
			"archived", humanize.Time(h.CreatedAt),
		)
		return sim, true, nil

	case db.HasWorldState():
		slog.Info("found saved colony, loading...")
		snap, err := db.LoadWorldState()
		if err != nil {
			return nil, false, err
		}
		sim, err := engine.RestoreSimulation(cfg.Engine(snap.Seed), snap)
		if err != nil {
			return nil, false, err
		}
		slog.Info("colony restored",
			"ants", len(sim.Ants),
			"tick", humanize.Comma(int64(sim.CurrentTick())),
			"time", sim.State.Story.TimeInfo().String(),
		)
		return sim, true, nil
	}

	slog.Info("no saved colony found, founding a new one...")
	seed := cfg.Simulation.Seed
	if seed == 0 {
		rc := entropy.NewClient(cfg.RandomOrgKey)
		seed = rc.Seed(ctx)
		slog.Info("drew colony seed", "seed", seed, "random_org", rc.Enabled())
	}
	return engine.NewSimulation(cfg.Engine(seed), time.Now()), false, nil
}
