// Command wildfire runs a scene with spreading hazards: it drives the combat
// order, spreads hazards on their turns and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/wildfire/internal/api"
	"github.com/talgya/wildfire/internal/dice"
	"github.com/talgya/wildfire/internal/engine"
	"github.com/talgya/wildfire/internal/entropy"
	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/hazard"
	"github.com/talgya/wildfire/internal/notify"
	"github.com/talgya/wildfire/internal/persistence"
	"github.com/talgya/wildfire/internal/scene"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := loadConfig()
	ctx := context.Background()

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(cfg.DBPath), 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	topo, err := grid.TopologyByName(cfg.Topology)
	if err != nil {
		slog.Error("bad topology", "error", err)
		os.Exit(1)
	}

	// ── Load or Generate Scene ───────────────────────────────────────
	hasScene, err := db.HasScene(ctx)
	if err != nil {
		slog.Error("failed to inspect database", "error", err)
		os.Exit(1)
	}

	var geom grid.Geometry
	var campfire string
	if hasScene {
		geom = savedGeometry(db, cfg)
		slog.Info("found saved scene", "geometry", geom.String())
	} else {
		slog.Info("no saved scene found, generating...")
		gen := scene.DefaultGenConfig()
		gen.Seed = cfg.Seed
		gen.Rows, gen.Cols, gen.CellSize = cfg.Rows, cfg.Cols, cfg.CellSize
		s := scene.Generate(gen)
		if err := db.SaveScene(ctx, s); err != nil {
			slog.Error("initial save failed", "error", err)
			os.Exit(1)
		}
		flammable, inert := scene.RegionCounts(s.Regions)
		slog.Info("scene generated", "flammable_regions", flammable, "inert_regions", inert, "tokens", len(s.Tokens))
		geom = s.Geometry
		campfire = s.Campfire
	}
	geom.Topology = topo

	// ── Dice ──────────────────────────────────────────────────────────
	var src dice.Source = dice.NewSeeded(cfg.Seed)
	if c := entropy.NewClient(cfg.RandomOrgKey); c != nil {
		src = c
		slog.Info("spread rolls use random.org entropy")
	}
	roller := dice.NewRoller(src)

	// ── Notifications ─────────────────────────────────────────────────
	tr, err := notify.NewTranslator(cfg.Lang)
	if err != nil {
		slog.Warn("falling back to English notifications", "error", err)
		tr, _ = notify.NewTranslator("en")
	}
	journal := notify.NewJournal(tr)
	notifier := notify.Multi{notify.NewConsole(os.Stdout, tr), journal}

	// ── Hazards ───────────────────────────────────────────────────────
	reg := hazard.NewRegistry(hazard.Config{
		Store:    db,
		Geometry: geom,
		Dice:     roller,
		Notifier: notifier,
	})
	restored, err := reg.Restore(ctx)
	if err != nil {
		slog.Error("failed to restore hazards", "error", err)
		os.Exit(1)
	}

	eng := engine.NewEngine()
	eng.Interval = cfg.TurnInterval
	combatants, err := db.Combatants(ctx)
	if err != nil {
		slog.Error("failed to load combat order", "error", err)
		os.Exit(1)
	}

	if campfire != "" {
		h, err := reg.CreateHazard(ctx, campfire, "1d6", 4)
		if err != nil {
			slog.Error("failed to light the campfire", "error", err)
		} else {
			combatants = append(combatants,
				scene.Combatant{ID: "ranger", Name: "Ranger", Initiative: 15},
				h.Combatant(10, nil),
			)
			if err := db.SaveCombatants(ctx, combatants); err != nil {
				slog.Error("failed to save combat order", "error", err)
			}
		}
	}
	eng.SetCombatants(combatants)
	eng.Restore(metaUint(db, "round"), metaUint(db, "turn"))

	eng.OnTurn = func(ctx context.Context, ev engine.TurnEvent) error {
		journal.SetTurn(ev.Turn)
		res, ok, err := reg.HandleTurn(hazard.WithTurn(ctx, ev.Turn), ev.Combatant)
		if !ok {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s turn: %w", ev.Combatant.Name, err)
		}
		if res.Skipped {
			slog.Warn("hazard still spreading from a previous turn", "hazard", res.HazardID)
		}
		return nil
	}
	eng.OnRound = func(round uint64) {
		// Auto-save every round.
		flush(db, journal, eng)
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("WILDFIRE_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Registry:  reg,
		Store:     db,
		Eng:       eng,
		Port:      cfg.Port,
		AdminKey:  cfg.AdminKey,
		StartedAt: time.Now(),
	}
	srv := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nThe scene is set: %d hazards (%d restored), %d combatants, %s.\n",
		reg.Len(), restored, len(combatants), geom.String())
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Port)
	fmt.Println("Running turns... (Ctrl+C to stop)")

	eng.Run(ctx)
	eng.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	flush(db, journal, eng)
	fmt.Println("Scene stopped. State saved.")
}

// flush writes pending journal events and the turn counters.
func flush(db *persistence.DB, journal *notify.Journal, eng *engine.Engine) {
	ctx := context.Background()
	if err := db.SaveEvents(ctx, journal.Drain()); err != nil {
		slog.Error("save events failed", "error", err)
	}
	if err := db.SaveMeta("round", strconv.FormatUint(eng.Round(), 10)); err != nil {
		slog.Error("save meta failed", "error", err)
	}
	if err := db.SaveMeta("turn", strconv.FormatUint(eng.Turn(), 10)); err != nil {
		slog.Error("save meta failed", "error", err)
	}
}

// savedGeometry reads the scene bounds written at generation time; the
// environment fills in anything missing.
func savedGeometry(db *persistence.DB, cfg config) grid.Geometry {
	geom := grid.NewGeometry(cfg.CellSize, cfg.Rows, cfg.Cols, nil)
	if v, err := db.GetMeta("cell_size"); err == nil {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			geom.Size = f
		}
	}
	if n := int(metaUint(db, "rows")); n > 0 {
		geom.Rows = n
	}
	if n := int(metaUint(db, "cols")); n > 0 {
		geom.Cols = n
	}
	return geom
}

func metaUint(db *persistence.DB, key string) uint64 {
	v, err := db.GetMeta(key)
	if err != nil {
		if !errors.Is(err, scene.ErrNotFound) {
			slog.Warn("read meta failed", "key", key, "error", err)
		}
		return 0
	}
	n, _ := strconv.ParseUint(v, 10, 64)
	return n
}
