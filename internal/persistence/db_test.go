package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/wildfire/internal/dice"
	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/hazard"
	"github.com/talgya/wildfire/internal/scene"
)

var _ hazard.Store = (*DB)(nil)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTokens_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := []scene.Token{
		{ID: "a", Template: scene.Template{Name: "Torch", Width: 1, Height: 1, Flags: map[string]string{"light": "dim"}}, X: 50, Y: 100},
		{ID: "b", Template: scene.Template{Name: "Ember"}, X: 100, Y: 100, HazardID: "h1", Origin: true},
		{Template: scene.Template{Name: "Ash"}, X: 150, Y: 100, HazardID: "h1"},
	}
	n, err := db.CreateTokens(ctx, in)
	if err != nil || n != 3 {
		t.Fatalf("CreateTokens = %d, %v, want 3, nil", n, err)
	}

	got, err := db.Token(ctx, "a")
	if err != nil {
		t.Fatalf("Token error = %v", err)
	}
	if got.Template.Name != "Torch" || got.Template.Flags["light"] != "dim" || got.X != 50 || got.IsHazard() {
		t.Errorf("Token(a) = %+v", got)
	}

	all, _ := db.Tokens(ctx)
	if len(all) != 3 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("Tokens() = %+v, want insertion order", all)
	}
	if all[2].ID == "" {
		t.Error("token created without id")
	}

	burning, _ := db.HazardTokens(ctx, "h1")
	if len(burning) != 2 {
		t.Fatalf("HazardTokens = %d, want 2", len(burning))
	}
	if !burning[0].Origin || burning[1].Origin {
		t.Errorf("origin flags = %v, %v, want true, false", burning[0].Origin, burning[1].Origin)
	}
	if none, _ := db.HazardTokens(ctx, ""); len(none) != 0 {
		t.Errorf("HazardTokens(\"\") = %d tokens, want 0", len(none))
	}
}

func TestCreateTokens_AllOrNothing(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.CreateTokens(ctx, []scene.Token{{ID: "dup"}})
	_, err := db.CreateTokens(ctx, []scene.Token{{ID: "fresh"}, {ID: "dup"}})
	if err == nil {
		t.Fatal("CreateTokens with duplicate id error = nil")
	}
	if _, err := db.Token(ctx, "fresh"); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("Token(fresh) error = %v, want ErrNotFound after rollback", err)
	}
}

func TestUpdateTokens(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	db.CreateTokens(ctx, []scene.Token{{ID: "a", Template: scene.Template{Name: "Torch"}}})

	if err := db.UpdateTokens(ctx, []scene.Token{{ID: "a", HazardID: "h", Origin: true}}); err != nil {
		t.Fatalf("UpdateTokens error = %v", err)
	}
	got, _ := db.Token(ctx, "a")
	if got.HazardID != "h" || !got.Origin {
		t.Errorf("Token(a) = %+v after update", got)
	}
	if err := db.UpdateTokens(ctx, []scene.Token{{ID: "ghost"}}); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("UpdateTokens(ghost) error = %v, want ErrNotFound", err)
	}
	if _, err := db.Token(ctx, "ghost"); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("Token(ghost) error = %v, want ErrNotFound", err)
	}
}

func TestRegions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	db.CreateRegions(ctx, []scene.Region{
		{ID: "r1", Name: "Brush", Bounds: grid.Rect{X: 10, Y: 20, W: 30, H: 40}, Flammable: true},
		{ID: "r2", Name: "Scree", Bounds: grid.Rect{X: 0, Y: 0, W: 5, H: 5}},
		{ID: "r3", Name: "Meadow", Bounds: grid.Rect{X: 1, Y: 1, W: 1, H: 1}},
	})

	got, err := db.Regions(ctx, []string{"r3", "r1"})
	if err != nil {
		t.Fatalf("Regions error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "r3" || got[1].ID != "r1" {
		t.Fatalf("Regions = %+v, want r3, r1", got)
	}
	if got[1].Bounds != (grid.Rect{X: 10, Y: 20, W: 30, H: 40}) || !got[1].Flammable {
		t.Errorf("r1 = %+v", got[1])
	}
	if _, err := db.Regions(ctx, []string{"r1", "nope"}); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("Regions(nope) error = %v, want ErrNotFound", err)
	}

	flammable, _ := db.FlammableRegions(ctx)
	if len(flammable) != 1 || flammable[0].ID != "r1" {
		t.Errorf("FlammableRegions = %+v, want r1", flammable)
	}

	got[0].Flammable = true
	if err := db.UpdateRegions(ctx, got[:1]); err != nil {
		t.Fatalf("UpdateRegions error = %v", err)
	}
	flammable, _ = db.FlammableRegions(ctx)
	if len(flammable) != 2 {
		t.Errorf("FlammableRegions = %d after update, want 2", len(flammable))
	}
	if err := db.UpdateRegions(ctx, []scene.Region{{ID: "ghost"}}); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("UpdateRegions(ghost) error = %v, want ErrNotFound", err)
	}

	all, _ := db.AllRegions(ctx)
	if len(all) != 3 {
		t.Errorf("AllRegions = %d, want 3", len(all))
	}
	if ok, _ := db.HasScene(ctx); !ok {
		t.Error("HasScene() = false with regions present")
	}
}

func TestHazards(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := scene.HazardRecord{
		ID:        "h1",
		Name:      "Campfire",
		SourceID:  "tok",
		Template:  scene.Template{Name: "Campfire", Flags: map[string]string{"light": "bright"}},
		Chance:    scene.Chance{Formula: "1d6", Target: 4},
		CreatedAt: created,
	}
	if err := db.SaveHazard(ctx, rec); err != nil {
		t.Fatalf("SaveHazard error = %v", err)
	}

	got, err := db.Hazards(ctx)
	if err != nil || len(got) != 1 {
		t.Fatalf("Hazards = %v, %v", got, err)
	}
	if got[0].Chance != rec.Chance || got[0].Template.Flags["light"] != "bright" || !got[0].CreatedAt.Equal(created) {
		t.Errorf("Hazards()[0] = %+v", got[0])
	}

	if err := db.DeleteHazard(ctx, "h1"); err != nil {
		t.Fatalf("DeleteHazard error = %v", err)
	}
	if err := db.DeleteHazard(ctx, "h1"); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("second DeleteHazard error = %v, want ErrNotFound", err)
	}
}

func TestCombatants(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	in := []scene.Combatant{
		{ID: "c1", Name: "Ranger", Initiative: 18},
		{ID: "hazard:h1", Name: "Campfire", Initiative: 10, HazardID: "h1", Chance: &scene.Chance{Formula: "1d20", Target: 12}},
	}
	if err := db.SaveCombatants(ctx, in); err != nil {
		t.Fatalf("SaveCombatants error = %v", err)
	}
	got, _ := db.Combatants(ctx)
	if len(got) != 2 || got[0].Chance != nil || got[1].Chance == nil || *got[1].Chance != *in[1].Chance {
		t.Errorf("Combatants = %+v", got)
	}

	db.SaveCombatants(ctx, in[1:])
	if got, _ := db.Combatants(ctx); len(got) != 1 || got[0].HazardID != "h1" {
		t.Errorf("Combatants after replace = %+v", got)
	}
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db.SaveEvents(ctx, []scene.Event{
		{Turn: 1, Description: "first", Category: "created", At: at},
		{Turn: 2, Description: "second", Category: "spread", At: at.Add(time.Minute)},
	})
	got, err := db.RecentEvents(ctx, 1)
	if err != nil || len(got) != 1 || got[0].Description != "second" {
		t.Fatalf("RecentEvents(1) = %+v, %v", got, err)
	}
	if !got[0].At.Equal(at.Add(time.Minute)) {
		t.Errorf("At = %v", got[0].At)
	}

	if err := db.SaveMeta("rows", "24"); err != nil {
		t.Fatalf("SaveMeta error = %v", err)
	}
	if v, err := db.GetMeta("rows"); err != nil || v != "24" {
		t.Errorf("GetMeta(rows) = %q, %v", v, err)
	}
	if _, err := db.GetMeta("missing"); !errors.Is(err, scene.ErrNotFound) {
		t.Errorf("GetMeta(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSaveScene(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if ok, _ := db.HasScene(ctx); ok {
		t.Fatal("HasScene() = true on empty database")
	}
	s := scene.Generate(scene.SmallTestConfig())
	if err := db.SaveScene(ctx, s); err != nil {
		t.Fatalf("SaveScene error = %v", err)
	}
	regions, _ := db.AllRegions(ctx)
	tokens, _ := db.Tokens(ctx)
	if len(regions) != len(s.Regions) || len(tokens) != len(s.Tokens) {
		t.Errorf("saved %d regions / %d tokens, want %d / %d", len(regions), len(tokens), len(s.Regions), len(s.Tokens))
	}
	if v, _ := db.GetMeta("campfire"); v != s.Campfire {
		t.Errorf("campfire meta = %q, want %q", v, s.Campfire)
	}
}

func TestHazardSpreadsThroughDB(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	geom := grid.NewGeometry(50, 10, 10, grid.Square)

	db.CreateRegions(ctx, []scene.Region{{ID: "brush", Bounds: grid.Rect{X: 0, Y: 0, W: 150, H: 150}, Flammable: true}})
	db.CreateTokens(ctx, []scene.Token{{ID: "fire", Template: scene.Template{Name: "Campfire"}}})

	reg := hazard.NewRegistry(hazard.Config{
		Store:    db,
		Geometry: geom,
		Dice:     dice.NewRoller(dice.NewSeeded(7)),
	})
	h, err := reg.CreateHazard(ctx, "fire", "1d1", 0)
	if err != nil {
		t.Fatalf("CreateHazard error = %v", err)
	}

	res, err := h.Spread(ctx, nil)
	if err != nil {
		t.Fatalf("Spread error = %v", err)
	}
	if res.Created != 3 {
		t.Errorf("Created = %d, want 3", res.Created)
	}
	burning, _ := db.HazardTokens(ctx, h.ID())
	if len(burning) != 4 {
		t.Errorf("burning tokens = %d, want 4", len(burning))
	}

	restored := hazard.NewRegistry(hazard.Config{Store: db, Geometry: geom, Dice: dice.NewRoller(dice.NewSeeded(7))})
	if n, err := restored.Restore(ctx); err != nil || n != 1 {
		t.Errorf("Restore = %d, %v, want 1, nil", n, err)
	}
}
