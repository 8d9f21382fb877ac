package scene

import (
	"context"
	"errors"
	"testing"
)

func TestTemplateClone_Isolated(t *testing.T) {
	orig := Template{Name: "Fire", Flags: map[string]string{"light": "dim"}}
	c := orig.Clone()
	c.Flags["light"] = "bright"
	c.Name = "Ooze"

	if orig.Flags["light"] != "dim" {
		t.Errorf("orig.Flags[light] = %q after mutating clone, want dim", orig.Flags["light"])
	}
	if orig.Name != "Fire" {
		t.Errorf("orig.Name = %q, want Fire", orig.Name)
	}
}

func TestMemoryStore_TokensAreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	tok := Token{ID: "a", Template: Template{Flags: map[string]string{"k": "v"}}, HazardID: "h"}
	if _, err := m.CreateTokens(ctx, []Token{tok}); err != nil {
		t.Fatalf("CreateTokens error = %v", err)
	}
	tok.Template.Flags["k"] = "changed"

	got, err := m.Token(ctx, "a")
	if err != nil {
		t.Fatalf("Token error = %v", err)
	}
	if got.Template.Flags["k"] != "v" {
		t.Errorf("stored flag = %q, want v", got.Template.Flags["k"])
	}

	got.Template.Flags["k"] = "again"
	again, _ := m.Token(ctx, "a")
	if again.Template.Flags["k"] != "v" {
		t.Errorf("stored flag = %q after mutating a read, want v", again.Template.Flags["k"])
	}
}

func TestMemoryStore_HazardTokensFiltersByMarker(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.CreateTokens(ctx, []Token{
		{ID: "1", HazardID: "fire"},
		{ID: "2", HazardID: "ooze"},
		{ID: "3"},
		{ID: "4", HazardID: "fire"},
	})

	got, err := m.HazardTokens(ctx, "fire")
	if err != nil {
		t.Fatalf("HazardTokens error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "4" {
		t.Errorf("HazardTokens(fire) = %v, want tokens 1 and 4", got)
	}
	if got, _ := m.HazardTokens(ctx, ""); len(got) != 0 {
		t.Errorf("HazardTokens(\"\") = %v, want none", got)
	}
}

func TestMemoryStore_CreateTokensRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.CreateTokens(ctx, []Token{{ID: "a"}})
	if _, err := m.CreateTokens(ctx, []Token{{ID: "b"}, {ID: "a"}}); err == nil {
		t.Fatal("CreateTokens with duplicate id error = nil, want error")
	}
	all, _ := m.Tokens(ctx)
	if len(all) != 1 {
		t.Errorf("len(Tokens) = %d after rejected batch, want 1", len(all))
	}
}

func TestMemoryStore_RegionsNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.CreateRegions(ctx, []Region{{ID: "r1"}})

	_, err := m.Regions(ctx, []string{"r1", "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Regions error = %v, want ErrNotFound", err)
	}
	if err := m.UpdateRegions(ctx, []Region{{ID: "missing"}}); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateRegions error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_FlammableRegions(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.CreateRegions(ctx, []Region{
		{ID: "a", Flammable: true},
		{ID: "b"},
		{ID: "c", Flammable: true},
	})
	got, _ := m.FlammableRegions(ctx)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("FlammableRegions = %v, want a and c", got)
	}
}

func TestMemoryStore_RecentEventsNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	m.SaveEvents(ctx, []Event{{Turn: 1}, {Turn: 2}, {Turn: 3}})
	got, _ := m.RecentEvents(ctx, 2)
	if len(got) != 2 || got[0].Turn != 3 || got[1].Turn != 2 {
		t.Errorf("RecentEvents(2) = %v, want turns 3, 2", got)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := SmallTestConfig()
	a := Generate(cfg)
	b := Generate(cfg)

	if len(a.Regions) != len(b.Regions) {
		t.Fatalf("region counts differ: %d vs %d", len(a.Regions), len(b.Regions))
	}
	for i := range a.Regions {
		if a.Regions[i].Bounds != b.Regions[i].Bounds || a.Regions[i].Flammable != b.Regions[i].Flammable {
			t.Errorf("region %d differs: %+v vs %+v", i, a.Regions[i], b.Regions[i])
		}
	}
}

func TestGenerate_PlacesCampfireInBounds(t *testing.T) {
	s := Generate(SmallTestConfig())
	if s.Campfire == "" {
		t.Fatal("Campfire id is empty")
	}
	var found bool
	for _, tok := range s.Tokens {
		if tok.ID != s.Campfire {
			continue
		}
		found = true
		c := s.Geometry.CellOf(tok.X, tok.Y)
		if !s.Geometry.InBounds(c) {
			t.Errorf("campfire at %v is out of bounds", c)
		}
	}
	if !found {
		t.Error("campfire token not in Tokens")
	}
}

func TestRegionCounts(t *testing.T) {
	f, i := RegionCounts([]Region{{Flammable: true}, {}, {Flammable: true}})
	if f != 2 || i != 1 {
		t.Errorf("RegionCounts = (%d, %d), want (2, 1)", f, i)
	}
}

func TestTokenPredicates(t *testing.T) {
	tok := Token{HazardID: "h"}
	if !tok.IsHazard() || !tok.BelongsTo("h") || tok.BelongsTo("x") || tok.BelongsTo("") {
		t.Error("token predicates disagree with HazardID")
	}
	if (Token{}).IsHazard() {
		t.Error("empty token IsHazard = true")
	}
}
