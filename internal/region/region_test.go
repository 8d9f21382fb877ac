package region

import (
	"testing"

	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/scene"
)

func TestIntersects(t *testing.T) {
	base := grid.Rect{X: 0, Y: 0, W: 100, H: 100}
	tests := []struct {
		name  string
		other grid.Rect
		want  bool
	}{
		{"overlap", grid.Rect{X: 50, Y: 50, W: 100, H: 100}, true},
		{"contained", grid.Rect{X: 10, Y: 10, W: 5, H: 5}, true},
		{"containing", grid.Rect{X: -10, Y: -10, W: 500, H: 500}, true},
		{"left", grid.Rect{X: -60, Y: 0, W: 50, H: 50}, false},
		{"right", grid.Rect{X: 150, Y: 0, W: 50, H: 50}, false},
		{"above", grid.Rect{X: 0, Y: -60, W: 50, H: 50}, false},
		{"below", grid.Rect{X: 0, Y: 150, W: 50, H: 50}, false},
		{"touching right edge", grid.Rect{X: 100, Y: 0, W: 50, H: 50}, false},
		{"touching bottom edge", grid.Rect{X: 0, Y: 100, W: 50, H: 50}, false},
		{"touching corner", grid.Rect{X: 100, Y: 100, W: 50, H: 50}, false},
		{"unaligned sliver", grid.Rect{X: 99.5, Y: 33.3, W: 1, H: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersects(base, tt.other); got != tt.want {
				t.Errorf("Intersects(base, %+v) = %v, want %v", tt.other, got, tt.want)
			}
			if got := Intersects(tt.other, base); got != tt.want {
				t.Errorf("Intersects(%+v, base) = %v, want %v (symmetry)", tt.other, got, tt.want)
			}
		})
	}
}

func TestFlammable(t *testing.T) {
	g := grid.NewGeometry(50, 0, 0, grid.Square)
	regions := []scene.Region{
		{ID: "brush", Bounds: grid.Rect{X: 0, Y: 0, W: 150, H: 150}, Flammable: true},
		{ID: "rock", Bounds: grid.Rect{X: 300, Y: 0, W: 100, H: 100}},
	}

	tests := []struct {
		cell grid.Cell
		want bool
	}{
		{grid.Cell{Row: 0, Col: 0}, true},
		{grid.Cell{Row: 2, Col: 2}, true},
		{grid.Cell{Row: 3, Col: 0}, false}, // touches the region's bottom edge only
		{grid.Cell{Row: 0, Col: 6}, false}, // inside a region that is not flammable
		{grid.Cell{Row: -1, Col: 0}, false},
	}
	for _, tt := range tests {
		if got := Flammable(g, regions, tt.cell); got != tt.want {
			t.Errorf("Flammable(%v) = %v, want %v", tt.cell, got, tt.want)
		}
	}
}

func TestCovering(t *testing.T) {
	g := grid.NewGeometry(50, 0, 0, grid.Square)
	regions := []scene.Region{
		{ID: "a", Bounds: grid.Rect{X: 0, Y: 0, W: 60, H: 60}, Flammable: true},
		{ID: "b", Bounds: grid.Rect{X: 40, Y: 40, W: 60, H: 60}},
	}
	got := Covering(g, regions, grid.Cell{Row: 1, Col: 1})
	if len(got) != 2 {
		t.Fatalf("len(Covering) = %d, want 2", len(got))
	}
	if got := Covering(g, regions, grid.Cell{Row: 5, Col: 5}); len(got) != 0 {
		t.Errorf("Covering((5,5)) = %v, want empty", got)
	}
}
