package grid

import (
	"sort"
	"testing"
)

func TestCellOf_InverseOfPixelOf(t *testing.T) {
	g := NewGeometry(50, 0, 0, Square)
	for _, c := range []Cell{{0, 0}, {1, 0}, {0, 1}, {7, 3}, {-2, -5}} {
		x, y := g.PixelOf(c)
		if got := g.CellOf(x, y); got != c {
			t.Errorf("CellOf(PixelOf(%v)) = %v, want %v", c, got, c)
		}
	}
}

func TestCellOf_NonAlignedPixels(t *testing.T) {
	g := NewGeometry(50, 0, 0, nil)
	tests := []struct {
		x, y float64
		want Cell
	}{
		{0, 0, Cell{0, 0}},
		{49.9, 49.9, Cell{0, 0}},
		{50, 0, Cell{0, 1}},
		{0, 50, Cell{1, 0}},
		{125, 75, Cell{1, 2}},
		{-0.5, -0.5, Cell{-1, -1}},
	}
	for _, tt := range tests {
		if got := g.CellOf(tt.x, tt.y); got != tt.want {
			t.Errorf("CellOf(%g, %g) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}

func TestCellRect(t *testing.T) {
	g := NewGeometry(50, 0, 0, nil)
	r := g.CellRect(Cell{Row: 2, Col: 1})
	want := Rect{X: 50, Y: 100, W: 50, H: 50}
	if r != want {
		t.Errorf("CellRect = %+v, want %+v", r, want)
	}
}

func TestNeighbors_NeverSelfAndFinite(t *testing.T) {
	for _, topo := range []Topology{Square, Orthogonal, Hex} {
		t.Run(topo.Name(), func(t *testing.T) {
			g := NewGeometry(10, 0, 0, topo)
			for _, c := range []Cell{{0, 0}, {1, 1}, {2, 5}, {-3, 4}} {
				seen := make(map[Cell]bool)
				for _, n := range g.Neighbors(c) {
					if n == c {
						t.Fatalf("Neighbors(%v) contains the cell itself", c)
					}
					if seen[n] {
						t.Fatalf("Neighbors(%v) contains %v twice", c, n)
					}
					seen[n] = true
				}
			}
		})
	}
}

func TestNeighbors_Counts(t *testing.T) {
	tests := []struct {
		topo Topology
		want int
	}{
		{Square, 8},
		{Orthogonal, 4},
		{Hex, 6},
	}
	for _, tt := range tests {
		g := NewGeometry(10, 0, 0, tt.topo)
		if got := len(g.Neighbors(Cell{5, 5})); got != tt.want {
			t.Errorf("%s: len(Neighbors) = %d, want %d", tt.topo.Name(), got, tt.want)
		}
	}
}

func TestNeighbors_BoundedCorner(t *testing.T) {
	g := NewGeometry(50, 3, 3, Square)
	got := g.Neighbors(Cell{0, 0})
	sort.Slice(got, func(i, j int) bool { return got[i].Less(got[j]) })
	want := []Cell{{0, 1}, {1, 0}, {1, 1}}
	if len(got) != len(want) {
		t.Fatalf("Neighbors((0,0)) = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Neighbors((0,0)) = %v, want %v", got, want)
			break
		}
	}
}

func TestNeighbors_HexIsSymmetric(t *testing.T) {
	g := NewGeometry(10, 0, 0, Hex)
	for row := -2; row <= 2; row++ {
		for col := -2; col <= 2; col++ {
			c := Cell{row, col}
			for _, n := range g.Neighbors(c) {
				found := false
				for _, back := range g.Neighbors(n) {
					if back == c {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("%v is a neighbour of %v but not the reverse", n, c)
				}
			}
		}
	}
}

func TestTopologyByName(t *testing.T) {
	for _, name := range []string{"", "square", "orthogonal", "hex"} {
		if _, err := TopologyByName(name); err != nil {
			t.Errorf("TopologyByName(%q) error = %v", name, err)
		}
	}
	if _, err := TopologyByName("triangle"); err == nil {
		t.Error("TopologyByName(\"triangle\") error = nil, want error")
	}
}
