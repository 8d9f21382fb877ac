// Package grid provides the discrete scene grid: cells, pixel rectangles,
// and neighbour enumeration for the supported topologies.
package grid

import (
	"fmt"
	"math"
)

// Cell is a discrete grid address.
type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// String returns the cell as "(row,col)".
func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// Less orders cells row-major. Used wherever a stable iteration order matters.
func (c Cell) Less(o Cell) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

// Compare orders cells row-major, for slices.SortFunc.
func Compare(a, b Cell) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

// Rect is an axis-aligned rectangle in pixel space, anchored at its top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Geometry holds the fixed grid parameters of a scene.
type Geometry struct {
	Size     float64  // Cell edge length in pixels
	Rows     int      // Scene height in cells (0 = unbounded)
	Cols     int      // Scene width in cells (0 = unbounded)
	Topology Topology // Adjacency rule (nil = Square)
}

// NewGeometry creates a bounded geometry with the given cell size and topology.
func NewGeometry(size float64, rows, cols int, topo Topology) Geometry {
	return Geometry{Size: size, Rows: rows, Cols: cols, Topology: topo}
}

// CellOf returns the cell enclosing the pixel (x, y).
func (g Geometry) CellOf(x, y float64) Cell {
	return Cell{
		Row: int(math.Floor(y / g.Size)),
		Col: int(math.Floor(x / g.Size)),
	}
}

// PixelOf returns the top-left pixel of a cell.
func (g Geometry) PixelOf(c Cell) (x, y float64) {
	return float64(c.Col) * g.Size, float64(c.Row) * g.Size
}

// CellRect returns the pixel rectangle covered by a cell.
func (g Geometry) CellRect(c Cell) Rect {
	x, y := g.PixelOf(c)
	return Rect{X: x, Y: y, W: g.Size, H: g.Size}
}

// Bounded reports whether the scene has finite dimensions.
func (g Geometry) Bounded() bool {
	return g.Rows > 0 && g.Cols > 0
}

// InBounds returns true if the cell lies inside the scene, or if the scene is unbounded.
func (g Geometry) InBounds(c Cell) bool {
	if !g.Bounded() {
		return true
	}
	return c.Row >= 0 && c.Row < g.Rows && c.Col >= 0 && c.Col < g.Cols
}

// Neighbors returns the in-bounds adjacent cells of c for the geometry's topology.
func (g Geometry) Neighbors(c Cell) []Cell {
	topo := g.Topology
	if topo == nil {
		topo = Square
	}
	candidates := topo.Neighbors(c)
	result := make([]Cell, 0, len(candidates))
	for _, n := range candidates {
		if n == c || !g.InBounds(n) {
			continue
		}
		result = append(result, n)
	}
	return result
}

// String returns a summary of the geometry.
func (g Geometry) String() string {
	name := "square"
	if g.Topology != nil {
		name = g.Topology.Name()
	}
	return fmt.Sprintf("Geometry(size=%g, rows=%d, cols=%d, topology=%s)", g.Size, g.Rows, g.Cols, name)
}
