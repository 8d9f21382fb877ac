// Package region tests grid cells against freely placed scene regions.
package region

import (
	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/scene"
)

// Intersects reports whether two rectangles overlap. Rectangles that only
// share a border line are separated.
func Intersects(a, b grid.Rect) bool {
	return !(a.Right() <= b.X ||
		b.Right() <= a.X ||
		a.Bottom() <= b.Y ||
		b.Bottom() <= a.Y)
}

// CellIntersects reports whether the region's bounds overlap the cell's square.
func CellIntersects(g grid.Geometry, r scene.Region, c grid.Cell) bool {
	return Intersects(r.Bounds, g.CellRect(c))
}

// Flammable reports whether any flammable region overlaps the cell.
func Flammable(g grid.Geometry, regions []scene.Region, c grid.Cell) bool {
	rect := g.CellRect(c)
	for _, r := range regions {
		if r.IsFlammable() && Intersects(r.Bounds, rect) {
			return true
		}
	}
	return false
}

// Covering returns every region overlapping the cell, flammable or not.
func Covering(g grid.Geometry, regions []scene.Region, c grid.Cell) []scene.Region {
	rect := g.CellRect(c)
	var out []scene.Region
	for _, r := range regions {
		if Intersects(r.Bounds, rect) {
			out = append(out, r)
		}
	}
	return out
}
