// Package render draws a scene onto a terminal screen, one character per grid cell.
package render

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/region"
	"github.com/talgya/wildfire/internal/scene"
)

// Glyphs used for each kind of cell.
const (
	GlyphEmpty   = '.'
	GlyphBrush   = '"'
	GlyphInert   = '^'
	GlyphToken   = 'o'
	GlyphBurning = '*'
	GlyphOrigin  = '@'
)

const statusRows = 1

var (
	styleEmpty   = tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	styleBrush   = tcell.StyleDefault.Foreground(tcell.ColorOliveDrab)
	styleInert   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleToken   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleBurning = tcell.StyleDefault.Foreground(tcell.ColorOrangeRed)
	styleOrigin  = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleStatus  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
)

// View is what to draw.
type View struct {
	Geometry grid.Geometry
	Regions  []scene.Region
	Tokens   []scene.Token
	Status   string

	// Top-left cell shown on screen.
	Offset grid.Cell
}

type cellContent struct {
	burning bool
	origin  bool
	token   bool
}

// Draw paints the view onto s. The last screen row holds the status line.
// The caller is responsible for Show.
func Draw(s tcell.Screen, v View) {
	s.Clear()
	width, height := s.Size()
	mapRows := height - statusRows
	if mapRows < 0 {
		mapRows = 0
	}

	contents := make(map[grid.Cell]cellContent, len(v.Tokens))
	for _, t := range v.Tokens {
		c := v.Geometry.CellOf(t.X, t.Y)
		cc := contents[c]
		if t.IsHazard() {
			cc.burning = true
			cc.origin = cc.origin || t.Origin
		} else {
			cc.token = true
		}
		contents[c] = cc
	}

	for y := 0; y < mapRows; y++ {
		for x := 0; x < width; x++ {
			c := grid.Cell{Row: v.Offset.Row + y, Col: v.Offset.Col + x}
			if !v.Geometry.InBounds(c) {
				continue
			}
			r, style := glyph(v, contents[c], c)
			s.SetContent(x, y, r, nil, style)
		}
	}

	drawText(s, 0, height-1, width, v.Status, styleStatus)
}

func glyph(v View, cc cellContent, c grid.Cell) (rune, tcell.Style) {
	switch {
	case cc.origin:
		return GlyphOrigin, styleOrigin
	case cc.burning:
		return GlyphBurning, styleBurning
	case cc.token:
		return GlyphToken, styleToken
	case region.Flammable(v.Geometry, v.Regions, c):
		return GlyphBrush, styleBrush
	case len(region.Covering(v.Geometry, v.Regions, c)) > 0:
		return GlyphInert, styleInert
	}
	return GlyphEmpty, styleEmpty
}

func drawText(s tcell.Screen, x, y, width int, text string, style tcell.Style) {
	if y < 0 {
		return
	}
	col := x
	for _, r := range text {
		if col >= width {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}

// StatusLine formats the default status text.
func StatusLine(v View, hazards int) string {
	burning := 0
	for _, t := range v.Tokens {
		if t.IsHazard() {
			burning++
		}
	}
	return fmt.Sprintf(" firewatch  hazards:%d  burning:%d  view:%s  [arrows] scroll  [q] quit",
		hazards, burning, v.Offset)
}

// Scroll moves the offset by (dRow, dCol), keeping it inside a bounded scene.
func Scroll(v View, dRow, dCol int) grid.Cell {
	o := grid.Cell{Row: v.Offset.Row + dRow, Col: v.Offset.Col + dCol}
	if v.Geometry.Bounded() {
		o.Row = min(max(o.Row, 0), v.Geometry.Rows-1)
		o.Col = min(max(o.Col, 0), v.Geometry.Cols-1)
	}
	return o
}
