package grid

import "fmt"

// Topology enumerates the cells adjacent to a cell.
// Implementations must be finite and must not return the cell itself.
type Topology interface {
	Name() string
	Neighbors(c Cell) []Cell
}

// offsetTopology is a topology defined by a fixed table of (row, col) deltas.
type offsetTopology struct {
	name   string
	deltas []Cell
}

func (t offsetTopology) Name() string { return t.name }

func (t offsetTopology) Neighbors(c Cell) []Cell {
	result := make([]Cell, len(t.deltas))
	for i, d := range t.deltas {
		result[i] = Cell{Row: c.Row + d.Row, Col: c.Col + d.Col}
	}
	return result
}

// Square is the eight-neighbour square grid (orthogonal plus diagonal).
var Square Topology = offsetTopology{
	name: "square",
	deltas: []Cell{
		{Row: -1, Col: -1}, {Row: -1, Col: 0}, {Row: -1, Col: 1},
		{Row: 0, Col: -1}, {Row: 0, Col: 1},
		{Row: 1, Col: -1}, {Row: 1, Col: 0}, {Row: 1, Col: 1},
	},
}

// Orthogonal is the four-neighbour square grid.
var Orthogonal Topology = offsetTopology{
	name: "orthogonal",
	deltas: []Cell{
		{Row: -1, Col: 0},
		{Row: 0, Col: -1}, {Row: 0, Col: 1},
		{Row: 1, Col: 0},
	},
}

// Hex is a pointy-top hex grid in odd-row offset layout: odd rows are
// shoved half a cell to the right, so the diagonal deltas depend on row parity.
var Hex Topology = hexTopology{}

type hexTopology struct{}

// hexEvenRowDeltas and hexOddRowDeltas are the six neighbour offsets for
// even and odd rows respectively.
var (
	hexEvenRowDeltas = [6]Cell{
		{Row: 0, Col: 1}, {Row: -1, Col: 0}, {Row: -1, Col: -1},
		{Row: 0, Col: -1}, {Row: 1, Col: -1}, {Row: 1, Col: 0},
	}
	hexOddRowDeltas = [6]Cell{
		{Row: 0, Col: 1}, {Row: -1, Col: 1}, {Row: -1, Col: 0},
		{Row: 0, Col: -1}, {Row: 1, Col: 0}, {Row: 1, Col: 1},
	}
)

func (hexTopology) Name() string { return "hex" }

func (hexTopology) Neighbors(c Cell) []Cell {
	deltas := hexEvenRowDeltas
	if c.Row&1 == 1 {
		deltas = hexOddRowDeltas
	}
	result := make([]Cell, 0, 6)
	for _, d := range deltas {
		result = append(result, Cell{Row: c.Row + d.Row, Col: c.Col + d.Col})
	}
	return result
}

// TopologyByName maps a configuration name to a topology.
func TopologyByName(name string) (Topology, error) {
	switch name {
	case "", "square":
		return Square, nil
	case "orthogonal", "square4":
		return Orthogonal, nil
	case "hex":
		return Hex, nil
	}
	return nil, fmt.Errorf("unknown grid topology %q", name)
}
