// Package scene holds the placed entities of a scene: tokens, regions and
// combatants, plus an in-memory store and a noise-based scene generator.
package scene

import (
	"maps"
	"time"

	"github.com/talgya/wildfire/internal/grid"
)

// Template is the placement-independent data of a token. It is a value
// type; Clone must be used whenever a template crosses an ownership boundary
// so that no two owners share the Flags map.
type Template struct {
	Name   string            `json:"name"`
	Image  string            `json:"image"`
	Width  float64           `json:"width"`  // In grid units
	Height float64           `json:"height"` // In grid units
	Hidden bool              `json:"hidden"`
	Flags  map[string]string `json:"flags,omitempty"`
}

// Clone returns a deep copy of the template.
func (t Template) Clone() Template {
	c := t
	if t.Flags != nil {
		c.Flags = maps.Clone(t.Flags)
	}
	return c
}

// Token is a placed entity.
type Token struct {
	ID       string   `json:"id"`
	Template Template `json:"template"`
	X        float64  `json:"x"` // Top-left pixel
	Y        float64  `json:"y"`

	// HazardID marks the token as part of a hazard. Empty = ordinary token.
	HazardID string `json:"hazard_id,omitempty"`
	// Origin marks the token a hazard was created from.
	Origin bool `json:"origin,omitempty"`
}

// IsHazard reports whether the token belongs to any hazard.
func (t Token) IsHazard() bool {
	return t.HazardID != ""
}

// BelongsTo reports whether the token burns for the given hazard.
func (t Token) BelongsTo(hazardID string) bool {
	return hazardID != "" && t.HazardID == hazardID
}

// Region is a freely placed rectangular area of the scene.
type Region struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Bounds    grid.Rect `json:"bounds"`
	Flammable bool      `json:"flammable"`
}

// IsFlammable reports whether hazards may spread into the region.
func (r Region) IsFlammable() bool {
	return r.Flammable
}

// Chance is a spread policy: a candidate ignites iff a roll of Formula is >= Target.
type Chance struct {
	Formula string `json:"formula"`
	Target  int    `json:"target"`
}

// Combatant is a participant in the turn order. A combatant whose HazardID
// is set stands in for that hazard; Chance, when set, overrides the
// hazard's default policy on its turns.
type Combatant struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Initiative int     `json:"initiative"`
	HazardID   string  `json:"hazard_id,omitempty"`
	Chance     *Chance `json:"chance,omitempty"`
}

// HazardRecord is the persisted shape of a registered hazard.
type HazardRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SourceID  string    `json:"source_id"`
	Template  Template  `json:"template"`
	Chance    Chance    `json:"chance"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a notable occurrence in the scene, kept for the journal.
type Event struct {
	Turn        uint64    `json:"turn" db:"turn"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	At          time.Time `json:"at" db:"at"`
}
