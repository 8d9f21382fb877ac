// Package hazard implements spreading hazards: a registry of hazard
// instances, the per-turn spread step, and the turn trigger that binds
// combatants to hazards.
package hazard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/scene"
)

var (
	ErrNoSource      = errors.New("no hazard source selected")
	ErrNoRegions     = errors.New("no regions selected")
	ErrUnknownHazard = errors.New("unknown hazard")
	ErrAlreadyHazard = errors.New("token already belongs to a hazard")
)

// SpreadStore is the slice of the entity store a spread step needs.
type SpreadStore interface {
	HazardTokens(ctx context.Context, hazardID string) ([]scene.Token, error)
	FlammableRegions(ctx context.Context) ([]scene.Region, error)
	CreateTokens(ctx context.Context, tokens []scene.Token) (int, error)
}

// Store is the entity store the registry works against.
type Store interface {
	SpreadStore
	Token(ctx context.Context, id string) (scene.Token, error)
	UpdateTokens(ctx context.Context, tokens []scene.Token) error
	Regions(ctx context.Context, ids []string) ([]scene.Region, error)
	UpdateRegions(ctx context.Context, regions []scene.Region) error
	SaveHazard(ctx context.Context, rec scene.HazardRecord) error
	Hazards(ctx context.Context) ([]scene.HazardRecord, error)
	DeleteHazard(ctx context.Context, id string) error
}

// Randomizer evaluates a dice formula and returns its total.
type Randomizer interface {
	Roll(ctx context.Context, formula string) (int, error)
}

// Hazard is one spreading simulation. Its burning cells live in the store;
// the hazard itself only owns the template, the default chance and the
// state of the step in flight.
type Hazard struct {
	id       string
	name     string
	sourceID string
	template scene.Template
	chance   scene.Chance

	geom   grid.Geometry
	store  SpreadStore
	dice   Randomizer
	notify Notifier

	spreading atomic.Bool

	mu      sync.Mutex
	pending mapset.Set[grid.Cell]
	stats   Stats
}

// Stats are running totals for a hazard since it was registered.
type Stats struct {
	Steps    int `json:"steps"`
	Skipped  int `json:"skipped"`
	Ignited  int `json:"ignited"`
	Failures int `json:"failures"`
}

func newHazard(rec scene.HazardRecord, geom grid.Geometry, store SpreadStore, dice Randomizer, n Notifier) *Hazard {
	return &Hazard{
		id:       rec.ID,
		name:     rec.Name,
		sourceID: rec.SourceID,
		template: rec.Template.Clone(),
		chance:   rec.Chance,
		geom:     geom,
		store:    store,
		dice:     dice,
		notify:   n,
		pending:  mapset.New[grid.Cell](),
	}
}

// ID returns the hazard's identifier, which is also the marker carried by its tokens.
func (h *Hazard) ID() string { return h.id }

// Name returns the display name, taken from the source token.
func (h *Hazard) Name() string { return h.name }

// SourceID returns the id of the token the hazard was created from.
func (h *Hazard) SourceID() string { return h.sourceID }

// Chance returns the default spread policy.
func (h *Hazard) Chance() scene.Chance { return h.chance }

// Template returns a copy of the template cloned into every new ignition.
func (h *Hazard) Template() scene.Template { return h.template.Clone() }

// Spreading reports whether a spread step is in flight.
func (h *Hazard) Spreading() bool { return h.spreading.Load() }

// Pending returns the cells lit in the current step but not yet committed.
func (h *Hazard) Pending() []grid.Cell {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]grid.Cell, 0, h.pending.Size())
	h.pending.Each(func(c grid.Cell) { out = append(out, c) })
	return out
}

// Stats returns the running totals.
func (h *Hazard) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

// Record returns the persisted shape of the hazard.
func (h *Hazard) Record() scene.HazardRecord {
	return scene.HazardRecord{
		ID:       h.id,
		Name:     h.name,
		SourceID: h.sourceID,
		Template: h.template.Clone(),
		Chance:   h.chance,
	}
}
