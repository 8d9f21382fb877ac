package hazard

import (
	"context"
	"log/slog"

	"github.com/talgya/wildfire/internal/scene"
)

// HandleTurn is the turn-event binding. When the active combatant stands in
// for a registered hazard, that hazard spreads once using the combatant's
// stored chance, or the hazard default when the combatant has none.
//
// ok is false when the combatant is not a registered hazard; nothing is
// spread in that case.
func (r *Registry) HandleTurn(ctx context.Context, c scene.Combatant) (res Result, ok bool, err error) {
	if c.HazardID == "" {
		return Result{}, false, nil
	}
	h, found := r.Get(c.HazardID)
	if !found {
		slog.Warn("turn for unregistered hazard", "combatant", c.ID, "hazard", c.HazardID)
		return Result{}, false, nil
	}

	res, err = h.Spread(ctx, c.Chance)
	return res, true, err
}

// Combatant returns a turn-order entry that stands in for the hazard,
// optionally carrying a chance that overrides the hazard default.
func (h *Hazard) Combatant(initiative int, chance *scene.Chance) scene.Combatant {
	return scene.Combatant{
		ID:         "hazard:" + h.id,
		Name:       h.name,
		Initiative: initiative,
		HazardID:   h.id,
		Chance:     chance,
	}
}
