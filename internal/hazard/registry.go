package hazard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/scene"
)

// Config wires a Registry to its collaborators.
type Config struct {
	Store    Store
	Geometry grid.Geometry
	Dice     Randomizer
	Notifier Notifier // nil = notices are dropped
}

// Registry holds the active hazards of a session. It is created by the
// session owner and handed to whatever drives turns; there is no global.
type Registry struct {
	store  Store
	geom   grid.Geometry
	dice   Randomizer
	notify Notifier

	mu      sync.RWMutex
	hazards map[string]*Hazard
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config) *Registry {
	n := cfg.Notifier
	if n == nil {
		n = discard{}
	}
	return &Registry{
		store:   cfg.Store,
		geom:    cfg.Geometry,
		dice:    cfg.Dice,
		notify:  n,
		hazards: make(map[string]*Hazard),
	}
}

// Geometry returns the grid the registry's hazards spread over.
func (r *Registry) Geometry() grid.Geometry { return r.geom }

// CreateHazard turns the source token into the origin of a new hazard with
// the given default chance. The source's template is snapshotted; later
// edits to the token do not reach the hazard.
func (r *Registry) CreateHazard(ctx context.Context, sourceID, formula string, target int) (*Hazard, error) {
	if sourceID == "" {
		return nil, r.reject(ErrNoSource)
	}

	src, err := r.store.Token(ctx, sourceID)
	if err != nil {
		if errors.Is(err, scene.ErrNotFound) {
			return nil, r.reject(fmt.Errorf("%w: %v", ErrNoSource, err))
		}
		return nil, fmt.Errorf("load source token: %w", err)
	}
	if src.IsHazard() {
		return nil, r.reject(fmt.Errorf("token %q: %w", sourceID, ErrAlreadyHazard))
	}

	rec := scene.HazardRecord{
		ID:        uuid.NewString(),
		Name:      src.Template.Name,
		SourceID:  src.ID,
		Template:  src.Template.Clone(),
		Chance:    scene.Chance{Formula: formula, Target: target},
		CreatedAt: time.Now().UTC(),
	}

	// Save before marking, so a failed save leaves the source usable.
	if err := r.store.SaveHazard(ctx, rec); err != nil {
		return nil, fmt.Errorf("save hazard: %w", err)
	}
	src.HazardID = rec.ID
	src.Origin = true
	if err := r.store.UpdateTokens(ctx, []scene.Token{src}); err != nil {
		if derr := r.store.DeleteHazard(ctx, rec.ID); derr != nil {
			slog.Warn("orphaned hazard record", "hazard", rec.ID, "error", derr)
		}
		return nil, fmt.Errorf("mark hazard origin: %w", err)
	}

	h := r.register(rec)

	slog.Info("hazard created", "hazard", h.id, "name", h.name, "source", sourceID, "formula", formula, "target", target)
	r.notify.Notify(Notice{Kind: NoticeCreated, HazardID: h.id, HazardName: h.name})
	return h, nil
}

// MarkRegionsFlammable flags the selected regions as flammable and returns
// the updated records.
func (r *Registry) MarkRegionsFlammable(ctx context.Context, regionIDs []string) ([]scene.Region, error) {
	return r.SetRegionsFlammable(ctx, regionIDs, true)
}

// SetRegionsFlammable sets or clears the flammable marker on the selected regions.
func (r *Registry) SetRegionsFlammable(ctx context.Context, regionIDs []string, flammable bool) ([]scene.Region, error) {
	if len(regionIDs) == 0 {
		return nil, r.reject(ErrNoRegions)
	}

	regions, err := r.store.Regions(ctx, regionIDs)
	if err != nil {
		if errors.Is(err, scene.ErrNotFound) {
			return nil, r.reject(fmt.Errorf("%w: %v", ErrNoRegions, err))
		}
		return nil, fmt.Errorf("load regions: %w", err)
	}
	for i := range regions {
		regions[i].Flammable = flammable
	}
	if err := r.store.UpdateRegions(ctx, regions); err != nil {
		return nil, fmt.Errorf("update regions: %w", err)
	}

	kind := NoticeRegionsMarked
	if !flammable {
		kind = NoticeRegionsCleared
	}
	slog.Info("regions updated", "count", len(regions), "flammable", flammable)
	r.notify.Notify(Notice{Kind: kind, Count: len(regions)})
	return regions, nil
}

// Get returns the hazard with the given id.
func (r *Registry) Get(id string) (*Hazard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hazards[id]
	return h, ok
}

// List returns the registered hazards in creation order.
func (r *Registry) List() []*Hazard {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Hazard, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.hazards[id])
	}
	return out
}

// Len returns the number of registered hazards.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hazards)
}

// Remove drops a hazard from the registry and the store. Tokens already
// burning stay on the scene.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	h, ok := r.hazards[id]
	if !ok {
		r.mu.Unlock()
		return r.reject(fmt.Errorf("hazard %q: %w", id, ErrUnknownHazard))
	}
	delete(r.hazards, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.mu.Unlock()

	if err := r.store.DeleteHazard(ctx, id); err != nil && !errors.Is(err, scene.ErrNotFound) {
		return fmt.Errorf("delete hazard: %w", err)
	}

	slog.Info("hazard removed", "hazard", id)
	r.notify.Notify(Notice{Kind: NoticeRemoved, HazardID: id, HazardName: h.name})
	return nil
}

// Restore registers every hazard record in the store that is not already
// registered, oldest first. Returns how many were added.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	recs, err := r.store.Hazards(ctx)
	if err != nil {
		return 0, fmt.Errorf("load hazards: %w", err)
	}
	slices.SortFunc(recs, func(a, b scene.HazardRecord) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	added := 0
	for _, rec := range recs {
		if _, ok := r.Get(rec.ID); ok {
			continue
		}
		r.register(rec)
		added++
	}
	if added > 0 {
		slog.Info("hazards restored", "count", added)
	}
	return added, nil
}

func (r *Registry) register(rec scene.HazardRecord) *Hazard {
	h := newHazard(rec, r.geom, r.store, r.dice, r.notify)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.hazards[h.id] = h
	r.order = append(r.order, h.id)
	return h
}

// reject reports a precondition failure to the user and returns it.
func (r *Registry) reject(err error) error {
	slog.Warn("hazard request rejected", "error", err)
	r.notify.Notify(Notice{Kind: NoticeRejected, Err: err})
	return err
}
