package hazard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/zyedidia/generic/mapset"

	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/region"
	"github.com/talgya/wildfire/internal/scene"
)

// Result describes one spread step.
type Result struct {
	HazardID string      `json:"hazard_id"`
	Skipped  bool        `json:"skipped"` // Another step was already in flight
	Burning  int         `json:"burning"` // Burning cells when the step began
	Rolled   int         `json:"rolled"`  // Candidates that were rolled for
	Ignited  []grid.Cell `json:"ignited"`
	Created  int         `json:"created"` // Tokens the store reported creating
}

// Outcome pairs a Result with the step's error, for SpreadAsync.
type Outcome struct {
	Result Result
	Err    error
}

// Spread runs one spread step. A nil chance uses the hazard's default.
//
// A call made while another step is in flight returns immediately with
// Result.Skipped set. Once started, a step runs to completion: cancelling
// ctx does not abandon it. Commit failures are returned and never retried;
// the hazard is ready for the next step either way.
func (h *Hazard) Spread(ctx context.Context, chance *scene.Chance) (Result, error) {
	res := Result{HazardID: h.id}
	if !h.spreading.CompareAndSwap(false, true) {
		slog.Debug("spread already in flight", "hazard", h.id)
		h.mu.Lock()
		h.stats.Skipped++
		h.mu.Unlock()
		res.Skipped = true
		return res, nil
	}
	defer h.finish()
	ctx = context.WithoutCancel(ctx)

	c := h.chance
	if chance != nil {
		c = *chance
	}

	res, err := h.step(ctx, c, res)

	h.mu.Lock()
	h.stats.Steps++
	if err != nil {
		h.stats.Failures++
	} else {
		h.stats.Ignited += res.Created
	}
	h.mu.Unlock()

	if err != nil {
		slog.Error("hazard spread failed", "hazard", h.id, "error", err)
		h.notify.Notify(Notice{Kind: NoticeSpreadFailed, HazardID: h.id, HazardName: h.name, Err: err, Turn: turnOf(ctx)})
		return res, err
	}

	slog.Info("hazard spread",
		"hazard", h.id,
		"burning", res.Burning,
		"rolled", res.Rolled,
		"ignited", len(res.Ignited),
		"created", res.Created,
	)
	h.notify.Notify(Notice{Kind: NoticeSpread, HazardID: h.id, HazardName: h.name, Count: res.Created, Turn: turnOf(ctx)})
	return res, nil
}

// SpreadAsync runs Spread in its own goroutine and delivers the outcome on
// the returned channel, which receives exactly one value.
func (h *Hazard) SpreadAsync(ctx context.Context, chance *scene.Chance) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		res, err := h.Spread(ctx, chance)
		ch <- Outcome{Result: res, Err: err}
	}()
	return ch
}

// finish clears the uncommitted batch and releases the guard.
func (h *Hazard) finish() {
	h.mu.Lock()
	h.pending = mapset.New[grid.Cell]()
	h.mu.Unlock()
	h.spreading.Store(false)
}

func (h *Hazard) step(ctx context.Context, c scene.Chance, res Result) (Result, error) {
	tokens, err := h.store.HazardTokens(ctx, h.id)
	if err != nil {
		return res, fmt.Errorf("read burning tokens: %w", err)
	}
	regions, err := h.store.FlammableRegions(ctx)
	if err != nil {
		return res, fmt.Errorf("read flammable regions: %w", err)
	}

	// Snapshot of the burning set; nothing below writes to it.
	burning := mapset.New[grid.Cell]()
	for _, t := range tokens {
		burning.Put(h.geom.CellOf(t.X, t.Y))
	}
	sources := make([]grid.Cell, 0, burning.Size())
	burning.Each(func(cell grid.Cell) { sources = append(sources, cell) })
	slices.SortFunc(sources, grid.Compare)
	res.Burning = len(sources)

	// Every neighbour is considered once per step, however many burning
	// cells border it.
	considered := mapset.New[grid.Cell]()
	for _, cell := range sources {
		for _, n := range h.geom.Neighbors(cell) {
			if burning.Has(n) || considered.Has(n) || h.isPending(n) {
				continue
			}
			considered.Put(n)

			if !region.Flammable(h.geom, regions, n) {
				continue
			}

			total, err := h.dice.Roll(ctx, c.Formula)
			if err != nil {
				return res, fmt.Errorf("roll %q: %w", c.Formula, err)
			}
			res.Rolled++
			slog.Debug("spread roll", "hazard", h.id, "cell", n, "total", total, "target", c.Target)

			if total >= c.Target {
				h.mu.Lock()
				h.pending.Put(n)
				h.mu.Unlock()
				res.Ignited = append(res.Ignited, n)
			}
		}
	}

	if len(res.Ignited) == 0 {
		return res, nil
	}

	records := make([]scene.Token, 0, len(res.Ignited))
	for _, cell := range res.Ignited {
		x, y := h.geom.PixelOf(cell)
		records = append(records, scene.Token{
			Template: h.template.Clone(),
			X:        x,
			Y:        y,
			HazardID: h.id,
		})
	}

	created, err := h.store.CreateTokens(ctx, records)
	res.Created = created
	if err != nil {
		return res, fmt.Errorf("commit ignitions: %w", err)
	}

	h.mu.Lock()
	h.pending = mapset.New[grid.Cell]()
	h.mu.Unlock()
	return res, nil
}

func (h *Hazard) isPending(c grid.Cell) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending.Has(c)
}
