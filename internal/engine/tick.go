// Package engine provides the turn loop that drives combat order.
package engine

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/talgya/wildfire/internal/scene"
)

// TurnEvent is delivered to OnTurn when a combatant's turn begins.
type TurnEvent struct {
	Round     uint64          `json:"round"`
	Turn      uint64          `json:"turn"` // Monotonic, never resets
	Combatant scene.Combatant `json:"combatant"`
}

// Status is a snapshot of the engine for display.
type Status struct {
	Round      uint64  `json:"round"`
	Turn       uint64  `json:"turn"`
	Speed      float64 `json:"speed"`
	Running    bool    `json:"running"`
	Combatants int     `json:"combatants"`
	Next       string  `json:"next,omitempty"`
	InFlight   int     `json:"in_flight"`
}

// Engine walks the combat order one turn at a time.
type Engine struct {
	Interval time.Duration // Base turn interval at speed 1.0

	// OnTurn runs in its own goroutine for every turn, so a slow callback
	// stalls only itself. Errors are logged.
	OnTurn func(ctx context.Context, ev TurnEvent) error
	// OnRound runs synchronously before the first turn of each round.
	OnRound func(round uint64)

	mu         sync.Mutex
	combatants []scene.Combatant
	next       int
	round      uint64
	turn       uint64
	speed      float64
	running    bool
	cancel     context.CancelFunc
	inFlight   int

	wg sync.WaitGroup
}

// NewEngine creates a turn engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Interval: 2 * time.Second,
		speed:    1.0,
	}
}

// Run advances turns on the interval until ctx is cancelled or Stop is
// called. Blocks; callbacks still in flight keep running afterwards, see Wait.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()
	slog.Info("turn engine started", "round", e.Round(), "turn", e.Turn(), "speed", e.Speed())

	for ctx.Err() == nil {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: check again shortly.
			sleep(ctx, 100*time.Millisecond)
			continue
		}

		start := time.Now()
		e.Advance(ctx)

		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			sleep(ctx, target-elapsed)
		}
	}

	e.mu.Lock()
	e.running = false
	e.cancel = nil
	e.mu.Unlock()
	slog.Info("turn engine stopped", "round", e.Round(), "turn", e.Turn())
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Stop halts Run.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// Wait blocks until every dispatched turn callback has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Advance starts the next turn and dispatches OnTurn. Returns false when
// there is nobody in the combat order.
func (e *Engine) Advance(ctx context.Context) (TurnEvent, bool) {
	e.mu.Lock()
	if len(e.combatants) == 0 {
		e.mu.Unlock()
		return TurnEvent{}, false
	}

	newRound := e.next == 0
	if newRound {
		e.round++
	}
	e.turn++
	ev := TurnEvent{Round: e.round, Turn: e.turn, Combatant: e.combatants[e.next]}
	e.next = (e.next + 1) % len(e.combatants)
	onRound, onTurn := e.OnRound, e.OnTurn
	e.mu.Unlock()

	if newRound && onRound != nil {
		onRound(ev.Round)
	}
	slog.Debug("turn", "round", ev.Round, "turn", ev.Turn, "combatant", ev.Combatant.ID)

	if onTurn != nil {
		e.dispatch(ctx, onTurn, ev)
	}
	return ev, true
}

func (e *Engine) dispatch(ctx context.Context, fn func(context.Context, TurnEvent) error, ev TurnEvent) {
	// Callbacks outlive Run's context so a step in flight still commits.
	ctx = context.WithoutCancel(ctx)

	e.mu.Lock()
	e.inFlight++
	e.mu.Unlock()
	e.wg.Add(1)

	go func() {
		defer func() {
			e.mu.Lock()
			e.inFlight--
			e.mu.Unlock()
			e.wg.Done()
		}()
		if err := fn(ctx, ev); err != nil {
			slog.Error("turn callback failed", "turn", ev.Turn, "combatant", ev.Combatant.ID, "error", err)
		}
	}()
}

// SetCombatants replaces the combat order and restarts the round.
func (e *Engine) SetCombatants(cs []scene.Combatant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.combatants = slices.Clone(cs)
	sortByInitiative(e.combatants)
	e.next = 0
}

// AddCombatant inserts a combatant by initiative. Ties keep insertion order.
func (e *Engine) AddCombatant(c scene.Combatant) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := len(e.combatants)
	for i, o := range e.combatants {
		if c.Initiative > o.Initiative {
			pos = i
			break
		}
	}
	e.combatants = slices.Insert(e.combatants, pos, c)
	if pos < e.next {
		e.next++
	}
}

// RemoveCombatant drops a combatant from the order. Reports whether it was present.
func (e *Engine) RemoveCombatant(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := slices.IndexFunc(e.combatants, func(c scene.Combatant) bool { return c.ID == id })
	if i < 0 {
		return false
	}
	e.combatants = slices.Delete(e.combatants, i, i+1)
	if i < e.next {
		e.next--
	}
	if e.next >= len(e.combatants) {
		e.next = 0
	}
	return true
}

// Combatants returns the combat order.
func (e *Engine) Combatants() []scene.Combatant {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.combatants)
}

// SetSpeed sets the turn rate multiplier. 0 pauses Run.
func (e *Engine) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", speed)
}

// Speed returns the turn rate multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// Round returns the current round, 0 before the first turn.
func (e *Engine) Round() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.round
}

// Turn returns the number of turns taken.
func (e *Engine) Turn() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turn
}

// Restore resumes counting from a saved round and turn.
func (e *Engine) Restore(round, turn uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round, e.turn = round, turn
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Status{
		Round:      e.round,
		Turn:       e.turn,
		Speed:      e.speed,
		Running:    e.running,
		Combatants: len(e.combatants),
		InFlight:   e.inFlight,
	}
	if len(e.combatants) > 0 {
		s.Next = e.combatants[e.next].Name
	}
	return s
}

func sortByInitiative(cs []scene.Combatant) {
	slices.SortStableFunc(cs, func(a, b scene.Combatant) int {
		return b.Initiative - a.Initiative
	})
}
