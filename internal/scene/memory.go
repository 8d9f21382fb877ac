package scene

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a token, region or hazard does not exist.
var ErrNotFound = errors.New("not found")

// MemoryStore is an in-process entity store. It serves tests and
// ephemeral scenes; persistence.DB is the durable equivalent.
type MemoryStore struct {
	mu         sync.RWMutex
	tokens     map[string]Token
	tokenOrder []string
	regions    map[string]Region
	regOrder   []string
	hazards    map[string]HazardRecord
	combatants []Combatant
	events     []Event
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens:  make(map[string]Token),
		regions: make(map[string]Region),
		hazards: make(map[string]HazardRecord),
	}
}

// Token returns the token with the given id.
func (m *MemoryStore) Token(_ context.Context, id string) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[id]
	if !ok {
		return Token{}, fmt.Errorf("token %q: %w", id, ErrNotFound)
	}
	t.Template = t.Template.Clone()
	return t, nil
}

// Tokens returns every placed token in insertion order.
func (m *MemoryStore) Tokens(_ context.Context) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Token, 0, len(m.tokenOrder))
	for _, id := range m.tokenOrder {
		t := m.tokens[id]
		t.Template = t.Template.Clone()
		out = append(out, t)
	}
	return out, nil
}

// HazardTokens returns the tokens carrying the given hazard marker.
func (m *MemoryStore) HazardTokens(_ context.Context, hazardID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Token
	for _, id := range m.tokenOrder {
		t := m.tokens[id]
		if t.BelongsTo(hazardID) {
			t.Template = t.Template.Clone()
			out = append(out, t)
		}
	}
	return out, nil
}

// CreateTokens places new tokens, assigning ids where missing.
func (m *MemoryStore) CreateTokens(_ context.Context, tokens []Token) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	placed := make([]Token, len(tokens))
	for i, t := range tokens {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, exists := m.tokens[t.ID]; exists {
			return 0, fmt.Errorf("token %q already exists", t.ID)
		}
		placed[i] = t
	}
	for _, t := range placed {
		t.Template = t.Template.Clone()
		m.tokens[t.ID] = t
		m.tokenOrder = append(m.tokenOrder, t.ID)
	}
	return len(tokens), nil
}

// UpdateTokens overwrites existing tokens by id.
func (m *MemoryStore) UpdateTokens(_ context.Context, tokens []Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range tokens {
		if _, ok := m.tokens[t.ID]; !ok {
			return fmt.Errorf("token %q: %w", t.ID, ErrNotFound)
		}
	}
	for _, t := range tokens {
		t.Template = t.Template.Clone()
		m.tokens[t.ID] = t
	}
	return nil
}

// AllRegions returns every region in insertion order.
func (m *MemoryStore) AllRegions(_ context.Context) ([]Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Region, 0, len(m.regOrder))
	for _, id := range m.regOrder {
		out = append(out, m.regions[id])
	}
	return out, nil
}

// Regions returns the regions with the given ids, in the order requested.
func (m *MemoryStore) Regions(_ context.Context, ids []string) ([]Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Region, 0, len(ids))
	for _, id := range ids {
		r, ok := m.regions[id]
		if !ok {
			return nil, fmt.Errorf("region %q: %w", id, ErrNotFound)
		}
		out = append(out, r)
	}
	return out, nil
}

// FlammableRegions returns the regions carrying the flammable marker.
func (m *MemoryStore) FlammableRegions(_ context.Context) ([]Region, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Region
	for _, id := range m.regOrder {
		if r := m.regions[id]; r.IsFlammable() {
			out = append(out, r)
		}
	}
	return out, nil
}

// CreateRegions places new regions, assigning ids where missing.
func (m *MemoryStore) CreateRegions(_ context.Context, regions []Region) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range regions {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, exists := m.regions[r.ID]; !exists {
			m.regOrder = append(m.regOrder, r.ID)
		}
		m.regions[r.ID] = r
	}
	return len(regions), nil
}

// UpdateRegions overwrites existing regions by id.
func (m *MemoryStore) UpdateRegions(_ context.Context, regions []Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range regions {
		if _, ok := m.regions[r.ID]; !ok {
			return fmt.Errorf("region %q: %w", r.ID, ErrNotFound)
		}
	}
	for _, r := range regions {
		m.regions[r.ID] = r
	}
	return nil
}

// SaveHazard inserts or replaces a hazard record.
func (m *MemoryStore) SaveHazard(_ context.Context, rec HazardRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.Template = rec.Template.Clone()
	m.hazards[rec.ID] = rec
	return nil
}

// Hazards returns every hazard record.
func (m *MemoryStore) Hazards(_ context.Context) ([]HazardRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]HazardRecord, 0, len(m.hazards))
	for _, rec := range m.hazards {
		rec.Template = rec.Template.Clone()
		out = append(out, rec)
	}
	return out, nil
}

// DeleteHazard drops a hazard record. Burning tokens are left in place.
func (m *MemoryStore) DeleteHazard(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.hazards[id]; !ok {
		return fmt.Errorf("hazard %q: %w", id, ErrNotFound)
	}
	delete(m.hazards, id)
	return nil
}

// Combatants returns the stored turn order.
func (m *MemoryStore) Combatants(_ context.Context) ([]Combatant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Combatant(nil), m.combatants...), nil
}

// SaveCombatants replaces the stored turn order.
func (m *MemoryStore) SaveCombatants(_ context.Context, combatants []Combatant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.combatants = append([]Combatant(nil), combatants...)
	return nil
}

// SaveEvents appends events to the journal.
func (m *MemoryStore) SaveEvents(_ context.Context, events []Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, events...)
	return nil
}

// RecentEvents returns the most recent events, newest first.
func (m *MemoryStore) RecentEvents(_ context.Context, limit int) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}
