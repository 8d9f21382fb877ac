// Package persistence provides SQLite-backed scene storage: tokens,
// regions, hazards, the combat order, the event journal and scene metadata.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/wildfire/internal/scene"
)

// DB wraps a SQLite connection for scene persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer at a time; concurrent hazards serialize here.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tokens (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		template_json TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		hazard_id TEXT NOT NULL DEFAULT '',
		hazard_origin INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS regions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		width REAL NOT NULL,
		height REAL NOT NULL,
		flammable INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS hazards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_id TEXT NOT NULL,
		template_json TEXT NOT NULL,
		formula TEXT NOT NULL,
		target INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS combatants (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		initiative INTEGER NOT NULL,
		hazard_id TEXT NOT NULL DEFAULT '',
		chance_formula TEXT NOT NULL DEFAULT '',
		chance_target INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scene_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tokens_hazard ON tokens(hazard_id);
	CREATE INDEX IF NOT EXISTS idx_regions_flammable ON regions(flammable);
	CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type tokenRow struct {
	ID       string  `db:"id"`
	Template string  `db:"template_json"`
	X        float64 `db:"x"`
	Y        float64 `db:"y"`
	HazardID string  `db:"hazard_id"`
	Origin   int     `db:"hazard_origin"`
}

func newTokenRow(t scene.Token) (tokenRow, error) {
	tmpl, err := json.Marshal(t.Template)
	if err != nil {
		return tokenRow{}, fmt.Errorf("encode template of %s: %w", t.ID, err)
	}
	return tokenRow{
		ID:       t.ID,
		Template: string(tmpl),
		X:        t.X,
		Y:        t.Y,
		HazardID: t.HazardID,
		Origin:   boolInt(t.Origin),
	}, nil
}

func (r tokenRow) token() (scene.Token, error) {
	t := scene.Token{ID: r.ID, X: r.X, Y: r.Y, HazardID: r.HazardID, Origin: r.Origin != 0}
	if err := json.Unmarshal([]byte(r.Template), &t.Template); err != nil {
		return scene.Token{}, fmt.Errorf("decode template of %s: %w", r.ID, err)
	}
	return t, nil
}

func tokensFromRows(rows []tokenRow) ([]scene.Token, error) {
	out := make([]scene.Token, 0, len(rows))
	for _, r := range rows {
		t, err := r.token()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

const tokenColumns = "id, template_json, x, y, hazard_id, hazard_origin"

// Token returns the token with the given id.
func (db *DB) Token(ctx context.Context, id string) (scene.Token, error) {
	var row tokenRow
	err := db.conn.GetContext(ctx, &row, "SELECT "+tokenColumns+" FROM tokens WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return scene.Token{}, fmt.Errorf("token %q: %w", id, scene.ErrNotFound)
	}
	if err != nil {
		return scene.Token{}, fmt.Errorf("select token %s: %w", id, err)
	}
	return row.token()
}

// Tokens returns every placed token in insertion order.
func (db *DB) Tokens(ctx context.Context) ([]scene.Token, error) {
	var rows []tokenRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT "+tokenColumns+" FROM tokens ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("select tokens: %w", err)
	}
	return tokensFromRows(rows)
}

// HazardTokens returns the tokens carrying the given hazard marker.
func (db *DB) HazardTokens(ctx context.Context, hazardID string) ([]scene.Token, error) {
	if hazardID == "" {
		return nil, nil
	}
	var rows []tokenRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT "+tokenColumns+" FROM tokens WHERE hazard_id = ? ORDER BY seq", hazardID)
	if err != nil {
		return nil, fmt.Errorf("select hazard tokens: %w", err)
	}
	return tokensFromRows(rows)
}

// CreateTokens inserts new tokens in one transaction, assigning ids where
// missing. Either every token is created or none is.
func (db *DB) CreateTokens(ctx context.Context, tokens []scene.Token) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, t := range tokens {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		row, err := newTokenRow(t)
		if err != nil {
			return 0, err
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO tokens (`+tokenColumns+`)
			VALUES (:id, :template_json, :x, :y, :hazard_id, :hazard_origin)`, row)
		if err != nil {
			return 0, fmt.Errorf("insert token %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(tokens), nil
}

// UpdateTokens overwrites existing tokens by id.
func (db *DB) UpdateTokens(ctx context.Context, tokens []scene.Token) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range tokens {
		row, err := newTokenRow(t)
		if err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx, `UPDATE tokens SET
			template_json = :template_json, x = :x, y = :y,
			hazard_id = :hazard_id, hazard_origin = :hazard_origin
			WHERE id = :id`, row)
		if err != nil {
			return fmt.Errorf("update token %s: %w", t.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("token %q: %w", t.ID, scene.ErrNotFound)
		}
	}

	return tx.Commit()
}

type regionRow struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	X         float64 `db:"x"`
	Y         float64 `db:"y"`
	Width     float64 `db:"width"`
	Height    float64 `db:"height"`
	Flammable int     `db:"flammable"`
}

func newRegionRow(r scene.Region) regionRow {
	return regionRow{
		ID:        r.ID,
		Name:      r.Name,
		X:         r.Bounds.X,
		Y:         r.Bounds.Y,
		Width:     r.Bounds.W,
		Height:    r.Bounds.H,
		Flammable: boolInt(r.Flammable),
	}
}

func (r regionRow) region() scene.Region {
	reg := scene.Region{ID: r.ID, Name: r.Name, Flammable: r.Flammable != 0}
	reg.Bounds.X, reg.Bounds.Y, reg.Bounds.W, reg.Bounds.H = r.X, r.Y, r.Width, r.Height
	return reg
}

func regionsFromRows(rows []regionRow) []scene.Region {
	out := make([]scene.Region, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.region())
	}
	return out
}

const regionColumns = "id, name, x, y, width, height, flammable"

// AllRegions returns every region in insertion order.
func (db *DB) AllRegions(ctx context.Context) ([]scene.Region, error) {
	var rows []regionRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT "+regionColumns+" FROM regions ORDER BY seq"); err != nil {
		return nil, fmt.Errorf("select regions: %w", err)
	}
	return regionsFromRows(rows), nil
}

// Regions returns the regions with the given ids, in the order requested.
func (db *DB) Regions(ctx context.Context, ids []string) ([]scene.Region, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+regionColumns+" FROM regions WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	var rows []regionRow
	if err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select regions: %w", err)
	}

	byID := make(map[string]regionRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]scene.Region, 0, len(ids))
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("region %q: %w", id, scene.ErrNotFound)
		}
		out = append(out, r.region())
	}
	return out, nil
}

// FlammableRegions returns the regions carrying the flammable marker.
func (db *DB) FlammableRegions(ctx context.Context) ([]scene.Region, error) {
	var rows []regionRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT "+regionColumns+" FROM regions WHERE flammable = 1 ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("select flammable regions: %w", err)
	}
	return regionsFromRows(rows), nil
}

// CreateRegions inserts regions, replacing any with the same id.
func (db *DB) CreateRegions(ctx context.Context, regions []scene.Region) (int, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, r := range regions {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO regions (`+regionColumns+`)
			VALUES (:id, :name, :x, :y, :width, :height, :flammable)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, x = excluded.x, y = excluded.y,
				width = excluded.width, height = excluded.height, flammable = excluded.flammable`,
			newRegionRow(r))
		if err != nil {
			return 0, fmt.Errorf("insert region %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(regions), nil
}

// UpdateRegions overwrites existing regions by id.
func (db *DB) UpdateRegions(ctx context.Context, regions []scene.Region) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range regions {
		res, err := tx.NamedExecContext(ctx, `UPDATE regions SET
			name = :name, x = :x, y = :y, width = :width, height = :height, flammable = :flammable
			WHERE id = :id`, newRegionRow(r))
		if err != nil {
			return fmt.Errorf("update region %s: %w", r.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("region %q: %w", r.ID, scene.ErrNotFound)
		}
	}

	return tx.Commit()
}

type hazardRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	SourceID  string `db:"source_id"`
	Template  string `db:"template_json"`
	Formula   string `db:"formula"`
	Target    int    `db:"target"`
	CreatedAt int64  `db:"created_at"`
}

// SaveHazard inserts or replaces a hazard record.
func (db *DB) SaveHazard(ctx context.Context, rec scene.HazardRecord) error {
	tmpl, err := json.Marshal(rec.Template)
	if err != nil {
		return fmt.Errorf("encode hazard template: %w", err)
	}
	_, err = db.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO hazards
		(id, name, source_id, template_json, formula, target, created_at)
		VALUES (:id, :name, :source_id, :template_json, :formula, :target, :created_at)`,
		hazardRow{
			ID:        rec.ID,
			Name:      rec.Name,
			SourceID:  rec.SourceID,
			Template:  string(tmpl),
			Formula:   rec.Chance.Formula,
			Target:    rec.Chance.Target,
			CreatedAt: rec.CreatedAt.UnixNano(),
		})
	if err != nil {
		return fmt.Errorf("save hazard %s: %w", rec.ID, err)
	}
	return nil
}

// Hazards returns every hazard record, oldest first.
func (db *DB) Hazards(ctx context.Context) ([]scene.HazardRecord, error) {
	var rows []hazardRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT id, name, source_id, template_json, formula, target, created_at FROM hazards ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("select hazards: %w", err)
	}

	out := make([]scene.HazardRecord, 0, len(rows))
	for _, r := range rows {
		rec := scene.HazardRecord{
			ID:        r.ID,
			Name:      r.Name,
			SourceID:  r.SourceID,
			Chance:    scene.Chance{Formula: r.Formula, Target: r.Target},
			CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
		}
		if err := json.Unmarshal([]byte(r.Template), &rec.Template); err != nil {
			return nil, fmt.Errorf("decode template of hazard %s: %w", r.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteHazard drops a hazard record. Burning tokens are left in place.
func (db *DB) DeleteHazard(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM hazards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete hazard %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("hazard %q: %w", id, scene.ErrNotFound)
	}
	return nil
}

type combatantRow struct {
	Position      int    `db:"position"`
	ID            string `db:"id"`
	Name          string `db:"name"`
	Initiative    int    `db:"initiative"`
	HazardID      string `db:"hazard_id"`
	ChanceFormula string `db:"chance_formula"`
	ChanceTarget  int    `db:"chance_target"`
}

// Combatants returns the stored turn order.
func (db *DB) Combatants(ctx context.Context) ([]scene.Combatant, error) {
	var rows []combatantRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT position, id, name, initiative, hazard_id, chance_formula, chance_target FROM combatants ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("select combatants: %w", err)
	}

	out := make([]scene.Combatant, 0, len(rows))
	for _, r := range rows {
		c := scene.Combatant{ID: r.ID, Name: r.Name, Initiative: r.Initiative, HazardID: r.HazardID}
		if r.ChanceFormula != "" {
			c.Chance = &scene.Chance{Formula: r.ChanceFormula, Target: r.ChanceTarget}
		}
		out = append(out, c)
	}
	return out, nil
}

// SaveCombatants replaces the stored turn order (full replace).
func (db *DB) SaveCombatants(ctx context.Context, combatants []scene.Combatant) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM combatants"); err != nil {
		return err
	}

	for i, c := range combatants {
		row := combatantRow{Position: i, ID: c.ID, Name: c.Name, Initiative: c.Initiative, HazardID: c.HazardID}
		if c.Chance != nil {
			row.ChanceFormula = c.Chance.Formula
			row.ChanceTarget = c.Chance.Target
		}
		_, err := tx.NamedExecContext(ctx, `INSERT INTO combatants
			(position, id, name, initiative, hazard_id, chance_formula, chance_target)
			VALUES (:position, :id, :name, :initiative, :hazard_id, :chance_formula, :chance_target)`, row)
		if err != nil {
			return fmt.Errorf("insert combatant %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

type eventRow struct {
	Turn        uint64 `db:"turn"`
	Description string `db:"description"`
	Category    string `db:"category"`
	At          int64  `db:"at"`
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(ctx context.Context, events []scene.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO events (turn, description, category, at) VALUES (?, ?, ?, ?)",
			e.Turn, e.Description, e.Category, e.At.UnixNano(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]scene.Event, error) {
	var rows []eventRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT turn, description, category, at FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}

	events := make([]scene.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, scene.Event{
			Turn:        r.Turn,
			Description: r.Description,
			Category:    r.Category,
			At:          time.Unix(0, r.At).UTC(),
		})
	}
	return events, nil
}

// SaveMeta stores a key-value pair in scene metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO scene_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM scene_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, scene.ErrNotFound)
	}
	return value, err
}

// HasScene reports whether a scene has been saved to this database.
func (db *DB) HasScene(ctx context.Context) (bool, error) {
	var n int
	if err := db.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM regions"); err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveScene writes a freshly generated scene and its geometry.
func (db *DB) SaveScene(ctx context.Context, s *scene.Scene) error {
	slog.Info("saving scene", "regions", len(s.Regions), "tokens", len(s.Tokens))

	if _, err := db.CreateRegions(ctx, s.Regions); err != nil {
		return fmt.Errorf("save regions: %w", err)
	}
	if _, err := db.CreateTokens(ctx, s.Tokens); err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	meta := map[string]string{
		"cell_size": fmt.Sprintf("%g", s.Geometry.Size),
		"rows":      fmt.Sprintf("%d", s.Geometry.Rows),
		"cols":      fmt.Sprintf("%d", s.Geometry.Cols),
		"campfire":  s.Campfire,
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			return fmt.Errorf("save meta: %w", err)
		}
	}

	slog.Info("scene saved")
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
