// Package api provides the HTTP API for observing and steering a scene.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (game master control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/wildfire/internal/dice"
	"github.com/talgya/wildfire/internal/engine"
	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/hazard"
	"github.com/talgya/wildfire/internal/region"
	"github.com/talgya/wildfire/internal/scene"
)

// SceneStore is the entity store the API reads and writes.
type SceneStore interface {
	hazard.Store
	Tokens(ctx context.Context) ([]scene.Token, error)
	AllRegions(ctx context.Context) ([]scene.Region, error)
	SaveCombatants(ctx context.Context, combatants []scene.Combatant) error
	RecentEvents(ctx context.Context, limit int) ([]scene.Event, error)
}

// Server serves the scene over HTTP.
type Server struct {
	Registry  *hazard.Registry
	Store     SceneStore
	Eng       *engine.Engine
	Port      int
	AdminKey  string // Bearer token for POST endpoints. Empty = POST disabled.
	StartedAt time.Time

	// SpreadLimit caps manual spread requests per client per minute. 0 = 30.
	SpreadLimit int
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	limit := s.SpreadLimit
	if limit <= 0 {
		limit = 30
	}
	spreadLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/tokens", s.handleTokens)
	mux.HandleFunc("/api/v1/regions", s.handleRegions)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/cell/", s.handleCellDetail)

	// Mixed: GET observes, POST (admin) mutates.
	mux.HandleFunc("/api/v1/hazards", s.adminOnly(s.handleHazards))
	mux.HandleFunc("/api/v1/hazard/", s.adminOnly(s.handleHazardRoutes(spreadLimiter)))
	mux.HandleFunc("/api/v1/combat", s.adminOnly(s.handleCombat))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	// Admin only.
	mux.HandleFunc("/api/v1/regions/flammable", s.adminOnly(postOnly(s.handleFlammable)))
	mux.HandleFunc("/api/v1/combat/advance", s.adminOnly(postOnly(s.handleAdvance)))
	mux.HandleFunc("/api/v1/combat/join", s.adminOnly(postOnly(s.handleJoin)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no WILDFIRE_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func postOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	var syn *dice.SyntaxError
	switch {
	case errors.Is(err, hazard.ErrUnknownHazard), errors.Is(err, scene.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, hazard.ErrAlreadyHazard):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, hazard.ErrNoSource), errors.Is(err, hazard.ErrNoRegions), errors.As(err, &syn):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	regions, err := s.Store.AllRegions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	tokens, err := s.Store.Tokens(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	flammable, inert := scene.RegionCounts(regions)
	burning := 0
	for _, t := range tokens {
		if t.IsHazard() {
			burning++
		}
	}

	geom := s.Registry.Geometry()
	status := map[string]any{
		"name":              "wildfire",
		"engine":            s.Eng.Status(),
		"hazards":           s.Registry.Len(),
		"tokens":            len(tokens),
		"burning_tokens":    burning,
		"flammable_regions": flammable,
		"inert_regions":     inert,
		"geometry":          geom.String(),
	}
	if !s.StartedAt.IsZero() {
		status["started"] = humanize.Time(s.StartedAt)
	}
	writeJSON(w, status)
}

type hazardSummary struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	SourceID  string       `json:"source_id"`
	Chance    scene.Chance `json:"chance"`
	Spreading bool         `json:"spreading"`
	Stats     hazard.Stats `json:"stats"`
	Burning   []grid.Cell  `json:"burning,omitempty"`
}

func summarize(h *hazard.Hazard) hazardSummary {
	return hazardSummary{
		ID:        h.ID(),
		Name:      h.Name(),
		SourceID:  h.SourceID(),
		Chance:    h.Chance(),
		Spreading: h.Spreading(),
		Stats:     h.Stats(),
	}
}

func (s *Server) handleHazards(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			SourceID string `json:"source_id"`
			Formula  string `json:"formula"`
			Target   int    `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Formula == "" {
			req.Formula = "1d6"
		}
		if _, err := dice.Parse(req.Formula); err != nil {
			writeError(w, err)
			return
		}

		h, err := s.Registry.CreateHazard(r.Context(), req.SourceID, req.Formula, req.Target)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSONStatus(w, http.StatusCreated, summarize(h))
		return
	}

	list := s.Registry.List()
	out := make([]hazardSummary, 0, len(list))
	for _, h := range list {
		out = append(out, summarize(h))
	}
	writeJSON(w, out)
}

// handleHazardRoutes dispatches /api/v1/hazard/:id and its actions.
func (s *Server) handleHazardRoutes(spreadLimiter *RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/v1/hazard/")
		id, action, _ := strings.Cut(rest, "/")
		if id == "" {
			http.Error(w, "usage: /api/v1/hazard/:id[/spread|/remove]", http.StatusBadRequest)
			return
		}

		switch action {
		case "":
			s.handleHazardDetail(w, r, id)
		case "spread":
			postOnly(RateLimitMiddleware(spreadLimiter, func(w http.ResponseWriter, r *http.Request) {
				s.handleSpread(w, r, id)
			}))(w, r)
		case "remove":
			postOnly(func(w http.ResponseWriter, r *http.Request) {
				if err := s.Registry.Remove(r.Context(), id); err != nil {
					writeError(w, err)
					return
				}
				s.Eng.RemoveCombatant("hazard:" + id)
				s.saveCombat(r.Context())
				writeJSON(w, map[string]string{"removed": id})
			})(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

func (s *Server) handleHazardDetail(w http.ResponseWriter, r *http.Request, id string) {
	h, ok := s.Registry.Get(id)
	if !ok {
		writeError(w, fmt.Errorf("hazard %q: %w", id, hazard.ErrUnknownHazard))
		return
	}
	tokens, err := s.Store.HazardTokens(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	geom := s.Registry.Geometry()
	sum := summarize(h)
	for _, t := range tokens {
		sum.Burning = append(sum.Burning, geom.CellOf(t.X, t.Y))
	}
	writeJSON(w, sum)
}

func (s *Server) handleSpread(w http.ResponseWriter, r *http.Request, id string) {
	h, ok := s.Registry.Get(id)
	if !ok {
		writeError(w, fmt.Errorf("hazard %q: %w", id, hazard.ErrUnknownHazard))
		return
	}

	// An empty body, chunked or not, means no override.
	var chance *scene.Chance
	var req scene.Chance
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Formula != "" {
		chance = &req
	}

	res, err := h.Spread(r.Context(), chance)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	var (
		tokens []scene.Token
		err    error
	)
	if id := r.URL.Query().Get("hazard"); id != "" {
		tokens, err = s.Store.HazardTokens(r.Context(), id)
	} else {
		tokens, err = s.Store.Tokens(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if tokens == nil {
		tokens = []scene.Token{}
	}
	writeJSON(w, tokens)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	var (
		regions []scene.Region
		err     error
	)
	if r.URL.Query().Get("flammable") != "" {
		regions, err = s.Store.FlammableRegions(r.Context())
	} else {
		regions, err = s.Store.AllRegions(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if regions == nil {
		regions = []scene.Region{}
	}
	writeJSON(w, regions)
}

func (s *Server) handleFlammable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RegionIDs []string `json:"region_ids"`
		Flammable *bool    `json:"flammable,omitempty"` // Default true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	flammable := req.Flammable == nil || *req.Flammable
	updated, err := s.Registry.SetRegionsFlammable(r.Context(), req.RegionIDs, flammable)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, updated)
}

// handleCellDetail returns what occupies /api/v1/cell/:row/:col.
func (s *Server) handleCellDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/cell/"), "/")
	if len(parts) != 2 {
		http.Error(w, "usage: /api/v1/cell/:row/:col", http.StatusBadRequest)
		return
	}
	row, err1 := strconv.Atoi(parts[0])
	col, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	geom := s.Registry.Geometry()
	cell := grid.Cell{Row: row, Col: col}
	if !geom.InBounds(cell) {
		http.Error(w, "cell out of bounds", http.StatusNotFound)
		return
	}

	regions, err := s.Store.AllRegions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	tokens, err := s.Store.Tokens(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	var here []scene.Token
	for _, t := range tokens {
		if geom.CellOf(t.X, t.Y) == cell {
			here = append(here, t)
		}
	}

	writeJSON(w, map[string]any{
		"cell":      cell,
		"rect":      geom.CellRect(cell),
		"flammable": region.Flammable(geom, regions, cell),
		"regions":   region.Covering(geom, regions, cell),
		"tokens":    here,
		"neighbors": geom.Neighbors(cell),
	})
}

func (s *Server) handleCombat(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req []scene.Combatant
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		s.Eng.SetCombatants(req)
		s.saveCombat(r.Context())
	}

	writeJSON(w, map[string]any{
		"status":     s.Eng.Status(),
		"combatants": s.Eng.Combatants(),
	})
}

// handleJoin puts a hazard into the combat order.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HazardID   string `json:"hazard_id"`
		Initiative int    `json:"initiative"`
		Formula    string `json:"formula,omitempty"`
		Target     int    `json:"target,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	h, ok := s.Registry.Get(req.HazardID)
	if !ok {
		writeError(w, fmt.Errorf("hazard %q: %w", req.HazardID, hazard.ErrUnknownHazard))
		return
	}

	var chance *scene.Chance
	if req.Formula != "" {
		if _, err := dice.Parse(req.Formula); err != nil {
			writeError(w, err)
			return
		}
		chance = &scene.Chance{Formula: req.Formula, Target: req.Target}
	}

	c := h.Combatant(req.Initiative, chance)
	s.Eng.RemoveCombatant(c.ID)
	s.Eng.AddCombatant(c)
	s.saveCombat(r.Context())
	writeJSON(w, c)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.Eng.Advance(context.WithoutCancel(r.Context()))
	if !ok {
		http.Error(w, "combat order is empty", http.StatusConflict)
		return
	}
	writeJSON(w, ev)
}

func (s *Server) saveCombat(ctx context.Context) {
	if err := s.Store.SaveCombatants(ctx, s.Eng.Combatants()); err != nil {
		slog.Error("save combatants failed", "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := s.Store.RecentEvents(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	type eventEntry struct {
		scene.Event
		Ago string `json:"ago"`
	}
	out := make([]eventEntry, 0, len(events))
	for _, e := range events {
		out = append(out, eventEntry{Event: e, Ago: humanize.Time(e.At)})
	}
	writeJSON(w, out)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
