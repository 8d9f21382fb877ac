// Scene generation using layered simplex noise.
// Dry patches become brush regions marked flammable, rocky patches become
// inert regions, and a handful of tokens are dropped onto the map.
package scene

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/wildfire/internal/grid"
)

// GenConfig holds scene generation parameters.
type GenConfig struct {
	Rows       int     // Scene height in cells
	Cols       int     // Scene width in cells
	CellSize   float64 // Pixels per cell
	Seed       int64   // Random seed (0 = random)
	PatchCells int     // Edge of the sampling lattice, in cells
	DryLevel   float64 // Moisture below this becomes brush (0.0–1.0)
	RockLevel  float64 // Elevation above this becomes rock (0.0–1.0)
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Rows:       24,
		Cols:       40,
		CellSize:   100,
		Seed:       0,
		PatchCells: 3,
		DryLevel:   0.5,
		RockLevel:  0.7,
	}
}

// SmallTestConfig returns a tiny scene for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Rows:       8,
		Cols:       8,
		CellSize:   50,
		Seed:       42,
		PatchCells: 2,
		DryLevel:   0.55,
		RockLevel:  0.75,
	}
}

// Scene is a freshly generated set of placed entities.
type Scene struct {
	Geometry grid.Geometry
	Regions  []Region
	Tokens   []Token
	// Campfire is the id of the token intended to seed the first hazard.
	Campfire string
}

// Generate creates a scene with noise-placed regions and a few tokens.
func Generate(cfg GenConfig) *Scene {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	if cfg.PatchCells <= 0 {
		cfg.PatchCells = 1
	}

	moistNoise := opensimplex.NewNormalized(seed)
	elevNoise := opensimplex.NewNormalized(seed + 1)
	rng := rand.New(rand.NewSource(seed + 2))

	s := &Scene{
		Geometry: grid.NewGeometry(cfg.CellSize, cfg.Rows, cfg.Cols, grid.Square),
	}

	patch := float64(cfg.PatchCells) * cfg.CellSize
	n := 0
	for row := 0; row < cfg.Rows; row += cfg.PatchCells {
		for col := 0; col < cfg.Cols; col += cfg.PatchCells {
			x := float64(col)
			y := float64(row)

			moist := octaveNoise(moistNoise, x, y, 3, 0.08, 0.5)
			elev := octaveNoise(elevNoise, x, y, 3, 0.06, 0.5)

			var name string
			var flammable bool
			switch {
			case elev > cfg.RockLevel:
				name = "Scree"
			case moist < cfg.DryLevel:
				name = "Dry brush"
				flammable = true
			default:
				continue
			}

			// Regions are freely placed: jitter the anchor and extent so they
			// never line up with the grid.
			px, py := s.Geometry.PixelOf(grid.Cell{Row: row, Col: col})
			bounds := grid.Rect{
				X: px + rng.Float64()*cfg.CellSize*0.4,
				Y: py + rng.Float64()*cfg.CellSize*0.4,
				W: patch * (0.8 + rng.Float64()*0.5),
				H: patch * (0.8 + rng.Float64()*0.5),
			}
			n++
			s.Regions = append(s.Regions, Region{
				ID:        uuid.NewString(),
				Name:      fmt.Sprintf("%s %d", name, n),
				Bounds:    bounds,
				Flammable: flammable,
			})
		}
	}

	s.placeTokens(rng)
	return s
}

// placeTokens drops a campfire inside the first brush region (or the scene
// centre when there is none) plus a couple of bystanders.
func (s *Scene) placeTokens(rng *rand.Rand) {
	g := s.Geometry
	center := grid.Cell{Row: g.Rows / 2, Col: g.Cols / 2}
	for _, r := range s.Regions {
		if r.IsFlammable() {
			center = g.CellOf(r.Bounds.X+r.Bounds.W/2, r.Bounds.Y+r.Bounds.H/2)
			break
		}
	}
	if !g.InBounds(center) {
		center = grid.Cell{Row: g.Rows / 2, Col: g.Cols / 2}
	}

	x, y := g.PixelOf(center)
	campfire := Token{
		ID: uuid.NewString(),
		Template: Template{
			Name:   "Campfire",
			Image:  "tiles/fire.webm",
			Width:  1,
			Height: 1,
			Flags:  map[string]string{"light": "bright"},
		},
		X: x,
		Y: y,
	}
	s.Campfire = campfire.ID
	s.Tokens = append(s.Tokens, campfire)

	for _, name := range []string{"Ranger", "Supply cart"} {
		c := grid.Cell{Row: rng.Intn(g.Rows), Col: rng.Intn(g.Cols)}
		px, py := g.PixelOf(c)
		s.Tokens = append(s.Tokens, Token{
			ID:       uuid.NewString(),
			Template: Template{Name: name, Image: "tokens/" + name + ".png", Width: 1, Height: 1},
			X:        px,
			Y:        py,
		})
	}
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// RegionCounts returns how many generated regions are flammable and inert.
func RegionCounts(regions []Region) (flammable, inert int) {
	for _, r := range regions {
		if r.IsFlammable() {
			flammable++
		} else {
			inert++
		}
	}
	return flammable, inert
}
