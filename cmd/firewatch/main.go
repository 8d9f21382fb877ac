// Command firewatch is a read-only terminal view of a wildfire scene.
// It polls the database, so it can watch a running wildfire process.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/talgya/wildfire/internal/grid"
	"github.com/talgya/wildfire/internal/persistence"
	"github.com/talgya/wildfire/internal/render"
)

func main() {
	// The screen owns the terminal; logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if path := os.Getenv("FIREWATCH_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			defer f.Close()
			logOut = f
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, nil)))

	dbPath := envOrDefault("WILDFIRE_DB", "data/wildfire.db")
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Stderr.WriteString("firewatch: cannot open " + dbPath + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer db.Close()

	topo, err := grid.TopologyByName(envOrDefault("WILDFIRE_TOPOLOGY", "square"))
	if err != nil {
		os.Stderr.WriteString("firewatch: " + err.Error() + "\n")
		os.Exit(1)
	}
	geom := grid.NewGeometry(
		metaFloat(db, "cell_size", envFloatOrDefault("WILDFIRE_CELL_SIZE", 100)),
		int(metaFloat(db, "rows", float64(envIntOrDefault("WILDFIRE_ROWS", 24)))),
		int(metaFloat(db, "cols", float64(envIntOrDefault("WILDFIRE_COLS", 40)))),
		topo,
	)

	screen, err := tcell.NewScreen()
	if err != nil {
		os.Stderr.WriteString("firewatch: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		os.Stderr.WriteString("firewatch: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer screen.Fini()

	events := make(chan tcell.Event, 8)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	view := render.View{Geometry: geom}
	hazards := 0
	refresh := func() {
		ctx := context.Background()
		if tokens, err := db.Tokens(ctx); err == nil {
			view.Tokens = tokens
		} else {
			slog.Warn("read tokens failed", "error", err)
		}
		if regions, err := db.AllRegions(ctx); err == nil {
			view.Regions = regions
		} else {
			slog.Warn("read regions failed", "error", err)
		}
		if recs, err := db.Hazards(ctx); err == nil {
			hazards = len(recs)
		}
	}
	draw := func() {
		view.Status = render.StatusLine(view, hazards)
		render.Draw(screen, view)
		screen.Show()
	}

	refresh()
	draw()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			refresh()
			draw()
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				screen.Sync()
				draw()
			case *tcell.EventKey:
				switch ev.Key() {
				case tcell.KeyEscape, tcell.KeyCtrlC:
					return
				case tcell.KeyUp:
					view.Offset = render.Scroll(view, -1, 0)
				case tcell.KeyDown:
					view.Offset = render.Scroll(view, 1, 0)
				case tcell.KeyLeft:
					view.Offset = render.Scroll(view, 0, -1)
				case tcell.KeyRight:
					view.Offset = render.Scroll(view, 0, 1)
				case tcell.KeyRune:
					if ev.Rune() == 'q' {
						return
					}
				}
				draw()
			}
		}
	}
}

func metaFloat(db *persistence.DB, key string, defaultVal float64) float64 {
	v, err := db.GetMeta(key)
	if err != nil {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloatOrDefault(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultVal
}
