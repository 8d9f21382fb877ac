package main

import (
	"os"
	"strconv"
	"time"
)

// config is read once from the environment at startup.
type config struct {
	DBPath       string
	Seed         int64
	Port         int
	AdminKey     string
	CellSize     float64
	Rows         int
	Cols         int
	Topology     string
	Lang         string
	TurnInterval time.Duration
	RandomOrgKey string
}

func loadConfig() config {
	return config{
		DBPath:       envOrDefault("WILDFIRE_DB", "data/wildfire.db"),
		Seed:         int64(envIntOrDefault("WILDFIRE_SEED", 42)),
		Port:         envIntOrDefault("WILDFIRE_PORT", 8080),
		AdminKey:     os.Getenv("WILDFIRE_ADMIN_KEY"),
		CellSize:     envFloatOrDefault("WILDFIRE_CELL_SIZE", 100),
		Rows:         envIntOrDefault("WILDFIRE_ROWS", 24),
		Cols:         envIntOrDefault("WILDFIRE_COLS", 40),
		Topology:     envOrDefault("WILDFIRE_TOPOLOGY", "square"),
		Lang:         envOrDefault("WILDFIRE_LANG", "en"),
		TurnInterval: time.Duration(envFloatOrDefault("WILDFIRE_TURN_SECONDS", 2) * float64(time.Second)),
		RandomOrgKey: os.Getenv("RANDOM_ORG_API_KEY"),
	}
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
