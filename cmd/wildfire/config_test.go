package main

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"WILDFIRE_DB", "WILDFIRE_SEED", "WILDFIRE_PORT", "WILDFIRE_CELL_SIZE", "WILDFIRE_TURN_SECONDS", "WILDFIRE_TOPOLOGY"} {
		t.Setenv(k, "")
	}
	cfg := loadConfig()
	if cfg.DBPath != "data/wildfire.db" || cfg.Seed != 42 || cfg.Port != 8080 {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.CellSize != 100 || cfg.TurnInterval != 2*time.Second || cfg.Topology != "square" {
		t.Errorf("grid defaults = %+v", cfg)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("WILDFIRE_SEED", "7")
	t.Setenv("WILDFIRE_ROWS", "12")
	t.Setenv("WILDFIRE_CELL_SIZE", "70")
	t.Setenv("WILDFIRE_TURN_SECONDS", "0.5")
	t.Setenv("WILDFIRE_TOPOLOGY", "hex")
	t.Setenv("WILDFIRE_PORT", "not-a-number")

	cfg := loadConfig()
	if cfg.Seed != 7 || cfg.Rows != 12 || cfg.CellSize != 70 || cfg.Topology != "hex" {
		t.Errorf("overrides = %+v", cfg)
	}
	if cfg.TurnInterval != 500*time.Millisecond {
		t.Errorf("TurnInterval = %v, want 500ms", cfg.TurnInterval)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want default on parse error", cfg.Port)
	}
}
