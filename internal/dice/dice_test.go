package dice

import (
	"context"
	"errors"
	"testing"
)

// fixedSource always returns the same face index, clamped to the die.
type fixedSource int

func (f fixedSource) IntN(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

func TestParse_Bounds(t *testing.T) {
	tests := []struct {
		formula  string
		min, max int
	}{
		{"1d1", 1, 1},
		{"1d6", 1, 6},
		{"d6", 1, 6},
		{"2d10+3", 5, 23},
		{"3d6 - 1d4", -1, 17},
		{"d%", 1, 100},
		{"5", 5, 5},
		{"-2", -2, -2},
		{"-1d4+10", 6, 9},
		{"2D8", 2, 16},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			e, err := Parse(tt.formula)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.formula, err)
			}
			if e.Min() != tt.min || e.Max() != tt.max {
				t.Errorf("Parse(%q) bounds = [%d, %d], want [%d, %d]", tt.formula, e.Min(), e.Max(), tt.min, tt.max)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	for _, formula := range []string{"", "   ", "d", "1d", "0d6", "1d0", "2d6+", "1d6 x", "abc", "1001d6", "1d9999999", "1d6\x00junk", "\x00"} {
		t.Run(formula, func(t *testing.T) {
			_, err := Parse(formula)
			if err == nil {
				t.Fatalf("Parse(%q) error = nil, want error", formula)
			}
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Errorf("Parse(%q) error type = %T, want *SyntaxError", formula, err)
			}
		})
	}
}

func TestExpr_RollWithinBounds(t *testing.T) {
	src := NewSeeded(7)
	for _, formula := range []string{"1d6", "3d6-1d4", "d%+2", "4d4"} {
		e := MustParse(formula)
		for i := 0; i < 500; i++ {
			v := e.Roll(src)
			if v < e.Min() || v > e.Max() {
				t.Fatalf("%s rolled %d outside [%d, %d]", formula, v, e.Min(), e.Max())
			}
		}
	}
}

func TestExpr_RollFixedFaces(t *testing.T) {
	e := MustParse("2d6+1")
	if got := e.Roll(fixedSource(0)); got != 3 {
		t.Errorf("lowest faces roll = %d, want 3", got)
	}
	if got := e.Roll(fixedSource(99)); got != 13 {
		t.Errorf("highest faces roll = %d, want 13", got)
	}
}

func TestSeeded_Deterministic(t *testing.T) {
	a, b := NewSeeded(42), NewSeeded(42)
	for i := 0; i < 100; i++ {
		if x, y := a.IntN(20), b.IntN(20); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestRoller_CachesAndReportsErrors(t *testing.T) {
	r := NewRoller(fixedSource(0))
	ctx := context.Background()

	got, err := r.Roll(ctx, "1d1")
	if err != nil || got != 1 {
		t.Errorf("Roll(1d1) = %d, %v, want 1, nil", got, err)
	}
	if _, ok := r.cache["1d1"]; !ok {
		t.Error("1d1 not cached after roll")
	}
	if _, err := r.Roll(ctx, "1dx"); err == nil {
		t.Error("Roll(1dx) error = nil, want error")
	}
}

func TestRoller_CancelledContext(t *testing.T) {
	r := NewRoller(NewSeeded(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Roll(ctx, "1d6"); !errors.Is(err, context.Canceled) {
		t.Errorf("Roll error = %v, want context.Canceled", err)
	}
}
