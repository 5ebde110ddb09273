package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Embedding.Dim != 128 {
		t.Errorf("expected default embedding dim 128, got %d", cfg.Embedding.Dim)
	}
	if cfg.Embedding.MaxFrameWidth != 640 {
		t.Errorf("expected default max frame width 640, got %d", cfg.Embedding.MaxFrameWidth)
	}
	if cfg.Terminal.Interval != 2*time.Second {
		t.Errorf("expected default terminal interval 2s, got %s", cfg.Terminal.Interval)
	}
	if cfg.Bridge.Interval != 5*time.Minute {
		t.Errorf("expected default sync interval 5m, got %s", cfg.Bridge.Interval)
	}
	if cfg.Database.CascadeDelete {
		t.Error("cascade delete should be off by default")
	}
}

func TestLoad_EmbeddedTolerances(t *testing.T) {
	cfg := Load()

	ladder := cfg.Recognition.Tolerances
	if len(ladder) != 3 {
		t.Fatalf("expected 3 tolerance rungs, got %d", len(ladder))
	}

	expected := []float64{0.40, 0.50, 0.60}
	for i, tol := range expected {
		if ladder[i] != tol {
			t.Errorf("rung %d: expected %.2f, got %.2f", i, tol, ladder[i])
		}
	}
}

func TestLoad_TolerancesFromEnv(t *testing.T) {
	t.Setenv("RECOGNITION_TOLERANCES", "0.55, 0.35")

	cfg := Load()

	ladder := cfg.Recognition.Tolerances
	if len(ladder) != 2 {
		t.Fatalf("expected 2 tolerance rungs, got %d", len(ladder))
	}
	// Must be sorted strictest first regardless of env order.
	if ladder[0] != 0.35 || ladder[1] != 0.55 {
		t.Errorf("expected [0.35 0.55], got %v", ladder)
	}
}

func TestLoad_TolerancesFromEnvInvalid(t *testing.T) {
	t.Setenv("RECOGNITION_TOLERANCES", "not,a,number")

	cfg := Load()

	// Falls back to the embedded defaults.
	if len(cfg.Recognition.Tolerances) != 3 {
		t.Errorf("expected embedded defaults, got %v", cfg.Recognition.Tolerances)
	}
}

func TestParseTolerances(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []float64
	}{
		{"simple", "0.4,0.5", []float64{0.4, 0.5}},
		{"unsorted", "0.6,0.4", []float64{0.4, 0.6}},
		{"spaces", " 0.4 , 0.6 ", []float64{0.4, 0.6}},
		{"drops invalid", "0.4,x,0.6", []float64{0.4, 0.6}},
		{"drops negative", "-0.4,0.6", []float64{0.6}},
		{"empty", "", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseTolerances(tc.input)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("expected %v, got %v", tc.want, got)
					break
				}
			}
		})
	}
}

func TestEnvDuration_Invalid(t *testing.T) {
	t.Setenv("TERMINAL_INTERVAL", "soon")

	cfg := Load()
	if cfg.Terminal.Interval != 2*time.Second {
		t.Errorf("invalid duration should fall back to default, got %s", cfg.Terminal.Interval)
	}
}
