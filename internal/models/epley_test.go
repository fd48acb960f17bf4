package models

import "testing"

// TestEpley1RMEstimate verifies the Epley relation weight × (1 + reps/30)
// for a typical submaximal set.
func TestEpley1RMEstimate(t *testing.T) {
	// 100 kg × 5 reps → 100000 × (1 + 5/30) = 116667 g (rounded)
	got, ok := Epley1RM(100000, 5)
	if !ok {
		t.Fatal("expected valid estimate for 5 reps")
	}
	if got != 116667 {
		t.Errorf("Epley1RM(100000, 5) = %d, want 116667", got)
	}
}

// TestEpley1RMSingleRep verifies a single rep returns the lifted weight
// itself — it already is a one-rep max.
func TestEpley1RMSingleRep(t *testing.T) {
	got, ok := Epley1RM(142500, 1)
	if !ok {
		t.Fatal("expected valid estimate for 1 rep")
	}
	if got != 142500 {
		t.Errorf("Epley1RM(142500, 1) = %d, want 142500", got)
	}
}

// TestEpley1RMOutOfRange verifies the estimate is withheld outside the
// 1-12 rep validity window and for non-positive weight.
func TestEpley1RMOutOfRange(t *testing.T) {
	cases := []struct {
		name    string
		weightG int64
		reps    int
	}{
		{"zero reps", 100000, 0},
		{"thirteen reps", 100000, 13},
		{"negative reps", 100000, -1},
		{"zero weight", 0, 5},
		{"negative weight", -500, 5},
	}
	for _, tc := range cases {
		if _, ok := Epley1RM(tc.weightG, tc.reps); ok {
			t.Errorf("%s: expected no estimate", tc.name)
		}
	}
}

// TestEpley1RMUpperBound verifies 12 reps is still inside the validity
// window.
func TestEpley1RMUpperBound(t *testing.T) {
	got, ok := Epley1RM(60000, 12)
	if !ok {
		t.Fatal("expected valid estimate for 12 reps")
	}
	// 60000 × 1.4 = 84000
	if got != 84000 {
		t.Errorf("Epley1RM(60000, 12) = %d, want 84000", got)
	}
}
