package geometry

import "testing"

func TestStepsCalculator_KnownFactors(t *testing.T) {
	sc := NewStepsCalculator(38.5, 39.9)

	cases := []struct {
		name     string
		distance float64
		wantX    int
		wantY    int
	}{
		{"zero", 0, 0, 0},
		{"one_unit", 1, 38, 39},
		{"ten_units", 10, 385, 399},
		{"fractional", 2.5, 96, 99},
		{"hundred", 100, 3850, 3990},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sc.StepsX(tc.distance); got != tc.wantX {
				t.Errorf("StepsX(%v) = %d, want %d", tc.distance, got, tc.wantX)
			}
			if got := sc.StepsY(tc.distance); got != tc.wantY {
				t.Errorf("StepsY(%v) = %d, want %d", tc.distance, got, tc.wantY)
			}
		})
	}
}

func TestStepsCalculator_AxesIndependent(t *testing.T) {
	sc := NewStepsCalculator(10, 20)
	if sc.StepsX(5) == sc.StepsY(5) {
		t.Error("axes with different factors should produce different step counts")
	}
}
