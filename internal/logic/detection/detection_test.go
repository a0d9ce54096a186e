package detection

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func det(x, y int, conf float64) Detection {
	return Detection{X: x, Y: y, Confidence: conf}
}

func TestConfirm(t *testing.T) {
	cases := []struct {
		name      string
		first     []Detection
		second    []Detection
		threshold int
		want      []image.Point
	}{
		{
			name:      "match_takes_second_coordinate",
			first:     []Detection{det(100, 100, 0.9)},
			second:    []Detection{det(103, 101, 0.8)},
			threshold: 5,
			want:      []image.Point{{103, 101}},
		},
		{
			name:      "empty_first",
			first:     nil,
			second:    []Detection{det(1, 1, 0.5)},
			threshold: 5,
			want:      []image.Point{},
		},
		{
			name:      "empty_second_passes_first_through",
			first:     []Detection{det(10, 20, 0.9), det(30, 40, 0.4)},
			second:    nil,
			threshold: 5,
			want:      []image.Point{{10, 20}, {30, 40}},
		},
		{
			name:      "out_of_threshold_falls_back",
			first:     []Detection{det(100, 100, 0.9)},
			second:    []Detection{det(106, 100, 0.9)},
			threshold: 5,
			want:      []image.Point{{100, 100}},
		},
		{
			name:      "threshold_is_inclusive",
			first:     []Detection{det(100, 100, 0.9)},
			second:    []Detection{det(105, 95, 0.9)},
			threshold: 5,
			want:      []image.Point{{105, 95}},
		},
		{
			name: "per_axis_bound_not_euclidean",
			// (5,5) is ~7.07 away in Euclidean terms but within 5 on each axis.
			first:     []Detection{det(0, 0, 0.9)},
			second:    []Detection{det(5, 5, 0.9)},
			threshold: 5,
			want:      []image.Point{{5, 5}},
		},
		{
			name:      "second_point_used_once",
			first:     []Detection{det(50, 50, 0.9), det(51, 51, 0.9)},
			second:    []Detection{det(52, 52, 0.9)},
			threshold: 5,
			want:      []image.Point{{52, 52}, {51, 51}},
		},
		{
			name:      "two_candidates_both_match",
			first:     []Detection{det(50, 50, 0.9), det(51, 51, 0.9)},
			second:    []Detection{det(52, 52, 0.9), det(49, 49, 0.9)},
			threshold: 5,
			want:      []image.Point{{52, 52}, {49, 49}},
		},
		{
			name:      "first_fit_not_nearest",
			first:     []Detection{det(100, 100, 0.9)},
			second:    []Detection{det(104, 104, 0.9), det(100, 101, 0.9)},
			threshold: 5,
			want:      []image.Point{{104, 104}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Confirm(tc.first, tc.second, tc.threshold)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Confirm mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfirm_DoesNotMutateInputs(t *testing.T) {
	second := []Detection{det(1, 1, 0.5), det(2, 2, 0.5)}
	before := append([]Detection(nil), second...)
	Confirm([]Detection{det(1, 1, 0.9)}, second, 3)
	if diff := cmp.Diff(before, second); diff != "" {
		t.Errorf("second slice mutated (-before +after):\n%s", diff)
	}
}
