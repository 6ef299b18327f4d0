package services

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled copy", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"both empty", nil, nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineSimilarity(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("CosineSimilarity(%v, %v) = %f, want %f", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestCosineSimilarityBounded(t *testing.T) {
	a := []float32{0.3, -0.7, 0.12, 0.55}
	b := []float32{-0.2, 0.9, 0.4, -0.1}
	got := CosineSimilarity(a, b)
	if got < -1.000001 || got > 1.000001 {
		t.Errorf("similarity %f out of [-1, 1]", got)
	}
}
