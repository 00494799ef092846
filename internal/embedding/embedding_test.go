package embedding

import (
	"math"
	"testing"
)

const tolerance = 1e-6

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float32
		want []float32
	}{
		{"3-4-5", []float32{3, 4}, []float32{0.6, 0.8}},
		{"already unit", []float32{0, 1, 0}, []float32{0, 1, 0}},
		{"negative", []float32{-2, 0}, []float32{-1, 0}},
		{"zero vector unchanged", []float32{0, 0, 0}, []float32{0, 0, 0}},
		{"empty", []float32{}, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > tolerance {
					t.Errorf("got[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	_ = Normalize(in)
	if in[0] != 3 || in[1] != 4 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3, 4},
		{-0.5, 0.25, 10},
		{1e-3, 1e-3},
		{7},
	}
	for _, v := range vectors {
		once := Normalize(v)
		twice := Normalize(once)
		for i := range once {
			if math.Abs(float64(once[i]-twice[i])) > tolerance {
				t.Errorf("Normalize not idempotent for %v at %d: %v vs %v", v, i, once[i], twice[i])
			}
		}
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	pairs := [][2][]float32{
		{{1, 2, 3}, {3, 2, 1}},
		{{0.1, -0.7, 0.3}, {0.9, 0.05, -0.2}},
		{{0, 0, 0}, {1, 1, 1}},
		{{5, 5}, {-5, -5}},
	}
	for _, p := range pairs {
		ab := Similarity(p[0], p[1])
		ba := Similarity(p[1], p[0])
		if ab != ba {
			t.Errorf("Similarity(%v, %v) = %v, reversed = %v", p[0], p[1], ab, ba)
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"self", []float32{0.3, -1.2, 4}, []float32{0.3, -1.2, 4}, 1},
		{"scaled copy", []float32{1, 2}, []float32{10, 20}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero left", []float32{0, 0}, []float32{1, 2}, 0},
		{"zero both", []float32{0, 0}, []float32{0, 0}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > tolerance {
				t.Errorf("Similarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	if got := EuclideanDistance([]float32{0, 0}, []float32{3, 4}); math.Abs(got-5) > tolerance {
		t.Errorf("distance = %v, want 5", got)
	}
	if got := EuclideanDistance([]float32{1, 2}, []float32{1, 2}); got != 0 {
		t.Errorf("self distance = %v, want 0", got)
	}
	if got := EuclideanDistance([]float32{1}, []float32{1, 2}); !math.IsInf(got, 1) {
		t.Errorf("mismatched distance = %v, want +Inf", got)
	}
}
