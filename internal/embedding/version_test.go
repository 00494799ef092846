package embedding

import (
	"math"
	"testing"
)

func TestVersionDispatch(t *testing.T) {
	cosine := MustLookup(InsightFaceBuffaloL)
	dist := MustLookup(DlibResNet)

	tests := []struct {
		name      string
		v         Version
		score     float64
		threshold float64
		accepted  bool
	}{
		{"cosine above", cosine, 0.85, 0.70, true},
		{"cosine equal", cosine, 0.70, 0.70, true},
		{"cosine below", cosine, 0.60, 0.70, false},
		{"distance below", dist, 0.40, 0.60, true},
		{"distance equal", dist, 0.60, 0.60, true},
		{"distance above", dist, 0.75, 0.60, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Accepts(tt.score, tt.threshold); got != tt.accepted {
				t.Errorf("Accepts(%v, %v) = %v, want %v", tt.score, tt.threshold, got, tt.accepted)
			}
		})
	}

	if !cosine.Better(0.9, 0.8) || cosine.Better(0.8, 0.8) {
		t.Error("cosine Better must be strictly greater")
	}
	if !dist.Better(0.3, 0.4) || dist.Better(0.4, 0.4) {
		t.Error("distance Better must be strictly smaller")
	}
}

func TestVersionScore(t *testing.T) {
	cosine := Version{Tag: "c", Metric: Cosine, Order: HigherIsBetter}
	probe := cosine.Prepare([]float32{2, 0})
	if got := cosine.Score(probe, []float32{5, 0}); math.Abs(got-1) > tolerance {
		t.Errorf("cosine score = %v, want 1", got)
	}
	if got := cosine.Score(probe, []float32{0, 0}); got != 0 {
		t.Errorf("cosine score vs zero = %v, want 0", got)
	}

	dist := Version{Tag: "d", Metric: Euclidean, Order: LowerIsBetter}
	raw := []float32{2, 0}
	prepared := dist.Prepare(raw)
	prepared[0] = 99
	if raw[0] != 2 {
		t.Error("Prepare must copy the probe")
	}
	if got := dist.Score([]float32{0, 0}, []float32{0, 3}); math.Abs(got-3) > tolerance {
		t.Errorf("euclidean score = %v, want 3", got)
	}
}

func TestCompatible(t *testing.T) {
	v := MustLookup(InsightFaceBuffaloL)
	if !v.Compatible(InsightFaceBuffaloL, 512) {
		t.Error("same tag and dim should be compatible")
	}
	if v.Compatible(InsightFaceBuffaloL, 128) {
		t.Error("dimension mismatch should be incompatible")
	}
	if v.Compatible(DlibResNet, 512) {
		t.Error("different tag should be incompatible")
	}
	if v.Compatible(LegacyUnversioned, 512) {
		t.Error("legacy tag should never be compatible")
	}
}

func TestRegister(t *testing.T) {
	if err := Register(Version{}); err == nil {
		t.Error("expected error for empty tag")
	}
	if err := Register(Version{Tag: "x", Metric: "manhattan"}); err == nil {
		t.Error("expected error for unknown metric")
	}

	v := Version{Tag: "test-register-v1", Dim: 4, Metric: Cosine, DefaultThreshold: 0.5}
	if err := Register(v); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := Lookup("test-register-v1")
	if !ok || got.Dim != 4 {
		t.Errorf("Lookup = %+v, %v", got, ok)
	}

	found := false
	for _, tag := range Tags() {
		if tag == "test-register-v1" {
			found = true
		}
	}
	if !found {
		t.Error("Tags() missing registered version")
	}
}
