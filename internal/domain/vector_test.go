package domain

import (
	"math"
	"testing"
)

func TestNormalize_UnitLength(t *testing.T) {
	v := Normalize([]float32{3, 4})
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if math.Abs(sq-1) > 1e-6 {
		t.Errorf("squared norm = %f, want 1", sq)
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := Normalize(ZeroVector(4))
	if !IsZero(v) {
		t.Errorf("zero vector changed by Normalize: %v", v)
	}
}

func TestIsZero(t *testing.T) {
	if !IsZero(ZeroVector(8)) {
		t.Error("IsZero(ZeroVector) = false")
	}
	if IsZero([]float32{0, 0, 0.001}) {
		t.Error("IsZero = true for non-zero vector")
	}
	if !IsZero(nil) {
		t.Error("IsZero(nil) = false")
	}
}

func TestCosineSimilarity_Clamps(t *testing.T) {
	a := []float32{1, 0}
	opposed := []float32{-1, 0}
	if sim := CosineSimilarity(a, opposed); sim != 0 {
		t.Errorf("opposed similarity = %f, want 0", sim)
	}
	if sim := CosineSimilarity(a, a); math.Abs(sim-1) > 1e-6 {
		t.Errorf("self similarity = %f, want 1", sim)
	}
}

func TestCosineSimilarity_ZeroSentinelScoresZero(t *testing.T) {
	a := Normalize([]float32{0.3, 0.7, 0.1})
	if sim := CosineSimilarity(a, ZeroVector(3)); sim != 0 {
		t.Errorf("similarity against sentinel = %f, want 0", sim)
	}
}
