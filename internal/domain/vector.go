package domain

import "math"

// ZeroVector returns the dim-sized zero-information sentinel vector used for
// blank input. It carries no semantic signal: its inner product with any unit
// vector is 0.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize scales v to unit length in place and returns it.
// The zero vector is left unchanged (it stays the blank-input sentinel).
func Normalize(v []float32) []float32 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sq))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// IsZero reports whether v is the blank-input sentinel (all zeros).
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// CosineSimilarity returns the inner product of two unit-normalized vectors
// clamped to [0,1]. Opposed vectors score 0 rather than negative so the value
// composes directly with the other component scores.
func CosineSimilarity(a, b []float32) float64 {
	sim := float64(Dot(a, b))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
