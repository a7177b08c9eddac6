package services

import "math"

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < len(a); i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// stepToward moves cur a fraction lr toward target, allocating when cur is
// still the zero vector.
func stepToward(cur, target []float32, lr float64) []float32 {
	if len(cur) == 0 {
		cur = make([]float32, len(target))
	}
	if len(cur) != len(target) || lr <= 0 {
		return cur
	}
	out := make([]float32, len(cur))
	for i := range cur {
		out[i] = cur[i] + float32(lr)*(target[i]-cur[i])
	}
	return out
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
