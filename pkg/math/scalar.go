package math

// Lerp linearly interpolates between a and b.
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CeilDiv returns ceil(n/d) for non-negative n and positive d.
func CeilDiv(n, d int) int {
	return (n + d - 1) / d
}

// RoundUp rounds n up to the next multiple of d. Zero stays zero.
func RoundUp(n, d int) int {
	return CeilDiv(n, d) * d
}
