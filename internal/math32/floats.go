// Package math32 provides the float32 vector kernels used by similarity search.
// This is an internal package; callers go through the dictionary package.
package math32

import "math"

// Dot calculates the dot product of two vectors of equal length.
func Dot(a, b []float32) float32 {
	b = b[:len(a)]
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(a); i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < len(a); i++ {
		s0 += a[i] * b[i]
	}
	return s0 + s1 + s2 + s3
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}

// AxpyInPlace computes dst += alpha * x.
func AxpyInPlace(dst []float32, alpha float32, x []float32) {
	x = x[:len(dst)]
	for i := range dst {
		dst[i] += alpha * x[i]
	}
}

// Norm returns the L2 norm of a.
func Norm(a []float32) float32 {
	return float32(math.Sqrt(float64(Dot(a, a))))
}

// NormalizeInto writes the L2-normalized copy of src into dst and reports
// whether src had a non-zero norm. Zero rows are written as zeros so they
// score 0 against every query instead of NaN.
func NormalizeInto(dst, src []float32) bool {
	n := Norm(src)
	if n == 0 || math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
		clear(dst[:len(src)])
		return false
	}
	inv := 1 / n
	for i, v := range src {
		dst[i] = v * inv
	}
	return true
}
