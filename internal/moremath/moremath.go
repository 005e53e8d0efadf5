// Package moremath holds floating-point helpers the standard math package
// doesn't provide with Wasm-compatible semantics, notably min/max's signed
// zero and NaN propagation rules.
package moremath

import "math"

// WasmCompatMin mirrors math.Min except both signed zero and NaN follow the
// Wasm spec: min(-0, 0) is -0, and either argument being NaN yields NaN even
// when the other is -Inf (math.Min treats NaN as larger than -Inf there).
func WasmCompatMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, -1) || math.IsInf(y, -1):
		return math.Inf(-1)
	case x == 0 && x == y:
		if math.Signbit(x) {
			return x
		}
		return y
	}
	if x < y {
		return x
	}
	return y
}

// WasmCompatMax mirrors math.Max with the same Wasm signed-zero/NaN fix as
// WasmCompatMin.
func WasmCompatMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x) || math.IsNaN(y):
		return math.NaN()
	case math.IsInf(x, 1) || math.IsInf(y, 1):
		return math.Inf(1)

	case x == 0 && x == y:
		if math.Signbit(x) {
			return y
		}
		return x
	}
	if x > y {
		return x
	}
	return y
}
