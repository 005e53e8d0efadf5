package moremath

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWasmCompatMin(t *testing.T) {
	assert.True(t, math.IsNaN(WasmCompatMin(math.NaN(), math.Inf(-1))))
	assert.True(t, math.IsNaN(WasmCompatMin(math.Inf(1), math.NaN())))
	assert.Equal(t, math.Inf(-1), WasmCompatMin(math.Inf(-1), 5))
	assert.True(t, math.Signbit(WasmCompatMin(0, math.Copysign(0, -1))))
	assert.Equal(t, 1.0, WasmCompatMin(1, 2))
}

func TestWasmCompatMax(t *testing.T) {
	assert.True(t, math.IsNaN(WasmCompatMax(math.NaN(), math.Inf(1))))
	assert.Equal(t, math.Inf(1), WasmCompatMax(math.Inf(1), 5))
	assert.False(t, math.Signbit(WasmCompatMax(0, math.Copysign(0, -1))))
	assert.Equal(t, 2.0, WasmCompatMax(1, 2))
}
