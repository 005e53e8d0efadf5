package interpreter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/second-state/ssvm-go/internal/wasm"
)

// truncModule builds a single-function module that pushes a constant of the
// given source type and applies op to it, returning whatever op leaves on
// the stack (an i32 or i64 depending on op).
func truncModule(op wasm.Opcode, resultType wasm.ValueType, f32 bool, v float64) *wasm.Module {
	var constInstr *wasm.Instruction
	if f32 {
		constInstr = &wasm.Instruction{Opcode: wasm.OpcodeF32Const, Imm: wasm.F32Imm{Value: float32(v)}}
	} else {
		constInstr = &wasm.Instruction{Opcode: wasm.OpcodeF64Const, Imm: wasm.F64Imm{Value: v}}
	}
	ft := &wasm.FunctionType{Results: []wasm.ValueType{resultType}}
	body := []*wasm.Instruction{constInstr, {Opcode: op}}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: body}},
		ExportSection:   []*wasm.Export{{Name: "run", Kind: wasm.ImportKindFunc, Index: 0}},
	}
}

func runTrunc(t *testing.T, op wasm.Opcode, resultType wasm.ValueType, f32 bool, v float64) ([]uint64, error) {
	t.Helper()
	store := wasm.NewStore()
	mi, err := Instantiate(store, "", truncModule(op, resultType, f32, v))
	require.NoError(t, err)
	engine := NewEngine(store)
	return engine.Invoke(mi.Funcs[mi.Exports["run"].Index], nil)
}

func u32Bits(v int32) uint64 {
	return uint64(uint32(v))
}

func u64Bits(v int64) uint64 {
	return uint64(v)
}

func TestTrunc_SignedBoundariesDoNotTrap(t *testing.T) {
	cases := []struct {
		name       string
		op         wasm.Opcode
		resultType wasm.ValueType
		f32        bool
		v          float64
		want       uint64
	}{
		{"i32.trunc_f32_s at i32 min", wasm.OpcodeI32TruncF32S, wasm.ValueTypeI32, true, -2147483648, u32Bits(math.MinInt32)},
		{"i32.trunc_f64_s at i32 min", wasm.OpcodeI32TruncF64S, wasm.ValueTypeI32, false, -2147483648, u32Bits(math.MinInt32)},
		{"i64.trunc_f32_s at i64 min", wasm.OpcodeI64TruncF32S, wasm.ValueTypeI64, true, -9223372036854775808, u64Bits(math.MinInt64)},
		{"i64.trunc_f64_s at i64 min", wasm.OpcodeI64TruncF64S, wasm.ValueTypeI64, false, -9223372036854775808, u64Bits(math.MinInt64)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			results, err := runTrunc(t, c.op, c.resultType, c.f32, c.v)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, c.want, results[0])
		})
	}
}

func TestTrunc_SignedJustBelowMinTraps(t *testing.T) {
	cases := []struct {
		name       string
		op         wasm.Opcode
		resultType wasm.ValueType
		f32        bool
		v          float64
	}{
		{"i32.trunc_f32_s below i32 min", wasm.OpcodeI32TruncF32S, wasm.ValueTypeI32, true, -2147483904},
		{"i32.trunc_f64_s below i32 min", wasm.OpcodeI32TruncF64S, wasm.ValueTypeI32, false, -2147483649},
		{"i64.trunc_f32_s below i64 min", wasm.OpcodeI64TruncF32S, wasm.ValueTypeI64, true, -9224471548482403584},
		{"i64.trunc_f64_s below i64 min", wasm.OpcodeI64TruncF64S, wasm.ValueTypeI64, false, -9223372036854777856},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := runTrunc(t, c.op, c.resultType, c.f32, c.v)
			require.Error(t, err)
			var werr *wasm.Error
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, wasm.ErrCodeTrapIntegerOverflow, werr.Code)
		})
	}
}

func TestTrunc_UnsignedLowerBoundary(t *testing.T) {
	// 0 is the smallest valid unsigned result; it must not trap.
	results, err := runTrunc(t, wasm.OpcodeI32TruncF32U, wasm.ValueTypeI32, true, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), results[0])

	// Anything at or below -1 (the unsigned sentinel) must trap; values
	// between -1 and 0 truncate to 0 and do not.
	_, err = runTrunc(t, wasm.OpcodeI32TruncF32U, wasm.ValueTypeI32, true, -1)
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeTrapIntegerOverflow, werr.Code)
}

func TestTrunc_UnsignedUpperBoundary(t *testing.T) {
	results, err := runTrunc(t, wasm.OpcodeI64TruncF64U, wasm.ValueTypeI64, false, 18446744073709549568)
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709549568), results[0])

	_, err = runTrunc(t, wasm.OpcodeI64TruncF64U, wasm.ValueTypeI64, false, 18446744073709551616)
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeTrapIntegerOverflow, werr.Code)
}

func TestTrunc_NaNTraps(t *testing.T) {
	for _, op := range []wasm.Opcode{
		wasm.OpcodeI32TruncF32S, wasm.OpcodeI32TruncF32U,
		wasm.OpcodeI32TruncF64S, wasm.OpcodeI32TruncF64U,
		wasm.OpcodeI64TruncF32S, wasm.OpcodeI64TruncF32U,
		wasm.OpcodeI64TruncF64S, wasm.OpcodeI64TruncF64U,
	} {
		f32 := op == wasm.OpcodeI32TruncF32S || op == wasm.OpcodeI32TruncF32U || op == wasm.OpcodeI64TruncF32S || op == wasm.OpcodeI64TruncF32U
		resultType := wasm.ValueTypeI32
		if op == wasm.OpcodeI64TruncF32S || op == wasm.OpcodeI64TruncF32U || op == wasm.OpcodeI64TruncF64S || op == wasm.OpcodeI64TruncF64U {
			resultType = wasm.ValueTypeI64
		}
		t.Run(wasm.InstructionName(op), func(t *testing.T) {
			_, err := runTrunc(t, op, resultType, f32, math.NaN())
			require.Error(t, err)
			var werr *wasm.Error
			require.ErrorAs(t, err, &werr)
			assert.Equal(t, wasm.ErrCodeTrapInvalidConversionToInteger, werr.Code)
		})
	}
}
