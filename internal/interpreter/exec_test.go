package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/second-state/ssvm-go/internal/wasm"
)

// branchArityModule builds:
//
//	(func (result i32)
//	  (block (result i32)
//	    (block
//	      i32.const 1
//	      i32.const 2
//	      br 1)))
//
// The inner block has no declared result, so its br unconditionally targets
// the outer (result i32) block. Only the top value at the time of the branch
// (2) belongs to that block's arity; the 1 pushed earlier must be discarded.
func branchArityModule() *wasm.Module {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	inner := &wasm.Instruction{
		Opcode: wasm.OpcodeBlock,
		Imm:    wasm.BlockImm{Type: wasm.BlockType{Empty: true}},
		Then: []*wasm.Instruction{
			{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 1}},
			{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 2}},
			{Opcode: wasm.OpcodeBr, Imm: wasm.BrImm{Depth: 1}},
		},
	}
	outer := &wasm.Instruction{
		Opcode: wasm.OpcodeBlock,
		Imm:    wasm.BlockImm{Type: wasm.BlockType{ValueType: wasm.ValueTypeI32}},
		Then:   []*wasm.Instruction{inner},
	}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: []*wasm.Instruction{outer}}},
		ExportSection:   []*wasm.Export{{Name: "run", Kind: wasm.ImportKindFunc, Index: 0}},
	}
}

func TestInvoke_BranchTruncatesToLabelArity(t *testing.T) {
	store := wasm.NewStore()
	mi, err := Instantiate(store, "", branchArityModule())
	require.NoError(t, err)

	engine := NewEngine(store)
	results, err := engine.Invoke(mi.Funcs[mi.Exports["run"].Index], nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(2), uint32(results[0]))
}

// ifBranchArityModule builds:
//
//	(func (result i32)
//	  (block (result i32)
//	    i32.const 9
//	    (if (result i32) (i32.const 1)
//	      (then i32.const 1 i32.const 2 br 1)
//	      (else i32.const 0))))
//
// exercising the same stack-discipline requirement through OpcodeIf's taken
// branch, with an extra value (9) pushed in the outer block below the if to
// show the truncation reaches back to the outer block's base height, not
// just past the if's own two pushed values.
func ifBranchArityModule() *wasm.Module {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	ifInstr := &wasm.Instruction{
		Opcode: wasm.OpcodeIf,
		Imm:    wasm.BlockImm{Type: wasm.BlockType{ValueType: wasm.ValueTypeI32}},
		Then: []*wasm.Instruction{
			{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 1}},
			{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 2}},
			{Opcode: wasm.OpcodeBr, Imm: wasm.BrImm{Depth: 1}},
		},
		Else: []*wasm.Instruction{
			{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 0}},
		},
	}
	outer := &wasm.Instruction{
		Opcode: wasm.OpcodeBlock,
		Imm:    wasm.BlockImm{Type: wasm.BlockType{ValueType: wasm.ValueTypeI32}},
		Then: []*wasm.Instruction{
			{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 9}},
			{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 1}},
			ifInstr,
		},
	}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: []*wasm.Instruction{outer}}},
		ExportSection:   []*wasm.Export{{Name: "run", Kind: wasm.ImportKindFunc, Index: 0}},
	}
}

func TestInvoke_IfBranchTruncatesToLabelArity(t *testing.T) {
	store := wasm.NewStore()
	mi, err := Instantiate(store, "", ifBranchArityModule())
	require.NoError(t, err)

	engine := NewEngine(store)
	results, err := engine.Invoke(mi.Funcs[mi.Exports["run"].Index], nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(2), uint32(results[0]))
}

// loopBrZeroDropsIterationValues builds a loop whose body pushes two values
// before branching back to its own start (depth 0), verifying the restarted
// iteration begins from the loop's entry height rather than accumulating
// whatever the abandoned iteration left behind.
func loopBrZeroDropsIterationValues() *wasm.Module {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	loopBody := []*wasm.Instruction{
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 1}},
		{Opcode: wasm.OpcodeI32Add},
		{Opcode: wasm.OpcodeLocalSet, Imm: wasm.LocalImm{Index: 0}},
		// Leave two stale values on the stack before deciding whether to
		// loop again; a correct loop restart must discard both.
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 100}},
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 200}},
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 3}},
		{Opcode: wasm.OpcodeI32LtS},
		{Opcode: wasm.OpcodeBrIf, Imm: wasm.BrImm{Depth: 0}},
		// Both stale values must be gone by the time control falls through,
		// leaving only whatever this tail itself pushes.
		{Opcode: wasm.OpcodeDrop},
		{Opcode: wasm.OpcodeDrop},
	}
	body := []*wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpcodeLocalSet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeLoop, Imm: wasm.BlockImm{Type: wasm.BlockType{Empty: true}}, Then: loopBody},
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
	}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{LocalTypes: []wasm.ValueType{wasm.ValueTypeI32}, Body: body}},
		ExportSection:   []*wasm.Export{{Name: "run", Kind: wasm.ImportKindFunc, Index: 0}},
	}
}

func TestInvoke_LoopRestartTruncatesStaleValues(t *testing.T) {
	store := wasm.NewStore()
	mi, err := Instantiate(store, "", loopBrZeroDropsIterationValues())
	require.NoError(t, err)

	engine := NewEngine(store)
	results, err := engine.Invoke(mi.Funcs[mi.Exports["run"].Index], nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(3), uint32(results[0]))
}
