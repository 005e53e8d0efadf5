package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/second-state/ssvm-go/internal/leb128"
	"github.com/second-state/ssvm-go/internal/wasm"
)

func i32ConstExpr(v int32) *wasm.ConstantExpression {
	return &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(v)}
}

func addModule() *wasm.Module {
	ft := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []*wasm.Instruction{
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 1}},
		{Opcode: wasm.OpcodeI32Add},
	}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: body}},
		ExportSection:   []*wasm.Export{{Name: "add", Kind: wasm.ImportKindFunc, Index: 0}},
	}
}

func TestInstantiateAndInvoke_Add(t *testing.T) {
	store := wasm.NewStore()
	mi, err := Instantiate(store, "math", addModule())
	require.NoError(t, err)

	engine := NewEngine(store)
	exp := mi.Exports["add"]
	results, err := engine.Invoke(mi.Funcs[exp.Index], []uint64{2, 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(5), uint32(results[0]))
}

// loopSumModule sums 1..5 with a loop and returns 15 via a single result
// local, exercising br_if targeting the loop's own start.
func loopSumModule() *wasm.Module {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	loopBody := []*wasm.Instruction{
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 1}},
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeI32Add},
		{Opcode: wasm.OpcodeLocalSet, Imm: wasm.LocalImm{Index: 1}},
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 1}},
		{Opcode: wasm.OpcodeI32Add},
		{Opcode: wasm.OpcodeLocalSet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 6}},
		{Opcode: wasm.OpcodeI32LtS},
		{Opcode: wasm.OpcodeBrIf, Imm: wasm.BrImm{Depth: 0}},
	}
	body := []*wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 1}},
		{Opcode: wasm.OpcodeLocalSet, Imm: wasm.LocalImm{Index: 0}},
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpcodeLocalSet, Imm: wasm.LocalImm{Index: 1}},
		{Opcode: wasm.OpcodeLoop, Imm: wasm.BlockImm{Type: wasm.BlockType{Empty: true}}, Then: loopBody},
		{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 1}},
	}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{LocalTypes: []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, Body: body}},
		ExportSection:   []*wasm.Export{{Name: "sum", Kind: wasm.ImportKindFunc, Index: 0}},
	}
}

func TestInstantiateAndInvoke_LoopSum(t *testing.T) {
	store := wasm.NewStore()
	mi, err := Instantiate(store, "", loopSumModule())
	require.NoError(t, err)

	engine := NewEngine(store)
	results, err := engine.Invoke(mi.Funcs[mi.Exports["sum"].Index], nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint32(15), uint32(results[0]))
}

func TestInstantiate_ImportResolutionAndDuplicateName(t *testing.T) {
	store := wasm.NewStore()

	doubleType := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	hostAddr := store.ImportFunction(&wasm.FunctionInstance{
		Type: doubleType,
		Host: &wasm.HostFunction{Type: doubleType, Func: func(ctx *wasm.ExecContext, args []uint64) ([]uint64, error) {
			return []uint64{args[0] * 2}, nil
		}},
	})
	env := &wasm.ModuleInstance{
		Name:    "env",
		Funcs:   []wasm.FuncAddr{hostAddr},
		Exports: map[string]*wasm.Export{"double": {Name: "double", Kind: wasm.ImportKindFunc, Index: 0}},
	}
	require.NoError(t, store.RegisterModuleInstance("env", env))

	consumer := &wasm.Module{
		TypeSection: []*wasm.FunctionType{doubleType},
		ImportSection: []*wasm.Import{
			{Module: "env", Name: "double", Kind: wasm.ImportKindFunc, DescFunc: 0},
		},
		ImportFuncCount: 1,
		FunctionSection: []wasm.Index{0},
		CodeSection: []*wasm.Code{{Body: []*wasm.Instruction{
			{Opcode: wasm.OpcodeLocalGet, Imm: wasm.LocalImm{Index: 0}},
			{Opcode: wasm.OpcodeCall, Imm: wasm.CallImm{FuncIndex: 0}},
		}}},
		ExportSection: []*wasm.Export{{Name: "callDouble", Kind: wasm.ImportKindFunc, Index: 1}},
	}

	mi, err := Instantiate(store, "consumer", consumer)
	require.NoError(t, err)

	engine := NewEngine(store)
	results, err := engine.Invoke(mi.Funcs[mi.Exports["callDouble"].Index], []uint64{21})
	require.NoError(t, err)
	assert.Equal(t, uint32(42), uint32(results[0]))

	_, err = Instantiate(store, "env", &wasm.Module{})
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeDuplicateModuleName, werr.Code)
}

func TestInstantiate_UnknownImport(t *testing.T) {
	store := wasm.NewStore()
	m := &wasm.Module{
		TypeSection: []*wasm.FunctionType{{}},
		ImportSection: []*wasm.Import{
			{Module: "env", Name: "missing", Kind: wasm.ImportKindFunc, DescFunc: 0},
		},
		ImportFuncCount: 1,
	}
	_, err := Instantiate(store, "", m)
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeUnknownImport, werr.Code)
}

func TestInstantiate_ElementSegmentOutOfBoundsRollsBack(t *testing.T) {
	store := wasm.NewStore()
	funcsBefore := len(store.Functions)
	tablesBefore := len(store.Tables)

	ft := &wasm.FunctionType{}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: nil}},
		TableSection:    []*wasm.TableType{{ElemType: wasm.RefTypeFuncref, Limits: wasm.Limits{Min: 1}}},
		ElementSection: []*wasm.ElementSegment{
			{TableIndex: 0, OffsetExpr: i32ConstExpr(5), Init: []wasm.Index{0}},
		},
	}
	_, err := Instantiate(store, "", m)
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeElementSegmentOutOfBounds, werr.Code)
	assert.Equal(t, funcsBefore, len(store.Functions), "failed instantiation must not leak allocations")
	assert.Equal(t, tablesBefore, len(store.Tables))
}

func memoryLoadModule(offset int32) *wasm.Module {
	ft := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	body := []*wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: offset}},
		{Opcode: wasm.OpcodeI32Load, Imm: wasm.MemArgImm{Offset: 0}},
	}
	return &wasm.Module{
		TypeSection:     []*wasm.FunctionType{ft},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: body}},
		MemorySection:   []*wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		ExportSection:   []*wasm.Export{{Name: "load", Kind: wasm.ImportKindFunc, Index: 0}},
	}
}

func TestInvoke_MemoryOutOfBoundsTraps(t *testing.T) {
	store := wasm.NewStore()
	mi, err := Instantiate(store, "", memoryLoadModule(1_000_000))
	require.NoError(t, err)

	engine := NewEngine(store)
	_, err = engine.Invoke(mi.Funcs[mi.Exports["load"].Index], nil)
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeTrapOutOfBoundsMemoryAccess, werr.Code)
}

func TestInvoke_IndirectCallTypeMismatchTraps(t *testing.T) {
	noopType := &wasm.FunctionType{}
	runType := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	runBody := []*wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpcodeCallIndirect, Imm: wasm.CallIndirectImm{TypeIndex: 1, TableIndex: 0}},
	}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{noopType, runType},
		FunctionSection: []wasm.Index{0, 1},
		CodeSection: []*wasm.Code{
			{Body: nil},
			{Body: runBody},
		},
		TableSection: []*wasm.TableType{{ElemType: wasm.RefTypeFuncref, Limits: wasm.Limits{Min: 1}}},
		ElementSection: []*wasm.ElementSegment{
			{TableIndex: 0, OffsetExpr: i32ConstExpr(0), Init: []wasm.Index{0}},
		},
		ExportSection: []*wasm.Export{{Name: "run", Kind: wasm.ImportKindFunc, Index: 1}},
	}

	store := wasm.NewStore()
	mi, err := Instantiate(store, "", m)
	require.NoError(t, err)

	engine := NewEngine(store)
	_, err = engine.Invoke(mi.Funcs[mi.Exports["run"].Index], nil)
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeTrapIndirectCallTypeMismatch, werr.Code)
}

func TestInvoke_IndirectCallUninitializedElementTraps(t *testing.T) {
	runType := &wasm.FunctionType{}
	runBody := []*wasm.Instruction{
		{Opcode: wasm.OpcodeI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpcodeCallIndirect, Imm: wasm.CallIndirectImm{TypeIndex: 0, TableIndex: 0}},
	}
	m := &wasm.Module{
		TypeSection:     []*wasm.FunctionType{runType},
		FunctionSection: []wasm.Index{0},
		CodeSection:     []*wasm.Code{{Body: runBody}},
		TableSection:    []*wasm.TableType{{ElemType: wasm.RefTypeFuncref, Limits: wasm.Limits{Min: 1}}},
		ExportSection:   []*wasm.Export{{Name: "run", Kind: wasm.ImportKindFunc, Index: 0}},
	}
	store := wasm.NewStore()
	mi, err := Instantiate(store, "", m)
	require.NoError(t, err)

	engine := NewEngine(store)
	_, err = engine.Invoke(mi.Funcs[mi.Exports["run"].Index], nil)
	require.Error(t, err)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeTrapUninitializedElement, werr.Code)
}
