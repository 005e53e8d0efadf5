package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/second-state/ssvm-go/internal/wasm"
)

// addModule builds "(func (param i32 i32) (result i32) local.get 0
// local.get 1 i32.add)" exported as "add", without going through the
// binary decoder.
func addModule() *Module {
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

func TestRuntime_RegisterAndInvoke(t *testing.T) {
	r := NewRuntime()
	inst, err := r.RegisterModule("math", addModule())
	require.NoError(t, err)

	results, err := r.Invoke(inst, "add", 2, 3)
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, results)
}

func TestRuntime_InstantiateModuleAnonymousNotImportable(t *testing.T) {
	r := NewRuntime()
	inst, err := r.InstantiateModule(addModule())
	require.NoError(t, err)

	results, err := r.Invoke(inst, "add", 10, 20)
	require.NoError(t, err)
	require.Equal(t, []uint64{30}, results)

	_, ok := r.store.FindModule("")
	require.False(t, ok)
}

func TestRuntime_ImportObjectHostFunction(t *testing.T) {
	r := NewRuntime()
	env := NewImportObject("env")
	env.AddFunction("double", &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		func(ctx *wasm.ExecContext, args []uint64) ([]uint64, error) {
			return []uint64{args[0] * 2}, nil
		})
	_, err := r.RegisterImportObject(env)
	require.NoError(t, err)

	ft := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}}
	consumer := &wasm.Module{
		TypeSection: []*wasm.FunctionType{ft},
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

	inst, err := r.RegisterModule("consumer", consumer)
	require.NoError(t, err)

	results, err := r.Invoke(inst, "callDouble", 21)
	require.NoError(t, err)
	require.Equal(t, []uint64{42}, results)
}

func TestRuntime_ParseModule_InvalidBinaryRejected(t *testing.T) {
	_, err := ParseModule([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)
}

func TestSaveAndLoadCompiledModule(t *testing.T) {
	// addModule is hand-built rather than decoded from bytes, so round-trip
	// the compiled-artifact wrapper against a minimal, independently valid
	// binary instead: an empty module is a legal (if useless) Wasm module.
	empty := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	data := SaveCompiledModule(empty, map[string]string{"ctor": "_start"})

	m, err := LoadCompiledModule(data)
	require.NoError(t, err)
	require.Empty(t, m.TypeSection)
}
