package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addFunctionModule() *Module {
	ft := &FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeI32}, Results: []ValueType{ValueTypeI32}}
	body := []*Instruction{
		{Opcode: OpcodeLocalGet, Imm: LocalImm{Index: 0}},
		{Opcode: OpcodeLocalGet, Imm: LocalImm{Index: 1}},
		{Opcode: OpcodeI32Add},
	}
	return &Module{
		TypeSection:     []*FunctionType{ft},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: body}},
	}
}

func TestValidateModule_AddFunctionOK(t *testing.T) {
	require.NoError(t, ValidateModule(addFunctionModule()))
}

func TestValidateModule_TypeMismatch(t *testing.T) {
	m := addFunctionModule()
	// Drop the second local.get so only one operand reaches i32.add.
	m.CodeSection[0].Body = append(m.CodeSection[0].Body[:1], m.CodeSection[0].Body[2])
	err := ValidateModule(m)
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ErrCodeTypeMismatch, werr.Code)
}

func TestValidateModule_ResultArityMismatch(t *testing.T) {
	m := addFunctionModule()
	// Push an extra i32 after the add so the function leaves two values
	// where its signature promises one.
	m.CodeSection[0].Body = append(m.CodeSection[0].Body, &Instruction{Opcode: OpcodeI32Const, Imm: I32Imm{Value: 1}})
	err := ValidateModule(m)
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ErrCodeTypeMismatch, werr.Code)
}

func TestValidateModule_UnreachablePolymorphicStack(t *testing.T) {
	// unreachable followed by i32.add: the operands i32.add would normally
	// require don't exist, but after unreachable the stack is polymorphic,
	// so validation must still succeed.
	ft := &FunctionType{Results: []ValueType{ValueTypeI32}}
	body := []*Instruction{
		{Opcode: OpcodeUnreachable},
		{Opcode: OpcodeI32Add},
	}
	m := &Module{
		TypeSection:     []*FunctionType{ft},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: body}},
	}
	require.NoError(t, ValidateModule(m))
}

func TestValidateModule_UnknownLocal(t *testing.T) {
	m := addFunctionModule()
	m.CodeSection[0].Body[0] = &Instruction{Opcode: OpcodeLocalGet, Imm: LocalImm{Index: 99}}
	err := ValidateModule(m)
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ErrCodeUnknownLocal, werr.Code)
}

func TestValidateModule_BlockWithResult(t *testing.T) {
	ft := &FunctionType{Results: []ValueType{ValueTypeI32}}
	block := &Instruction{
		Opcode: OpcodeBlock,
		Imm:    BlockImm{Type: BlockType{ValueType: ValueTypeI32}},
		Then:   []*Instruction{{Opcode: OpcodeI32Const, Imm: I32Imm{Value: 42}}},
	}
	m := &Module{
		TypeSection:     []*FunctionType{ft},
		FunctionSection: []Index{0},
		CodeSection:     []*Code{{Body: []*Instruction{block}}},
	}
	require.NoError(t, ValidateModule(m))
}

func TestValidateModule_StartFunctionMustHaveNoParamsOrResults(t *testing.T) {
	m := addFunctionModule()
	startIdx := Index(0)
	m.StartSection = &startIdx
	err := ValidateModule(m)
	require.Error(t, err)
	var werr *Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, ErrCodeStartFunctionSignature, werr.Code)
}
