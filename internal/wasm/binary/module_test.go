package binary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/second-state/ssvm-go/internal/leb128"
	"github.com/second-state/ssvm-go/internal/wasm"
)

func u32b(v uint32) []byte { return leb128.EncodeUint32(v) }

func vec(items ...[]byte) []byte {
	out := u32b(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id sectionID, payload []byte) []byte {
	out := []byte{byte(id)}
	out = append(out, u32b(uint32(len(payload)))...)
	return append(out, payload...)
}

func header() []byte {
	return append(append([]byte{}, magic...), version...)
}

// addOneFunctionModule builds the binary for a single function
// "(func (param i32 i32) (result i32) local.get 0 local.get 1 i32.add)"
// exported as "add".
func addOneFunctionModule(t *testing.T) []byte {
	t.Helper()
	funcType := append([]byte{0x60}, concatValueTypeVec(
		[]wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		[]wasm.ValueType{wasm.ValueTypeI32})...)
	typeSec := section(sectionType, vec(funcType))
	funcSec := section(sectionFunction, vec(u32b(0)))
	body := []byte{byte(wasm.OpcodeLocalGet), 0x00, byte(wasm.OpcodeLocalGet), 0x01, byte(wasm.OpcodeI32Add), byte(wasm.OpcodeEnd)}
	codeEntry := append(u32b(0), body...) // 0 local-decl groups
	codeSec := section(sectionCode, vec(append(u32b(uint32(len(codeEntry))), codeEntry...)))
	exportName := []byte("add")
	exportSec := section(sectionExport, vec(append(append(u32b(uint32(len(exportName))), exportName...), byte(wasm.ImportKindFunc), 0x00)))

	out := header()
	out = append(out, typeSec...)
	out = append(out, funcSec...)
	out = append(out, exportSec...)
	out = append(out, codeSec...)
	return out
}

// concatValueTypeVec is a small helper building two length-prefixed
// ValueType vectors back to back, matching decodeFunctionType's expectation
// of params-vec followed by results-vec.
func concatValueTypeVec(params, results []wasm.ValueType) []byte {
	enc := func(vs []wasm.ValueType) []byte {
		out := u32b(uint32(len(vs)))
		for _, v := range vs {
			out = append(out, byte(v))
		}
		return out
	}
	return append(enc(params), enc(results)...)
}

func TestDecodeModule_InvalidMagic(t *testing.T) {
	_, err := DecodeModule([]byte{0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeInvalidMagic, werr.Code)
}

func TestDecodeModule_InvalidVersion(t *testing.T) {
	data := append(append([]byte{}, magic...), 0x02, 0x00, 0x00, 0x00)
	_, err := DecodeModule(data)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeInvalidVersion, werr.Code)
}

func TestDecodeModule_AddFunction(t *testing.T) {
	data := addOneFunctionModule(t)
	m, err := DecodeModule(data)
	require.NoError(t, err)
	require.Len(t, m.TypeSection, 1)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}, m.TypeSection[0].Params)
	assert.Equal(t, []wasm.ValueType{wasm.ValueTypeI32}, m.TypeSection[0].Results)
	require.Len(t, m.CodeSection, 1)
	require.Len(t, m.CodeSection[0].Body, 3)
	assert.Equal(t, wasm.OpcodeI32Add, m.CodeSection[0].Body[2].Opcode)
	require.Len(t, m.ExportSection, 1)
	assert.Equal(t, "add", m.ExportSection[0].Name)
}

func TestDecodeModule_SectionOutOfOrder(t *testing.T) {
	data := header()
	data = append(data, section(sectionFunction, vec())...)
	data = append(data, section(sectionType, vec())...)
	_, err := DecodeModule(data)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeSectionOutOfOrder, werr.Code)
}

func TestDecodeModule_DuplicateSection(t *testing.T) {
	data := header()
	data = append(data, section(sectionType, vec())...)
	data = append(data, section(sectionType, vec())...)
	_, err := DecodeModule(data)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeDuplicateSection, werr.Code)
}

func TestDecodeModule_CustomSectionTolerated(t *testing.T) {
	data := header()
	// A well-formed but unrecognized custom section, interleaved between
	// two ordinary sections, must never trip section-order or size checks.
	customPayload := append(u32b(uint32(len("whatever"))), []byte("whatever")...)
	customPayload = append(customPayload, []byte{0xde, 0xad, 0xbe, 0xef}...)
	data = append(data, section(sectionCustom, customPayload)...)
	data = append(data, section(sectionType, vec())...)
	data = append(data, section(sectionCustom, customPayload)...)
	data = append(data, section(sectionFunction, vec())...)

	m, err := DecodeModule(data)
	require.NoError(t, err)
	assert.Empty(t, m.TypeSection)
	assert.Empty(t, m.FunctionSection)
}

func TestDecodeModule_SectionSizeMismatch(t *testing.T) {
	data := header()
	sec := section(sectionType, vec())
	sec[1] += 5 // lie about the declared payload length
	data = append(data, sec...)
	_, err := DecodeModule(data)
	var werr *wasm.Error
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, wasm.ErrCodeSectionSizeMismatch, werr.Code)
}
