package wasm

import (
	"bytes"
	"encoding/binary"
)

// compiledMagic identifies a pre-compiled module artifact (the ".so format"
// in the external interface): a small self-describing header wrapping an
// embedded Wasm binary plus a symbol table. This runtime does not generate
// native code for these artifacts (that is the AOT path this module
// explicitly does not implement), and no decode/validate result is stored:
// loading an artifact decodes and validates its payload again.
var compiledMagic = []byte("ssvmc\x00")

// CompiledModuleVersion is compared against a compiled artifact's header;
// a mismatch means the artifact was produced by an incompatible build and
// must be rejected rather than misread.
const CompiledModuleVersion = "ssvm-go/1"

var errInvalidCompiledHeader = NewError(ErrCodeInvalidMagic, "compiled module header")

// CompiledModule is a decoded artifact produced by EncodeCompiledModule:
// the version string it was tagged with, the original Wasm payload, and a
// symbol table mapping names (e.g. "ctor") to export names, mirroring the
// upstream loader's getVersion()/getWasm()/getRawSymbol(name) accessors.
type CompiledModule struct {
	Version string
	Wasm    []byte
	Symbols map[string]string
}

// DecodeCompiledModule parses the ".so" artifact format: a magic, a
// length-prefixed version string, a length-prefixed Wasm payload, and a
// count-prefixed symbol table of length-prefixed name/value pairs.
func DecodeCompiledModule(data []byte) (*CompiledModule, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, len(compiledMagic))
	if _, err := r.Read(magic); err != nil || !bytes.Equal(magic, compiledMagic) {
		return nil, errInvalidCompiledHeader
	}
	version, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	if string(version) != CompiledModuleVersion {
		return nil, NewError(ErrCodeInvalidVersion, string(version))
	}
	wasmBytes, err := readLenPrefixed(r)
	if err != nil {
		return nil, err
	}
	var symCount uint32
	if err := binary.Read(r, binary.LittleEndian, &symCount); err != nil {
		return nil, NewError(ErrCodeReadError, err.Error())
	}
	symbols := make(map[string]string, symCount)
	for i := uint32(0); i < symCount; i++ {
		k, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		v, err := readLenPrefixed(r)
		if err != nil {
			return nil, err
		}
		symbols[string(k)] = string(v)
	}
	return &CompiledModule{Version: string(version), Wasm: wasmBytes, Symbols: symbols}, nil
}

// EncodeCompiledModule serializes cm's Wasm payload and symbols into the
// ".so" artifact format, tagged with CompiledModuleVersion; cm.Version is
// not written.
func EncodeCompiledModule(cm *CompiledModule) []byte {
	var buf bytes.Buffer
	buf.Write(compiledMagic)
	writeLenPrefixed(&buf, []byte(CompiledModuleVersion))
	writeLenPrefixed(&buf, cm.Wasm)
	binary.Write(&buf, binary.LittleEndian, uint32(len(cm.Symbols)))
	for k, v := range cm.Symbols {
		writeLenPrefixed(&buf, []byte(k))
		writeLenPrefixed(&buf, []byte(v))
	}
	return buf.Bytes()
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, NewError(ErrCodeReadError, err.Error())
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, NewError(ErrCodeUnexpectedEnd, err.Error())
	}
	return b, nil
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	binary.Write(buf, binary.LittleEndian, uint32(len(b)))
	buf.Write(b)
}
