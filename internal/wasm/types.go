// Package wasm holds the decoded representation of a WebAssembly module: the
// AST produced by the decoder, the value and type system it is built from,
// and the address-based store that instantiated modules live in.
package wasm

import "fmt"

// Index is a 0-based index into one of a module's index spaces (types,
// functions, tables, memories, globals). The MVP binary format encodes every
// index as an unsigned LEB128, so this is a plain uint32 rather than a
// pointer into anything.
type Index = uint32

// ValueType is one of the four MVP value types. It is encoded as a single
// byte matching its binary opcode.
type ValueType byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	default:
		return fmt.Sprintf("unknown(0x%x)", byte(v))
	}
}

// RefType identifies a table's element type. The MVP only has funcref;
// it is kept as its own type rather than folded into ValueType because the
// two byte ranges never overlap and future reference-type proposals extend
// this independently of ValueType.
type RefType byte

const RefTypeFuncref RefType = 0x70

// FunctionType is a function signature: zero or more parameter types and,
// in the MVP, at most one result type. Results is still a slice rather than
// an optional single ValueType so that the type stays representable if a
// future multi-value extension needs it; the binary decoder is what actually
// enforces the one-result limit (ValidateModule does not check it), not this
// type.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

func (f *FunctionType) String() string {
	return fmt.Sprintf("%v -> %v", f.Params, f.Results)
}

// Limits bounds a table or memory's size, in table elements or 64KiB pages
// respectively. Max is nil when the module declares no upper bound.
type Limits struct {
	Min uint32
	Max *uint32
}

// TableType is a table's element type plus its size limits. The MVP allows
// at most one table per module, always of funcref.
type TableType struct {
	ElemType RefType
	Limits   Limits
}

// MemoryType is a linear memory's size limits, in pages.
type MemoryType struct {
	Limits Limits
}

// GlobalType is a global variable's value type and mutability.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// MemoryPageSize is the fixed size of one linear memory page.
const MemoryPageSize = 65536

// MaxMemoryPages is the Wasm 1.0 hard ceiling on memory size: 2^16 pages,
// i.e. a 4GiB address space addressable by a 32-bit offset. A module that
// declares no explicit memory.max is clamped to this, not left unbounded.
const MaxMemoryPages = 65536

// ImportKind tags which index space an Import or Export refers to.
type ImportKind byte

const (
	ImportKindFunc ImportKind = iota
	ImportKindTable
	ImportKindMemory
	ImportKindGlobal
)

func (k ImportKind) String() string {
	switch k {
	case ImportKindFunc:
		return "func"
	case ImportKindTable:
		return "table"
	case ImportKindMemory:
		return "memory"
	case ImportKindGlobal:
		return "global"
	default:
		return "unknown"
	}
}
