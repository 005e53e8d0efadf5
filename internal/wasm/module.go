package wasm

// Module is the fully decoded AST root produced by the binary decoder. Every
// section is optional; a nil or empty slice means the section was absent.
// Index spaces are the concatenation of imports followed by module-defined
// entries, in section order, per the binary format.
type Module struct {
	TypeSection []*FunctionType

	ImportSection []*Import
	// ImportFuncCount, ImportTableCount etc. let the validator and store
	// tell "imported" indices (below the count) from "locally defined"
	// ones (at or above it) without re-scanning ImportSection.
	ImportFuncCount   uint32
	ImportTableCount  uint32
	ImportMemoryCount uint32
	ImportGlobalCount uint32

	FunctionSection []Index // index into TypeSection, one per locally defined function
	TableSection    []*TableType
	MemorySection   []*MemoryType
	GlobalSection   []*Global
	ExportSection   []*Export
	StartSection    *Index
	ElementSection  []*ElementSegment
	CodeSection     []*Code
	DataSection     []*DataSegment

	// NameSection is preserved verbatim from the custom "name" section
	// when present, used only for diagnostics.
	NameSection *NameSection
}

// Import describes one entry of the import section. Exactly one of
// DescFunc/DescTable/DescMemory/DescGlobal is meaningful, selected by Kind.
type Import struct {
	Module string
	Name   string
	Kind   ImportKind

	DescFunc   Index // TypeSection index
	DescTable  *TableType
	DescMemory *MemoryType
	DescGlobal *GlobalType
}

// Export describes one entry of the export section.
type Export struct {
	Name  string
	Kind  ImportKind
	Index Index
}

// Global is a single entry of the global section: its type plus the
// constant expression that initializes it.
type Global struct {
	Type *GlobalType
	Init *ConstantExpression
}

// ConstantExpression is the restricted instruction sequence the binary
// format allows for global initializers and segment offsets: a single
// i32.const/i64.const/f32.const/f64.const/global.get followed by end. It is
// modeled as a single opcode plus its raw immediate bytes rather than a full
// body because the validator never needs to walk a nested structure here.
type ConstantExpression struct {
	Opcode Opcode
	Data   []byte // raw immediate bytes, re-decoded by the interpreter
}

// ElementMode distinguishes the three forms the bulk-memory proposal added
// to the element section; the MVP only ever produces ElementModeActive, but
// the field exists so the decoder's switch is exhaustive and future-proof
// rather than silently mis-tagging.
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementSegment is one entry of the element section: a vector of function
// indices to be copied into a table at instantiation time.
type ElementSegment struct {
	TableIndex Index
	OffsetExpr *ConstantExpression
	Init       []Index
	Mode       ElementMode
}

// DataSegment is one entry of the data section: raw bytes to be copied into
// a memory at instantiation time. The MVP requires MemoryIndex == 0.
type DataSegment struct {
	MemoryIndex Index
	OffsetExpr  *ConstantExpression
	Init        []byte
}

// Code is one entry of the code section: a function body, decoded.
type Code struct {
	LocalTypes []ValueType // expanded, one entry per local (not run-length encoded)
	Body       []*Instruction
}

// NameSection holds the subset of the custom "name" section this runtime
// understands: the module name and function names, used only to make trap
// messages and CLI output more readable.
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
}

// TypeOfFunction resolves a function index (imported or local) to its
// signature.
func (m *Module) TypeOfFunction(funcIdx Index) *FunctionType {
	if funcIdx < m.ImportFuncCount {
		var i uint32
		for _, imp := range m.ImportSection {
			if imp.Kind != ImportKindFunc {
				continue
			}
			if i == funcIdx {
				return m.TypeSection[imp.DescFunc]
			}
			i++
		}
		return nil
	}
	localIdx := funcIdx - m.ImportFuncCount
	if int(localIdx) >= len(m.FunctionSection) {
		return nil
	}
	return m.TypeSection[m.FunctionSection[localIdx]]
}

// FunctionCount returns the size of the function index space: imports plus
// locally defined functions.
func (m *Module) FunctionCount() uint32 {
	return m.ImportFuncCount + uint32(len(m.FunctionSection))
}
