package binary

import (
	"bytes"

	"github.com/second-state/ssvm-go/internal/wasm"
)

var magic = []byte{0x00, 0x61, 0x73, 0x6d}
var version = []byte{0x01, 0x00, 0x00, 0x00}

type sectionID byte

const (
	sectionCustom sectionID = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
)

// DecodeModule parses a complete Wasm binary into a Module AST. Section
// order is enforced strictly (every section 1-11 may appear at most once,
// in ascending ID order; custom sections may appear anywhere and any number
// of times and are otherwise ignored) per the binary format's own rule and
// this runtime's resolution of the "reject duplicate/out-of-order sections"
// design question.
func DecodeModule(data []byte) (*wasm.Module, error) {
	b := NewByteSource(data)
	gotMagic, err := b.readBytes(4)
	if err != nil || !bytes.Equal(gotMagic, magic) {
		return nil, wasm.NewError(wasm.ErrCodeInvalidMagic, "")
	}
	gotVersion, err := b.readBytes(4)
	if err != nil || !bytes.Equal(gotVersion, version) {
		return nil, wasm.NewError(wasm.ErrCodeInvalidVersion, "")
	}

	m := &wasm.Module{}
	var lastID sectionID = sectionCustom
	seen := map[sectionID]bool{}

	for b.hasMore() {
		idByte, err := b.readByte()
		if err != nil {
			return nil, err
		}
		id := sectionID(idByte)
		if id > sectionData {
			return nil, wasm.NewError(wasm.ErrCodeInvalidOpcode, "invalid section id")
		}
		size, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		start := b.tell()
		if id != sectionCustom {
			if seen[id] {
				return nil, wasm.NewError(wasm.ErrCodeDuplicateSection, "")
			}
			if id < lastID {
				return nil, wasm.NewError(wasm.ErrCodeSectionOutOfOrder, "")
			}
			seen[id] = true
			lastID = id
		}

		if id == sectionCustom {
			// Custom sections are advisory and may contain arbitrary
			// subsection structure (e.g. the "name" section's function
			// name map); this runtime only consumes the handful of
			// diagnostic fields it understands and otherwise skips the
			// rest of the declared payload wholesale.
			tryDecodeNameSection(b, start, int(size), m)
			b.seek(start + int(size))
			continue
		}

		if err := decodeSection(b, id, m); err != nil {
			return nil, err
		}

		if b.tell()-start != int(size) {
			return nil, wasm.NewError(wasm.ErrCodeSectionSizeMismatch, "")
		}
	}
	return m, nil
}

func decodeSection(b *ByteSource, id sectionID, m *wasm.Module) error {
	switch id {
	case sectionType:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.TypeSection = make([]*wasm.FunctionType, n)
		for i := range m.TypeSection {
			if m.TypeSection[i], err = decodeFunctionType(b); err != nil {
				return err
			}
		}
	case sectionImport:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.ImportSection = make([]*wasm.Import, n)
		for i := range m.ImportSection {
			imp, err := decodeImport(b)
			if err != nil {
				return err
			}
			m.ImportSection[i] = imp
			switch imp.Kind {
			case wasm.ImportKindFunc:
				m.ImportFuncCount++
			case wasm.ImportKindTable:
				m.ImportTableCount++
			case wasm.ImportKindMemory:
				m.ImportMemoryCount++
			case wasm.ImportKindGlobal:
				m.ImportGlobalCount++
			}
		}
	case sectionFunction:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.FunctionSection = make([]wasm.Index, n)
		for i := range m.FunctionSection {
			if m.FunctionSection[i], err = b.readU32Leb(); err != nil {
				return err
			}
		}
	case sectionTable:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		if n > 1 {
			return wasm.NewError(wasm.ErrCodeMultipleTables, "")
		}
		m.TableSection = make([]*wasm.TableType, n)
		for i := range m.TableSection {
			if m.TableSection[i], err = decodeTableType(b); err != nil {
				return err
			}
		}
	case sectionMemory:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		if n > 1 {
			return wasm.NewError(wasm.ErrCodeMultipleMemories, "")
		}
		m.MemorySection = make([]*wasm.MemoryType, n)
		for i := range m.MemorySection {
			if m.MemorySection[i], err = decodeMemoryType(b); err != nil {
				return err
			}
		}
	case sectionGlobal:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.GlobalSection = make([]*wasm.Global, n)
		for i := range m.GlobalSection {
			gt, err := decodeGlobalType(b)
			if err != nil {
				return err
			}
			init, err := decodeConstantExpression(b)
			if err != nil {
				return err
			}
			m.GlobalSection[i] = &wasm.Global{Type: gt, Init: init}
		}
	case sectionExport:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.ExportSection = make([]*wasm.Export, n)
		for i := range m.ExportSection {
			if m.ExportSection[i], err = decodeExport(b); err != nil {
				return err
			}
		}
	case sectionStart:
		idx, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.StartSection = &idx
	case sectionElement:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.ElementSection = make([]*wasm.ElementSegment, n)
		for i := range m.ElementSection {
			if m.ElementSection[i], err = decodeElementSegment(b); err != nil {
				return err
			}
		}
	case sectionCode:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.CodeSection = make([]*wasm.Code, n)
		for i := range m.CodeSection {
			bodySize, err := b.readU32Leb()
			if err != nil {
				return err
			}
			start := b.tell()
			if m.CodeSection[i], err = decodeCode(b); err != nil {
				return err
			}
			if b.tell()-start != int(bodySize) {
				return wasm.NewError(wasm.ErrCodeSectionSizeMismatch, "function body size mismatch")
			}
		}
	case sectionData:
		n, err := b.readU32Leb()
		if err != nil {
			return err
		}
		m.DataSection = make([]*wasm.DataSegment, n)
		for i := range m.DataSection {
			if m.DataSection[i], err = decodeDataSegment(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// tryDecodeNameSection best-effort extracts the module name from a "name"
// custom section for diagnostics. Any failure is swallowed: a malformed
// name section must never fail the overall decode, since it carries no
// semantic weight.
func tryDecodeNameSection(b *ByteSource, start, size int, m *wasm.Module) {
	defer b.seek(start)
	name, err := b.readName()
	if err != nil || name != "name" {
		return
	}
	ns := &wasm.NameSection{FunctionNames: map[wasm.Index]string{}}
	// The payload is a sequence of (id byte, u32 size, content) subsections;
	// only a leading module-name subsection (id 0) is read.
	if b.hasMore() && b.tell() < start+size {
		if id, err := b.readByte(); err == nil && id == 0 {
			if _, err := b.readU32Leb(); err == nil {
				if modName, err := b.readName(); err == nil {
					ns.ModuleName = modName
				}
			}
		}
	}
	m.NameSection = ns
}
