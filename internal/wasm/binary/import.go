package binary

import "github.com/second-state/ssvm-go/internal/wasm"

func decodeImport(b *ByteSource) (*wasm.Import, error) {
	mod, err := b.readName()
	if err != nil {
		return nil, err
	}
	name, err := b.readName()
	if err != nil {
		return nil, err
	}
	kindByte, err := b.readByte()
	if err != nil {
		return nil, err
	}
	imp := &wasm.Import{Module: mod, Name: name}
	switch wasm.ImportKind(kindByte) {
	case wasm.ImportKindFunc:
		imp.Kind = wasm.ImportKindFunc
		if imp.DescFunc, err = b.readU32Leb(); err != nil {
			return nil, err
		}
	case wasm.ImportKindTable:
		imp.Kind = wasm.ImportKindTable
		if imp.DescTable, err = decodeTableType(b); err != nil {
			return nil, err
		}
	case wasm.ImportKindMemory:
		imp.Kind = wasm.ImportKindMemory
		if imp.DescMemory, err = decodeMemoryType(b); err != nil {
			return nil, err
		}
	case wasm.ImportKindGlobal:
		imp.Kind = wasm.ImportKindGlobal
		if imp.DescGlobal, err = decodeGlobalType(b); err != nil {
			return nil, err
		}
	default:
		return nil, wasm.NewError(wasm.ErrCodeInvalidValueType, "invalid import kind")
	}
	return imp, nil
}

func decodeExport(b *ByteSource) (*wasm.Export, error) {
	name, err := b.readName()
	if err != nil {
		return nil, err
	}
	kindByte, err := b.readByte()
	if err != nil {
		return nil, err
	}
	if kindByte > byte(wasm.ImportKindGlobal) {
		return nil, wasm.NewError(wasm.ErrCodeInvalidValueType, "invalid export kind")
	}
	idx, err := b.readU32Leb()
	if err != nil {
		return nil, err
	}
	return &wasm.Export{Name: name, Kind: wasm.ImportKind(kindByte), Index: idx}, nil
}
