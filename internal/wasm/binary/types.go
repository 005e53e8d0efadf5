package binary

import "github.com/second-state/ssvm-go/internal/wasm"

func decodeValueType(b *ByteSource) (wasm.ValueType, error) {
	c, err := b.readByte()
	if err != nil {
		return 0, err
	}
	switch wasm.ValueType(c) {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
		return wasm.ValueType(c), nil
	default:
		return 0, wasm.NewError(wasm.ErrCodeInvalidValueType, "")
	}
}

func decodeValueTypes(b *ByteSource) ([]wasm.ValueType, error) {
	n, err := b.readU32Leb()
	if err != nil {
		return nil, err
	}
	ret := make([]wasm.ValueType, n)
	for i := range ret {
		if ret[i], err = decodeValueType(b); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func decodeFunctionType(b *ByteSource) (*wasm.FunctionType, error) {
	tag, err := b.readByte()
	if err != nil {
		return nil, err
	}
	if tag != 0x60 {
		return nil, wasm.NewError(wasm.ErrCodeInvalidValueType, "function type must start with 0x60")
	}
	params, err := decodeValueTypes(b)
	if err != nil {
		return nil, err
	}
	results, err := decodeValueTypes(b)
	if err != nil {
		return nil, err
	}
	if len(results) > 1 {
		return nil, wasm.NewError(wasm.ErrCodeInvalidResultArity, "multi-value results are not supported")
	}
	return &wasm.FunctionType{Params: params, Results: results}, nil
}

func decodeLimits(b *ByteSource) (wasm.Limits, error) {
	flag, err := b.readByte()
	if err != nil {
		return wasm.Limits{}, err
	}
	min, err := b.readU32Leb()
	if err != nil {
		return wasm.Limits{}, err
	}
	lim := wasm.Limits{Min: min}
	if flag == 1 {
		max, err := b.readU32Leb()
		if err != nil {
			return wasm.Limits{}, err
		}
		if max < min {
			return wasm.Limits{}, wasm.NewError(wasm.ErrCodeInvalidLimits, "")
		}
		lim.Max = &max
	} else if flag != 0 {
		return wasm.Limits{}, wasm.NewError(wasm.ErrCodeInvalidLimits, "limits flag must be 0 or 1")
	}
	return lim, nil
}

func decodeTableType(b *ByteSource) (*wasm.TableType, error) {
	elemTag, err := b.readByte()
	if err != nil {
		return nil, err
	}
	if wasm.RefType(elemTag) != wasm.RefTypeFuncref {
		return nil, wasm.NewError(wasm.ErrCodeInvalidValueType, "table element type must be funcref")
	}
	lim, err := decodeLimits(b)
	if err != nil {
		return nil, err
	}
	return &wasm.TableType{ElemType: wasm.RefTypeFuncref, Limits: lim}, nil
}

func decodeMemoryType(b *ByteSource) (*wasm.MemoryType, error) {
	lim, err := decodeLimits(b)
	if err != nil {
		return nil, err
	}
	if lim.Min > wasm.MaxMemoryPages || (lim.Max != nil && *lim.Max > wasm.MaxMemoryPages) {
		return nil, wasm.NewError(wasm.ErrCodeInvalidLimits, "memory size exceeds 65536 pages")
	}
	return &wasm.MemoryType{Limits: lim}, nil
}

func decodeGlobalType(b *ByteSource) (*wasm.GlobalType, error) {
	vt, err := decodeValueType(b)
	if err != nil {
		return nil, err
	}
	m, err := b.readByte()
	if err != nil {
		return nil, err
	}
	var mutable bool
	switch m {
	case 0:
		mutable = false
	case 1:
		mutable = true
	default:
		return nil, wasm.NewError(wasm.ErrCodeInvalidMutability, "")
	}
	return &wasm.GlobalType{ValType: vt, Mutable: mutable}, nil
}

// decodeBlockType reads the signed 33-bit LEB128 block-type immediate used
// by block/loop/if.
func decodeBlockType(b *ByteSource) (wasm.BlockType, error) {
	// Peek: 0x40 (empty) and each ValueType byte are single-byte forms
	// that read identically to a negative DecodeInt33AsInt64 result; we
	// decode via the signed-LEB path directly to cover the type-index case.
	pos := b.tell()
	c, err := b.readByte()
	if err != nil {
		return wasm.BlockType{}, err
	}
	if c == 0x40 {
		return wasm.BlockType{Empty: true}, nil
	}
	switch wasm.ValueType(c) {
	case wasm.ValueTypeI32, wasm.ValueTypeI64, wasm.ValueTypeF32, wasm.ValueTypeF64:
		if c&0x80 == 0 {
			return wasm.BlockType{ValueType: wasm.ValueType(c)}, nil
		}
	}
	// Not a single-byte form: re-read as a signed LEB128 type index.
	b.seek(pos)
	idx, err := b.readS64Leb()
	if err != nil {
		return wasm.BlockType{}, err
	}
	if idx < 0 {
		return wasm.BlockType{}, wasm.NewError(wasm.ErrCodeUnknownType, "negative block type index")
	}
	return wasm.BlockType{TypeIndex: wasm.Index(idx), HasTypeIndex: true}, nil
}
