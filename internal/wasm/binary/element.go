package binary

import "github.com/second-state/ssvm-go/internal/wasm"

// decodeElementSegment reads one element-section entry. The MVP binary
// format only has the "active" form (table index implicitly 0, offset
// expression, vector of function indices); the later bulk-memory proposal's
// passive/declarative prefixes 1-7 are rejected rather than silently
// accepted, since this runtime does not implement bulk-memory instructions
// to act on a passive segment anyway.
func decodeElementSegment(b *ByteSource) (*wasm.ElementSegment, error) {
	prefix, err := b.readByte()
	if err != nil {
		return nil, err
	}
	if prefix != 0 {
		return nil, wasm.NewError(wasm.ErrCodeInvalidValueType, "only active (prefix 0) element segments are supported")
	}
	offset, err := decodeConstantExpression(b)
	if err != nil {
		return nil, err
	}
	count, err := b.readU32Leb()
	if err != nil {
		return nil, err
	}
	init := make([]wasm.Index, count)
	for i := range init {
		if init[i], err = b.readU32Leb(); err != nil {
			return nil, err
		}
	}
	return &wasm.ElementSegment{
		TableIndex: 0,
		OffsetExpr: offset,
		Init:       init,
		Mode:       wasm.ElementModeActive,
	}, nil
}

func decodeDataSegment(b *ByteSource) (*wasm.DataSegment, error) {
	memIdx, err := b.readU32Leb()
	if err != nil {
		return nil, err
	}
	if memIdx != 0 {
		return nil, wasm.NewError(wasm.ErrCodeInvalidDataSegmentMemoryIndex, "")
	}
	offset, err := decodeConstantExpression(b)
	if err != nil {
		return nil, err
	}
	n, err := b.readU32Leb()
	if err != nil {
		return nil, err
	}
	data, err := b.readBytes(n)
	if err != nil {
		return nil, err
	}
	return &wasm.DataSegment{
		MemoryIndex: 0,
		OffsetExpr:  offset,
		Init:        append([]byte(nil), data...),
	}, nil
}
