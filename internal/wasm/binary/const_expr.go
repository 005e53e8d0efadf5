package binary

import "github.com/second-state/ssvm-go/internal/wasm"

// decodeConstantExpression reads the restricted instruction sequence the
// binary format allows for global initializers and segment offsets: one of
// i32.const/i64.const/f32.const/f64.const/global.get, followed by end. The
// raw immediate bytes are kept rather than eagerly evaluated, since
// global.get needs the global's current value which the decoder does not
// have access to yet (it runs before instantiation).
func decodeConstantExpression(b *ByteSource) (*wasm.ConstantExpression, error) {
	opByte, err := b.readByte()
	if err != nil {
		return nil, err
	}
	op := wasm.Opcode(opByte)
	start := b.tell()
	switch op {
	case wasm.OpcodeI32Const:
		if _, err := b.readS32Leb(); err != nil {
			return nil, err
		}
	case wasm.OpcodeI64Const:
		if _, err := b.readS64Leb(); err != nil {
			return nil, err
		}
	case wasm.OpcodeF32Const:
		if _, err := b.readBytes(4); err != nil {
			return nil, err
		}
	case wasm.OpcodeF64Const:
		if _, err := b.readBytes(8); err != nil {
			return nil, err
		}
	case wasm.OpcodeGlobalGet:
		if _, err := b.readU32Leb(); err != nil {
			return nil, err
		}
	default:
		return nil, wasm.NewError(wasm.ErrCodeConstantExpressionRequired, wasm.InstructionName(op))
	}
	end := b.tell()
	data := append([]byte(nil), b.sliceBetween(start, end)...)

	endOp, err := b.readByte()
	if err != nil {
		return nil, err
	}
	if wasm.Opcode(endOp) != wasm.OpcodeEnd {
		return nil, wasm.NewError(wasm.ErrCodeConstantExpressionRequired, "missing end")
	}
	return &wasm.ConstantExpression{Opcode: op, Data: data}, nil
}

func (b *ByteSource) sliceBetween(start, end int) []byte {
	return b.data[start:end]
}
