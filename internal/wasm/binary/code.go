package binary

import "github.com/second-state/ssvm-go/internal/wasm"

// memArgOpcodes is the set of opcodes that carry a MemArgImm (align,
// offset) immediate: every memory load and store instruction.
var memArgOpcodes = map[wasm.Opcode]bool{
	wasm.OpcodeI32Load: true, wasm.OpcodeI64Load: true, wasm.OpcodeF32Load: true, wasm.OpcodeF64Load: true,
	wasm.OpcodeI32Load8S: true, wasm.OpcodeI32Load8U: true, wasm.OpcodeI32Load16S: true, wasm.OpcodeI32Load16U: true,
	wasm.OpcodeI64Load8S: true, wasm.OpcodeI64Load8U: true, wasm.OpcodeI64Load16S: true, wasm.OpcodeI64Load16U: true,
	wasm.OpcodeI64Load32S: true, wasm.OpcodeI64Load32U: true,
	wasm.OpcodeI32Store: true, wasm.OpcodeI64Store: true, wasm.OpcodeF32Store: true, wasm.OpcodeF64Store: true,
	wasm.OpcodeI32Store8: true, wasm.OpcodeI32Store16: true, wasm.OpcodeI64Store8: true, wasm.OpcodeI64Store16: true,
	wasm.OpcodeI64Store32: true,
}

// decodeInstructionSeq decodes instructions until an End or Else opcode is
// reached (not itself nested inside a further block), returning that
// terminator so the caller (a function body, or a block/loop/if owner) can
// tell which it was.
func decodeInstructionSeq(b *ByteSource) ([]*wasm.Instruction, wasm.Opcode, error) {
	var out []*wasm.Instruction
	for {
		opByte, err := b.readByte()
		if err != nil {
			return nil, 0, err
		}
		op := wasm.Opcode(opByte)
		if op == wasm.OpcodeEnd || op == wasm.OpcodeElse {
			return out, op, nil
		}
		instr, err := decodeInstruction(b, op)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, instr)
	}
}

func decodeInstruction(b *ByteSource, op wasm.Opcode) (*wasm.Instruction, error) {
	switch op {
	case wasm.OpcodeBlock, wasm.OpcodeLoop:
		bt, err := decodeBlockType(b)
		if err != nil {
			return nil, err
		}
		body, term, err := decodeInstructionSeq(b)
		if err != nil {
			return nil, err
		}
		if term != wasm.OpcodeEnd {
			return nil, wasm.NewError(wasm.ErrCodeInvalidOpcode, "block/loop must be closed by end")
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.BlockImm{Type: bt}, Then: body}, nil

	case wasm.OpcodeIf:
		bt, err := decodeBlockType(b)
		if err != nil {
			return nil, err
		}
		then, term, err := decodeInstructionSeq(b)
		if err != nil {
			return nil, err
		}
		var els []*wasm.Instruction
		if term == wasm.OpcodeElse {
			els, term, err = decodeInstructionSeq(b)
			if err != nil {
				return nil, err
			}
		}
		if term != wasm.OpcodeEnd {
			return nil, wasm.NewError(wasm.ErrCodeInvalidOpcode, "if must be closed by end")
		}
		return &wasm.Instruction{Opcode: wasm.OpcodeIf, Imm: wasm.BlockImm{Type: bt}, Then: then, Else: els}, nil

	case wasm.OpcodeBr, wasm.OpcodeBrIf:
		depth, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.BrImm{Depth: depth}}, nil

	case wasm.OpcodeBrTable:
		count, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		targets := make([]wasm.Index, count)
		for i := range targets {
			if targets[i], err = b.readU32Leb(); err != nil {
				return nil, err
			}
		}
		def, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.BrTableImm{Targets: targets, Default: def}}, nil

	case wasm.OpcodeCall:
		idx, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.CallImm{FuncIndex: idx}}, nil

	case wasm.OpcodeCallIndirect:
		typeIdx, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		tableIdx, err := b.readU32Leb() // reserved byte, MVP requires it to be 0
		if err != nil {
			return nil, err
		}
		if tableIdx != 0 {
			return nil, wasm.NewError(wasm.ErrCodeUnknownTable, "call_indirect table index must be zero")
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.CallIndirectImm{TypeIndex: typeIdx, TableIndex: tableIdx}}, nil

	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee:
		idx, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.LocalImm{Index: idx}}, nil

	case wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		idx, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.GlobalImm{Index: idx}}, nil

	case wasm.OpcodeMemorySize, wasm.OpcodeMemoryGrow:
		reserved, err := b.readByte()
		if err != nil {
			return nil, err
		}
		if reserved != 0 {
			return nil, wasm.NewError(wasm.ErrCodeInvalidOpcode, "memory.size/memory.grow reserved byte must be zero")
		}
		return &wasm.Instruction{Opcode: op}, nil

	case wasm.OpcodeI32Const:
		v, err := b.readS32Leb()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.I32Imm{Value: v}}, nil

	case wasm.OpcodeI64Const:
		v, err := b.readS64Leb()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.I64Imm{Value: v}}, nil

	case wasm.OpcodeF32Const:
		v, err := b.readF32()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.F32Imm{Value: v}}, nil

	case wasm.OpcodeF64Const:
		v, err := b.readF64()
		if err != nil {
			return nil, err
		}
		return &wasm.Instruction{Opcode: op, Imm: wasm.F64Imm{Value: v}}, nil

	case wasm.OpcodeUnreachable, wasm.OpcodeNop, wasm.OpcodeReturn, wasm.OpcodeDrop, wasm.OpcodeSelect:
		return &wasm.Instruction{Opcode: op}, nil

	default:
		if memArgOpcodes[op] {
			align, err := b.readU32Leb()
			if err != nil {
				return nil, err
			}
			offset, err := b.readU32Leb()
			if err != nil {
				return nil, err
			}
			return &wasm.Instruction{Opcode: op, Imm: wasm.MemArgImm{Align: align, Offset: offset}}, nil
		}
		if op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeF64ReinterpretI64 {
			// Every comparison/arithmetic/conversion opcode in this range
			// takes no immediate; its operands come entirely off the stack.
			return &wasm.Instruction{Opcode: op}, nil
		}
		return nil, wasm.NewError(wasm.ErrCodeInvalidOpcode, wasm.InstructionName(op))
	}
}

// decodeCode decodes one code-section entry's locals and body. The caller
// is responsible for reading the entry's byte-length prefix and verifying
// the cursor advanced by exactly that many bytes.
func decodeCode(b *ByteSource) (*wasm.Code, error) {
	groupCount, err := b.readU32Leb()
	if err != nil {
		return nil, err
	}
	var locals []wasm.ValueType
	var total uint64
	for i := uint32(0); i < groupCount; i++ {
		n, err := b.readU32Leb()
		if err != nil {
			return nil, err
		}
		vt, err := decodeValueType(b)
		if err != nil {
			return nil, err
		}
		total += uint64(n)
		if total > 0x7fffffff {
			return nil, wasm.NewError(wasm.ErrCodeTooManyLocals, "")
		}
		for j := uint32(0); j < n; j++ {
			locals = append(locals, vt)
		}
	}
	body, term, err := decodeInstructionSeq(b)
	if err != nil {
		return nil, err
	}
	if term != wasm.OpcodeEnd {
		return nil, wasm.NewError(wasm.ErrCodeInvalidOpcode, "function body must be closed by end")
	}
	return &wasm.Code{LocalTypes: locals, Body: body}, nil
}
