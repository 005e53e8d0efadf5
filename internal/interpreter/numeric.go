package interpreter

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/second-state/ssvm-go/internal/moremath"
	"github.com/second-state/ssvm-go/internal/wasm"
)

var memArgOpcodeSet = map[wasm.Opcode]bool{
	wasm.OpcodeI32Load: true, wasm.OpcodeI64Load: true, wasm.OpcodeF32Load: true, wasm.OpcodeF64Load: true,
	wasm.OpcodeI32Load8S: true, wasm.OpcodeI32Load8U: true, wasm.OpcodeI32Load16S: true, wasm.OpcodeI32Load16U: true,
	wasm.OpcodeI64Load8S: true, wasm.OpcodeI64Load8U: true, wasm.OpcodeI64Load16S: true, wasm.OpcodeI64Load16U: true,
	wasm.OpcodeI64Load32S: true, wasm.OpcodeI64Load32U: true,
	wasm.OpcodeI32Store: true, wasm.OpcodeI64Store: true, wasm.OpcodeF32Store: true, wasm.OpcodeF64Store: true,
	wasm.OpcodeI32Store8: true, wasm.OpcodeI32Store16: true, wasm.OpcodeI64Store8: true, wasm.OpcodeI64Store16: true,
	wasm.OpcodeI64Store32: true,
}

func isMemArgOpcode(op wasm.Opcode) bool { return memArgOpcodeSet[op] }

func effectiveAddr(mem *wasm.MemoryInstance, base uint32, offset uint32, size uint64) (uint64, error) {
	ea := uint64(base) + uint64(offset)
	if ea+size > uint64(len(mem.Data)) {
		return 0, wasm.NewError(wasm.ErrCodeTrapOutOfBoundsMemoryAccess, "")
	}
	return ea, nil
}

func (e *Engine) execMemOp(instr *wasm.Instruction, vs *valueStack, fr *frame) error {
	mem := e.store.GetMemory(fr.module.Memories[0])
	imm := instr.Imm.(wasm.MemArgImm)

	switch instr.Opcode {
	case wasm.OpcodeI32Store, wasm.OpcodeI64Store, wasm.OpcodeF32Store, wasm.OpcodeF64Store,
		wasm.OpcodeI32Store8, wasm.OpcodeI32Store16, wasm.OpcodeI64Store8, wasm.OpcodeI64Store16, wasm.OpcodeI64Store32:
		return storeOp(instr.Opcode, mem, imm, vs)
	default:
		return loadOp(instr.Opcode, mem, imm, vs)
	}
}

func loadOp(op wasm.Opcode, mem *wasm.MemoryInstance, imm wasm.MemArgImm, vs *valueStack) error {
	base := vs.popU32()
	switch op {
	case wasm.OpcodeI32Load:
		ea, err := effectiveAddr(mem, base, imm.Offset, 4)
		if err != nil {
			return err
		}
		vs.pushU32(binary.LittleEndian.Uint32(mem.Data[ea:]))
	case wasm.OpcodeI64Load:
		ea, err := effectiveAddr(mem, base, imm.Offset, 8)
		if err != nil {
			return err
		}
		vs.pushU64(binary.LittleEndian.Uint64(mem.Data[ea:]))
	case wasm.OpcodeF32Load:
		ea, err := effectiveAddr(mem, base, imm.Offset, 4)
		if err != nil {
			return err
		}
		vs.pushU32(binary.LittleEndian.Uint32(mem.Data[ea:]))
	case wasm.OpcodeF64Load:
		ea, err := effectiveAddr(mem, base, imm.Offset, 8)
		if err != nil {
			return err
		}
		vs.pushU64(binary.LittleEndian.Uint64(mem.Data[ea:]))
	case wasm.OpcodeI32Load8S:
		ea, err := effectiveAddr(mem, base, imm.Offset, 1)
		if err != nil {
			return err
		}
		vs.pushI32(int32(int8(mem.Data[ea])))
	case wasm.OpcodeI32Load8U:
		ea, err := effectiveAddr(mem, base, imm.Offset, 1)
		if err != nil {
			return err
		}
		vs.pushU32(uint32(mem.Data[ea]))
	case wasm.OpcodeI32Load16S:
		ea, err := effectiveAddr(mem, base, imm.Offset, 2)
		if err != nil {
			return err
		}
		vs.pushI32(int32(int16(binary.LittleEndian.Uint16(mem.Data[ea:]))))
	case wasm.OpcodeI32Load16U:
		ea, err := effectiveAddr(mem, base, imm.Offset, 2)
		if err != nil {
			return err
		}
		vs.pushU32(uint32(binary.LittleEndian.Uint16(mem.Data[ea:])))
	case wasm.OpcodeI64Load8S:
		ea, err := effectiveAddr(mem, base, imm.Offset, 1)
		if err != nil {
			return err
		}
		vs.pushI64(int64(int8(mem.Data[ea])))
	case wasm.OpcodeI64Load8U:
		ea, err := effectiveAddr(mem, base, imm.Offset, 1)
		if err != nil {
			return err
		}
		vs.pushI64(int64(mem.Data[ea]))
	case wasm.OpcodeI64Load16S:
		ea, err := effectiveAddr(mem, base, imm.Offset, 2)
		if err != nil {
			return err
		}
		vs.pushI64(int64(int16(binary.LittleEndian.Uint16(mem.Data[ea:]))))
	case wasm.OpcodeI64Load16U:
		ea, err := effectiveAddr(mem, base, imm.Offset, 2)
		if err != nil {
			return err
		}
		vs.pushI64(int64(binary.LittleEndian.Uint16(mem.Data[ea:])))
	case wasm.OpcodeI64Load32S:
		ea, err := effectiveAddr(mem, base, imm.Offset, 4)
		if err != nil {
			return err
		}
		vs.pushI64(int64(int32(binary.LittleEndian.Uint32(mem.Data[ea:]))))
	case wasm.OpcodeI64Load32U:
		ea, err := effectiveAddr(mem, base, imm.Offset, 4)
		if err != nil {
			return err
		}
		vs.pushI64(int64(binary.LittleEndian.Uint32(mem.Data[ea:])))
	}
	return nil
}

func storeOp(op wasm.Opcode, mem *wasm.MemoryInstance, imm wasm.MemArgImm, vs *valueStack) error {
	switch op {
	case wasm.OpcodeI32Store:
		v := vs.popU32()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 4)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(mem.Data[ea:], v)
	case wasm.OpcodeI64Store:
		v := vs.popU64()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 8)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(mem.Data[ea:], v)
	case wasm.OpcodeF32Store:
		v := vs.popU32()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 4)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(mem.Data[ea:], v)
	case wasm.OpcodeF64Store:
		v := vs.popU64()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 8)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(mem.Data[ea:], v)
	case wasm.OpcodeI32Store8:
		v := vs.popU32()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 1)
		if err != nil {
			return err
		}
		mem.Data[ea] = byte(v)
	case wasm.OpcodeI32Store16:
		v := vs.popU32()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 2)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(mem.Data[ea:], uint16(v))
	case wasm.OpcodeI64Store8:
		v := vs.popU64()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 1)
		if err != nil {
			return err
		}
		mem.Data[ea] = byte(v)
	case wasm.OpcodeI64Store16:
		v := vs.popU64()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 2)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint16(mem.Data[ea:], uint16(v))
	case wasm.OpcodeI64Store32:
		v := vs.popU64()
		base := vs.popU32()
		ea, err := effectiveAddr(mem, base, imm.Offset, 4)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(mem.Data[ea:], uint32(v))
	}
	return nil
}

// execNumericOp executes every comparison/arithmetic/conversion instruction
// that isn't control flow, memory, local/global, or const. These follow the
// exact Wasm numeric semantics: integer division and remainder trap on
// divide-by-zero, signed division also traps on the MinInt/-1 overflow case
// (signed remainder returns 0 there), and truncation to integer traps on
// NaN/infinity/out-of-range rather than saturating.
func execNumericOp(op wasm.Opcode, vs *valueStack) error {
	switch op {
	case wasm.OpcodeI32Eqz:
		vs.pushI32(b2i32(vs.popI32() == 0))
	case wasm.OpcodeI32Eq:
		b, a := vs.popI32(), vs.popI32()
		vs.pushI32(b2i32(a == b))
	case wasm.OpcodeI32Ne:
		b, a := vs.popI32(), vs.popI32()
		vs.pushI32(b2i32(a != b))
	case wasm.OpcodeI32LtS:
		b, a := vs.popI32(), vs.popI32()
		vs.pushI32(b2i32(a < b))
	case wasm.OpcodeI32LtU:
		b, a := vs.popU32(), vs.popU32()
		vs.pushI32(b2i32(a < b))
	case wasm.OpcodeI32GtS:
		b, a := vs.popI32(), vs.popI32()
		vs.pushI32(b2i32(a > b))
	case wasm.OpcodeI32GtU:
		b, a := vs.popU32(), vs.popU32()
		vs.pushI32(b2i32(a > b))
	case wasm.OpcodeI32LeS:
		b, a := vs.popI32(), vs.popI32()
		vs.pushI32(b2i32(a <= b))
	case wasm.OpcodeI32LeU:
		b, a := vs.popU32(), vs.popU32()
		vs.pushI32(b2i32(a <= b))
	case wasm.OpcodeI32GeS:
		b, a := vs.popI32(), vs.popI32()
		vs.pushI32(b2i32(a >= b))
	case wasm.OpcodeI32GeU:
		b, a := vs.popU32(), vs.popU32()
		vs.pushI32(b2i32(a >= b))

	case wasm.OpcodeI64Eqz:
		vs.pushI32(b2i32(vs.popI64() == 0))
	case wasm.OpcodeI64Eq:
		b, a := vs.popI64(), vs.popI64()
		vs.pushI32(b2i32(a == b))
	case wasm.OpcodeI64Ne:
		b, a := vs.popI64(), vs.popI64()
		vs.pushI32(b2i32(a != b))
	case wasm.OpcodeI64LtS:
		b, a := vs.popI64(), vs.popI64()
		vs.pushI32(b2i32(a < b))
	case wasm.OpcodeI64LtU:
		b, a := vs.popU64(), vs.popU64()
		vs.pushI32(b2i32(a < b))
	case wasm.OpcodeI64GtS:
		b, a := vs.popI64(), vs.popI64()
		vs.pushI32(b2i32(a > b))
	case wasm.OpcodeI64GtU:
		b, a := vs.popU64(), vs.popU64()
		vs.pushI32(b2i32(a > b))
	case wasm.OpcodeI64LeS:
		b, a := vs.popI64(), vs.popI64()
		vs.pushI32(b2i32(a <= b))
	case wasm.OpcodeI64LeU:
		b, a := vs.popU64(), vs.popU64()
		vs.pushI32(b2i32(a <= b))
	case wasm.OpcodeI64GeS:
		b, a := vs.popI64(), vs.popI64()
		vs.pushI32(b2i32(a >= b))
	case wasm.OpcodeI64GeU:
		b, a := vs.popU64(), vs.popU64()
		vs.pushI32(b2i32(a >= b))

	case wasm.OpcodeF32Eq:
		b, a := vs.popF32(), vs.popF32()
		vs.pushI32(b2i32(a == b))
	case wasm.OpcodeF32Ne:
		b, a := vs.popF32(), vs.popF32()
		vs.pushI32(b2i32(a != b))
	case wasm.OpcodeF32Lt:
		b, a := vs.popF32(), vs.popF32()
		vs.pushI32(b2i32(a < b))
	case wasm.OpcodeF32Gt:
		b, a := vs.popF32(), vs.popF32()
		vs.pushI32(b2i32(a > b))
	case wasm.OpcodeF32Le:
		b, a := vs.popF32(), vs.popF32()
		vs.pushI32(b2i32(a <= b))
	case wasm.OpcodeF32Ge:
		b, a := vs.popF32(), vs.popF32()
		vs.pushI32(b2i32(a >= b))

	case wasm.OpcodeF64Eq:
		b, a := vs.popF64(), vs.popF64()
		vs.pushI32(b2i32(a == b))
	case wasm.OpcodeF64Ne:
		b, a := vs.popF64(), vs.popF64()
		vs.pushI32(b2i32(a != b))
	case wasm.OpcodeF64Lt:
		b, a := vs.popF64(), vs.popF64()
		vs.pushI32(b2i32(a < b))
	case wasm.OpcodeF64Gt:
		b, a := vs.popF64(), vs.popF64()
		vs.pushI32(b2i32(a > b))
	case wasm.OpcodeF64Le:
		b, a := vs.popF64(), vs.popF64()
		vs.pushI32(b2i32(a <= b))
	case wasm.OpcodeF64Ge:
		b, a := vs.popF64(), vs.popF64()
		vs.pushI32(b2i32(a >= b))

	case wasm.OpcodeI32Clz:
		vs.pushI32(int32(bits.LeadingZeros32(vs.popU32())))
	case wasm.OpcodeI32Ctz:
		vs.pushI32(int32(bits.TrailingZeros32(vs.popU32())))
	case wasm.OpcodeI32Popcnt:
		vs.pushI32(int32(bits.OnesCount32(vs.popU32())))
	case wasm.OpcodeI32Add:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a + b)
	case wasm.OpcodeI32Sub:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a - b)
	case wasm.OpcodeI32Mul:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a * b)
	case wasm.OpcodeI32DivS:
		b, a := vs.popI32(), vs.popI32()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		if a == math.MinInt32 && b == -1 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerOverflow, "")
		}
		vs.pushI32(a / b)
	case wasm.OpcodeI32DivU:
		b, a := vs.popU32(), vs.popU32()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		vs.pushU32(a / b)
	case wasm.OpcodeI32RemS:
		b, a := vs.popI32(), vs.popI32()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		if a == math.MinInt32 && b == -1 {
			vs.pushI32(0)
		} else {
			vs.pushI32(a % b)
		}
	case wasm.OpcodeI32RemU:
		b, a := vs.popU32(), vs.popU32()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		vs.pushU32(a % b)
	case wasm.OpcodeI32And:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a & b)
	case wasm.OpcodeI32Or:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a | b)
	case wasm.OpcodeI32Xor:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a ^ b)
	case wasm.OpcodeI32Shl:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a << (b % 32))
	case wasm.OpcodeI32ShrS:
		b, a := vs.popU32(), vs.popI32()
		vs.pushI32(a >> (b % 32))
	case wasm.OpcodeI32ShrU:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(a >> (b % 32))
	case wasm.OpcodeI32Rotl:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(bits.RotateLeft32(a, int(b)))
	case wasm.OpcodeI32Rotr:
		b, a := vs.popU32(), vs.popU32()
		vs.pushU32(bits.RotateLeft32(a, -int(b)))

	case wasm.OpcodeI64Clz:
		vs.pushI64(int64(bits.LeadingZeros64(vs.popU64())))
	case wasm.OpcodeI64Ctz:
		vs.pushI64(int64(bits.TrailingZeros64(vs.popU64())))
	case wasm.OpcodeI64Popcnt:
		vs.pushI64(int64(bits.OnesCount64(vs.popU64())))
	case wasm.OpcodeI64Add:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a + b)
	case wasm.OpcodeI64Sub:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a - b)
	case wasm.OpcodeI64Mul:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a * b)
	case wasm.OpcodeI64DivS:
		b, a := vs.popI64(), vs.popI64()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		if a == math.MinInt64 && b == -1 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerOverflow, "")
		}
		vs.pushI64(a / b)
	case wasm.OpcodeI64DivU:
		b, a := vs.popU64(), vs.popU64()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		vs.pushU64(a / b)
	case wasm.OpcodeI64RemS:
		b, a := vs.popI64(), vs.popI64()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		if a == math.MinInt64 && b == -1 {
			vs.pushI64(0)
		} else {
			vs.pushI64(a % b)
		}
	case wasm.OpcodeI64RemU:
		b, a := vs.popU64(), vs.popU64()
		if b == 0 {
			return wasm.NewError(wasm.ErrCodeTrapIntegerDivideByZero, "")
		}
		vs.pushU64(a % b)
	case wasm.OpcodeI64And:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a & b)
	case wasm.OpcodeI64Or:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a | b)
	case wasm.OpcodeI64Xor:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a ^ b)
	case wasm.OpcodeI64Shl:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a << (b % 64))
	case wasm.OpcodeI64ShrS:
		b, a := vs.popU64(), vs.popI64()
		vs.pushI64(a >> (b % 64))
	case wasm.OpcodeI64ShrU:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(a >> (b % 64))
	case wasm.OpcodeI64Rotl:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(bits.RotateLeft64(a, int(b)))
	case wasm.OpcodeI64Rotr:
		b, a := vs.popU64(), vs.popU64()
		vs.pushU64(bits.RotateLeft64(a, -int(b)))

	case wasm.OpcodeF32Abs:
		vs.pushF32(float32(math.Abs(float64(vs.popF32()))))
	case wasm.OpcodeF32Neg:
		vs.pushF32(-vs.popF32())
	case wasm.OpcodeF32Ceil:
		vs.pushF32(float32(math.Ceil(float64(vs.popF32()))))
	case wasm.OpcodeF32Floor:
		vs.pushF32(float32(math.Floor(float64(vs.popF32()))))
	case wasm.OpcodeF32Trunc:
		vs.pushF32(float32(math.Trunc(float64(vs.popF32()))))
	case wasm.OpcodeF32Nearest:
		vs.pushF32(float32(math.RoundToEven(float64(vs.popF32()))))
	case wasm.OpcodeF32Sqrt:
		vs.pushF32(float32(math.Sqrt(float64(vs.popF32()))))
	case wasm.OpcodeF32Add:
		b, a := vs.popF32(), vs.popF32()
		vs.pushF32(a + b)
	case wasm.OpcodeF32Sub:
		b, a := vs.popF32(), vs.popF32()
		vs.pushF32(a - b)
	case wasm.OpcodeF32Mul:
		b, a := vs.popF32(), vs.popF32()
		vs.pushF32(a * b)
	case wasm.OpcodeF32Div:
		b, a := vs.popF32(), vs.popF32()
		vs.pushF32(a / b)
	case wasm.OpcodeF32Min:
		b, a := vs.popF32(), vs.popF32()
		vs.pushF32(float32(moremath.WasmCompatMin(float64(a), float64(b))))
	case wasm.OpcodeF32Max:
		b, a := vs.popF32(), vs.popF32()
		vs.pushF32(float32(moremath.WasmCompatMax(float64(a), float64(b))))
	case wasm.OpcodeF32Copysign:
		b, a := vs.popF32(), vs.popF32()
		vs.pushF32(float32(math.Copysign(float64(a), float64(b))))

	case wasm.OpcodeF64Abs:
		vs.pushF64(math.Abs(vs.popF64()))
	case wasm.OpcodeF64Neg:
		vs.pushF64(-vs.popF64())
	case wasm.OpcodeF64Ceil:
		vs.pushF64(math.Ceil(vs.popF64()))
	case wasm.OpcodeF64Floor:
		vs.pushF64(math.Floor(vs.popF64()))
	case wasm.OpcodeF64Trunc:
		vs.pushF64(math.Trunc(vs.popF64()))
	case wasm.OpcodeF64Nearest:
		vs.pushF64(math.RoundToEven(vs.popF64()))
	case wasm.OpcodeF64Sqrt:
		vs.pushF64(math.Sqrt(vs.popF64()))
	case wasm.OpcodeF64Add:
		b, a := vs.popF64(), vs.popF64()
		vs.pushF64(a + b)
	case wasm.OpcodeF64Sub:
		b, a := vs.popF64(), vs.popF64()
		vs.pushF64(a - b)
	case wasm.OpcodeF64Mul:
		b, a := vs.popF64(), vs.popF64()
		vs.pushF64(a * b)
	case wasm.OpcodeF64Div:
		b, a := vs.popF64(), vs.popF64()
		vs.pushF64(a / b)
	case wasm.OpcodeF64Min:
		b, a := vs.popF64(), vs.popF64()
		vs.pushF64(moremath.WasmCompatMin(a, b))
	case wasm.OpcodeF64Max:
		b, a := vs.popF64(), vs.popF64()
		vs.pushF64(moremath.WasmCompatMax(a, b))
	case wasm.OpcodeF64Copysign:
		b, a := vs.popF64(), vs.popF64()
		vs.pushF64(math.Copysign(a, b))

	case wasm.OpcodeI32WrapI64:
		vs.pushI32(int32(vs.popI64()))
	case wasm.OpcodeI32TruncF32S:
		return truncToInt(vs, float64(vs.popF32()), -2147483648, 2147483648, false, func(v float64) { vs.pushI32(int32(v)) })
	case wasm.OpcodeI32TruncF32U:
		return truncToInt(vs, float64(vs.popF32()), -1, 4294967296, true, func(v float64) { vs.pushU32(uint32(v)) })
	case wasm.OpcodeI32TruncF64S:
		return truncToInt(vs, vs.popF64(), -2147483648, 2147483648, false, func(v float64) { vs.pushI32(int32(v)) })
	case wasm.OpcodeI32TruncF64U:
		return truncToInt(vs, vs.popF64(), -1, 4294967296, true, func(v float64) { vs.pushU32(uint32(v)) })
	case wasm.OpcodeI64ExtendI32S:
		vs.pushI64(int64(vs.popI32()))
	case wasm.OpcodeI64ExtendI32U:
		vs.pushI64(int64(vs.popU32()))
	case wasm.OpcodeI64TruncF32S:
		return truncToInt(vs, float64(vs.popF32()), -9223372036854775808, 9223372036854775808, false, func(v float64) { vs.pushI64(int64(v)) })
	case wasm.OpcodeI64TruncF32U:
		return truncToInt(vs, float64(vs.popF32()), -1, 18446744073709551616, true, func(v float64) { vs.pushU64(uint64(v)) })
	case wasm.OpcodeI64TruncF64S:
		return truncToInt(vs, vs.popF64(), -9223372036854775808, 9223372036854775808, false, func(v float64) { vs.pushI64(int64(v)) })
	case wasm.OpcodeI64TruncF64U:
		return truncToInt(vs, vs.popF64(), -1, 18446744073709551616, true, func(v float64) { vs.pushU64(uint64(v)) })
	case wasm.OpcodeF32ConvertI32S:
		vs.pushF32(float32(vs.popI32()))
	case wasm.OpcodeF32ConvertI32U:
		vs.pushF32(float32(vs.popU32()))
	case wasm.OpcodeF32ConvertI64S:
		vs.pushF32(float32(vs.popI64()))
	case wasm.OpcodeF32ConvertI64U:
		vs.pushF32(float32(vs.popU64()))
	case wasm.OpcodeF32DemoteF64:
		vs.pushF32(float32(vs.popF64()))
	case wasm.OpcodeF64ConvertI32S:
		vs.pushF64(float64(vs.popI32()))
	case wasm.OpcodeF64ConvertI32U:
		vs.pushF64(float64(vs.popU32()))
	case wasm.OpcodeF64ConvertI64S:
		vs.pushF64(float64(vs.popI64()))
	case wasm.OpcodeF64ConvertI64U:
		vs.pushF64(float64(vs.popU64()))
	case wasm.OpcodeF64PromoteF32:
		vs.pushF64(float64(vs.popF32()))
	case wasm.OpcodeI32ReinterpretF32:
		vs.pushU32(vs.popU32())
	case wasm.OpcodeI64ReinterpretF64:
		vs.pushU64(vs.popU64())
	case wasm.OpcodeF32ReinterpretI32:
		vs.pushU32(vs.popU32())
	case wasm.OpcodeF64ReinterpretI64:
		vs.pushU64(vs.popU64())

	default:
		return wasm.NewError(wasm.ErrCodeInvalidOpcode, wasm.InstructionName(op))
	}
	return nil
}

func b2i32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// truncToInt implements trunc_f*_i* conversion: it traps on NaN and on any
// value outside the target's valid domain, matching the Wasm spec's strict
// (non-saturating) truncation rather than Go's implicit clamp-on-overflow
// float-to-int cast. min/max are the target type's exact representable
// bounds (max always exclusive). For a signed target, min is itself a valid
// result (e.g. i32's -2147483648), so only v < min traps; for an unsigned
// target min is -1, a sentinel one below the real inclusive lower bound of
// 0, so v <= min traps. minInclusive selects which of those two a caller
// wants.
func truncToInt(vs *valueStack, v float64, min, max float64, minInclusive bool, push func(float64)) error {
	if math.IsNaN(v) {
		return wasm.NewError(wasm.ErrCodeTrapInvalidConversionToInteger, "")
	}
	belowMin := v < min
	if minInclusive {
		belowMin = v <= min
	}
	if belowMin || v >= max {
		return wasm.NewError(wasm.ErrCodeTrapIntegerOverflow, "")
	}
	push(math.Trunc(v))
	return nil
}
