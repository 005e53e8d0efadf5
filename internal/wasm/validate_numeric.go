package wasm

// memOpType gives the value type a memory load pushes, or a store pops, in
// addition to the i32 address every memory instruction pops first.
var memOpType = map[Opcode]ValueType{
	OpcodeI32Load: ValueTypeI32, OpcodeI32Load8S: ValueTypeI32, OpcodeI32Load8U: ValueTypeI32,
	OpcodeI32Load16S: ValueTypeI32, OpcodeI32Load16U: ValueTypeI32,
	OpcodeI64Load: ValueTypeI64, OpcodeI64Load8S: ValueTypeI64, OpcodeI64Load8U: ValueTypeI64,
	OpcodeI64Load16S: ValueTypeI64, OpcodeI64Load16U: ValueTypeI64,
	OpcodeI64Load32S: ValueTypeI64, OpcodeI64Load32U: ValueTypeI64,
	OpcodeF32Load: ValueTypeF32, OpcodeF64Load: ValueTypeF64,
	OpcodeI32Store: ValueTypeI32, OpcodeI32Store8: ValueTypeI32, OpcodeI32Store16: ValueTypeI32,
	OpcodeI64Store: ValueTypeI64, OpcodeI64Store8: ValueTypeI64, OpcodeI64Store16: ValueTypeI64, OpcodeI64Store32: ValueTypeI64,
	OpcodeF32Store: ValueTypeF32, OpcodeF64Store: ValueTypeF64,
}

var memStoreOps = map[Opcode]bool{
	OpcodeI32Store: true, OpcodeI32Store8: true, OpcodeI32Store16: true,
	OpcodeI64Store: true, OpcodeI64Store8: true, OpcodeI64Store16: true, OpcodeI64Store32: true,
	OpcodeF32Store: true, OpcodeF64Store: true,
}

func memArgOpcode(op Opcode) bool {
	_, ok := memOpType[op]
	return ok
}

func (tc *typeChecker) applyMemOp(op Opcode) error {
	vt := memOpType[op]
	if memStoreOps[op] {
		if err := tc.pop(vt); err != nil {
			return err
		}
		return tc.pop(ValueTypeI32)
	}
	if err := tc.pop(ValueTypeI32); err != nil {
		return err
	}
	tc.push(vt)
	return nil
}

// numericSig is a uniform (pop..., push...) signature for every numeric
// instruction that isn't const/memory/control: unary ops pop one operand of
// In and push one of Out, binary ops pop two of In and push one of Out,
// comparisons pop two of In and push i32.
type numericSig struct {
	arity int // 1 (unary) or 2 (binary)
	in    ValueType
	out   ValueType
}

var numericSigs = buildNumericSigs()

func buildNumericSigs() map[Opcode]numericSig {
	m := map[Opcode]numericSig{}
	unary := func(op Opcode, t, out ValueType) { m[op] = numericSig{1, t, out} }
	bin := func(op Opcode, t, out ValueType) { m[op] = numericSig{2, t, out} }

	unary(OpcodeI32Eqz, ValueTypeI32, ValueTypeI32)
	for _, op := range []Opcode{OpcodeI32Eq, OpcodeI32Ne, OpcodeI32LtS, OpcodeI32LtU, OpcodeI32GtS, OpcodeI32GtU, OpcodeI32LeS, OpcodeI32LeU, OpcodeI32GeS, OpcodeI32GeU} {
		bin(op, ValueTypeI32, ValueTypeI32)
	}
	unary(OpcodeI64Eqz, ValueTypeI64, ValueTypeI32)
	for _, op := range []Opcode{OpcodeI64Eq, OpcodeI64Ne, OpcodeI64LtS, OpcodeI64LtU, OpcodeI64GtS, OpcodeI64GtU, OpcodeI64LeS, OpcodeI64LeU, OpcodeI64GeS, OpcodeI64GeU} {
		bin(op, ValueTypeI64, ValueTypeI32)
	}
	for _, op := range []Opcode{OpcodeF32Eq, OpcodeF32Ne, OpcodeF32Lt, OpcodeF32Gt, OpcodeF32Le, OpcodeF32Ge} {
		bin(op, ValueTypeF32, ValueTypeI32)
	}
	for _, op := range []Opcode{OpcodeF64Eq, OpcodeF64Ne, OpcodeF64Lt, OpcodeF64Gt, OpcodeF64Le, OpcodeF64Ge} {
		bin(op, ValueTypeF64, ValueTypeI32)
	}

	for _, op := range []Opcode{OpcodeI32Clz, OpcodeI32Ctz, OpcodeI32Popcnt} {
		unary(op, ValueTypeI32, ValueTypeI32)
	}
	for _, op := range []Opcode{OpcodeI32Add, OpcodeI32Sub, OpcodeI32Mul, OpcodeI32DivS, OpcodeI32DivU, OpcodeI32RemS, OpcodeI32RemU, OpcodeI32And, OpcodeI32Or, OpcodeI32Xor, OpcodeI32Shl, OpcodeI32ShrS, OpcodeI32ShrU, OpcodeI32Rotl, OpcodeI32Rotr} {
		bin(op, ValueTypeI32, ValueTypeI32)
	}
	for _, op := range []Opcode{OpcodeI64Clz, OpcodeI64Ctz, OpcodeI64Popcnt} {
		unary(op, ValueTypeI64, ValueTypeI64)
	}
	for _, op := range []Opcode{OpcodeI64Add, OpcodeI64Sub, OpcodeI64Mul, OpcodeI64DivS, OpcodeI64DivU, OpcodeI64RemS, OpcodeI64RemU, OpcodeI64And, OpcodeI64Or, OpcodeI64Xor, OpcodeI64Shl, OpcodeI64ShrS, OpcodeI64ShrU, OpcodeI64Rotl, OpcodeI64Rotr} {
		bin(op, ValueTypeI64, ValueTypeI64)
	}
	for _, op := range []Opcode{OpcodeF32Abs, OpcodeF32Neg, OpcodeF32Ceil, OpcodeF32Floor, OpcodeF32Trunc, OpcodeF32Nearest, OpcodeF32Sqrt} {
		unary(op, ValueTypeF32, ValueTypeF32)
	}
	for _, op := range []Opcode{OpcodeF32Add, OpcodeF32Sub, OpcodeF32Mul, OpcodeF32Div, OpcodeF32Min, OpcodeF32Max, OpcodeF32Copysign} {
		bin(op, ValueTypeF32, ValueTypeF32)
	}
	for _, op := range []Opcode{OpcodeF64Abs, OpcodeF64Neg, OpcodeF64Ceil, OpcodeF64Floor, OpcodeF64Trunc, OpcodeF64Nearest, OpcodeF64Sqrt} {
		unary(op, ValueTypeF64, ValueTypeF64)
	}
	for _, op := range []Opcode{OpcodeF64Add, OpcodeF64Sub, OpcodeF64Mul, OpcodeF64Div, OpcodeF64Min, OpcodeF64Max, OpcodeF64Copysign} {
		bin(op, ValueTypeF64, ValueTypeF64)
	}

	unary(OpcodeI32WrapI64, ValueTypeI64, ValueTypeI32)
	unary(OpcodeI32TruncF32S, ValueTypeF32, ValueTypeI32)
	unary(OpcodeI32TruncF32U, ValueTypeF32, ValueTypeI32)
	unary(OpcodeI32TruncF64S, ValueTypeF64, ValueTypeI32)
	unary(OpcodeI32TruncF64U, ValueTypeF64, ValueTypeI32)
	unary(OpcodeI64ExtendI32S, ValueTypeI32, ValueTypeI64)
	unary(OpcodeI64ExtendI32U, ValueTypeI32, ValueTypeI64)
	unary(OpcodeI64TruncF32S, ValueTypeF32, ValueTypeI64)
	unary(OpcodeI64TruncF32U, ValueTypeF32, ValueTypeI64)
	unary(OpcodeI64TruncF64S, ValueTypeF64, ValueTypeI64)
	unary(OpcodeI64TruncF64U, ValueTypeF64, ValueTypeI64)
	unary(OpcodeF32ConvertI32S, ValueTypeI32, ValueTypeF32)
	unary(OpcodeF32ConvertI32U, ValueTypeI32, ValueTypeF32)
	unary(OpcodeF32ConvertI64S, ValueTypeI64, ValueTypeF32)
	unary(OpcodeF32ConvertI64U, ValueTypeI64, ValueTypeF32)
	unary(OpcodeF32DemoteF64, ValueTypeF64, ValueTypeF32)
	unary(OpcodeF64ConvertI32S, ValueTypeI32, ValueTypeF64)
	unary(OpcodeF64ConvertI32U, ValueTypeI32, ValueTypeF64)
	unary(OpcodeF64ConvertI64S, ValueTypeI64, ValueTypeF64)
	unary(OpcodeF64ConvertI64U, ValueTypeI64, ValueTypeF64)
	unary(OpcodeF64PromoteF32, ValueTypeF32, ValueTypeF64)
	unary(OpcodeI32ReinterpretF32, ValueTypeF32, ValueTypeI32)
	unary(OpcodeI64ReinterpretF64, ValueTypeF64, ValueTypeI64)
	unary(OpcodeF32ReinterpretI32, ValueTypeI32, ValueTypeF32)
	unary(OpcodeF64ReinterpretI64, ValueTypeI64, ValueTypeF64)
	return m
}

func (tc *typeChecker) applyNumericOp(op Opcode) error {
	sig, ok := numericSigs[op]
	if !ok {
		return NewError(ErrCodeInvalidOpcode, InstructionName(op))
	}
	for i := 0; i < sig.arity; i++ {
		if err := tc.pop(sig.in); err != nil {
			return err
		}
	}
	tc.push(sig.out)
	return nil
}
