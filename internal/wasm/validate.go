package wasm

import "fmt"

// ValidateModule runs every static check the binary format and the MVP
// type system require, independent of any store or import resolution:
// index ranges, constant-expression shape, and the abstract type-stack walk
// of every function body. Limits well-formedness is checked by the binary
// decoder, not here. It does not require a
// Store since nothing here depends on what a module is eventually linked
// against.
func ValidateModule(m *Module) error {
	if len(m.TableSection)+boolToInt(hasImportKind(m, ImportKindTable)) > 1 {
		return NewError(ErrCodeMultipleTables, "")
	}
	if len(m.MemorySection)+boolToInt(hasImportKind(m, ImportKindMemory)) > 1 {
		return NewError(ErrCodeMultipleMemories, "")
	}

	funcCount := m.FunctionCount()
	if len(m.FunctionSection) != len(m.CodeSection) {
		return NewError(ErrCodeTypeMismatch, "function and code section counts differ")
	}
	for _, idx := range m.FunctionSection {
		if int(idx) >= len(m.TypeSection) {
			return NewError(ErrCodeUnknownType, fmt.Sprintf("%d", idx))
		}
	}

	if m.StartSection != nil {
		ft := m.TypeOfFunction(*m.StartSection)
		if ft == nil {
			return NewError(ErrCodeUnknownFunction, "")
		}
		if len(ft.Params) != 0 || len(ft.Results) != 0 {
			return NewError(ErrCodeStartFunctionSignature, "")
		}
	}

	for _, g := range m.GlobalSection {
		if err := validateConstantExpression(m, g.Init, g.Type.ValType); err != nil {
			return err
		}
	}
	for _, exp := range m.ExportSection {
		if err := validateExport(m, exp); err != nil {
			return err
		}
	}
	for _, el := range m.ElementSection {
		if err := validateConstantExpression(m, el.OffsetExpr, ValueTypeI32); err != nil {
			return err
		}
		for _, idx := range el.Init {
			if idx >= funcCount {
				return NewError(ErrCodeUnknownFunction, fmt.Sprintf("%d", idx))
			}
		}
	}
	for _, d := range m.DataSection {
		if err := validateConstantExpression(m, d.OffsetExpr, ValueTypeI32); err != nil {
			return err
		}
	}

	for i, code := range m.CodeSection {
		ft := m.TypeSection[m.FunctionSection[i]]
		locals := append(append([]ValueType{}, ft.Params...), code.LocalTypes...)
		if err := validateFunctionBody(m, ft, locals, code.Body); err != nil {
			return err
		}
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func hasImportKind(m *Module, k ImportKind) bool {
	for _, imp := range m.ImportSection {
		if imp.Kind == k {
			return true
		}
	}
	return false
}

func validateExport(m *Module, e *Export) error {
	switch e.Kind {
	case ImportKindFunc:
		if e.Index >= m.FunctionCount() {
			return NewError(ErrCodeUnknownFunction, "")
		}
	case ImportKindTable:
		if e.Index >= uint32(len(m.TableSection))+m.ImportTableCount {
			return NewError(ErrCodeUnknownTable, "")
		}
	case ImportKindMemory:
		if e.Index >= uint32(len(m.MemorySection))+m.ImportMemoryCount {
			return NewError(ErrCodeUnknownMemory, "")
		}
	case ImportKindGlobal:
		if e.Index >= uint32(len(m.GlobalSection))+m.ImportGlobalCount {
			return NewError(ErrCodeUnknownGlobal, "")
		}
	}
	return nil
}

// validateConstantExpression checks that a ConstantExpression produces a
// value of want, and that a global.get expression only references an
// imported, immutable global (the only kind whose value is known before
// this module's own globals are initialized).
func validateConstantExpression(m *Module, ce *ConstantExpression, want ValueType) error {
	switch ce.Opcode {
	case OpcodeI32Const:
		if want != ValueTypeI32 {
			return NewError(ErrCodeTypeMismatch, "")
		}
	case OpcodeI64Const:
		if want != ValueTypeI64 {
			return NewError(ErrCodeTypeMismatch, "")
		}
	case OpcodeF32Const:
		if want != ValueTypeF32 {
			return NewError(ErrCodeTypeMismatch, "")
		}
	case OpcodeF64Const:
		if want != ValueTypeF64 {
			return NewError(ErrCodeTypeMismatch, "")
		}
	case OpcodeGlobalGet:
		idx := decodeU32(ce.Data)
		if idx >= m.ImportGlobalCount {
			return NewError(ErrCodeConstantExpressionRequired, "global.get in a constant expression must reference an imported global")
		}
		gt := globalTypeOf(m, idx)
		if gt == nil {
			return NewError(ErrCodeUnknownGlobal, "")
		}
		if gt.Mutable {
			return NewError(ErrCodeConstantExpressionRequired, "global.get in a constant expression must reference an immutable global")
		}
		if gt.ValType != want {
			return NewError(ErrCodeTypeMismatch, "")
		}
	default:
		return NewError(ErrCodeConstantExpressionRequired, "")
	}
	return nil
}

func globalTypeOf(m *Module, idx Index) *GlobalType {
	var i uint32
	for _, imp := range m.ImportSection {
		if imp.Kind != ImportKindGlobal {
			continue
		}
		if i == idx {
			return imp.DescGlobal
		}
		i++
	}
	return nil
}

func decodeU32(data []byte) uint32 {
	var v uint32
	for i, c := range data {
		v |= uint32(c&0x7f) << (7 * uint(i))
	}
	return v
}

// ---- function body validation: abstract type-stack walk ----

// opSig describes a non-control instruction's stack effect: it pops Pop
// types (checked top-down against Pop[len-1] first) and pushes Push types.
type opSig struct {
	Pop  []ValueType
	Push []ValueType
}

type ctrlFrame struct {
	label      []ValueType // the label's branch-target result arity/types
	baseHeight int
	unreachable bool
	isLoop     bool
}

type typeChecker struct {
	stack  []ValueType
	frames []*ctrlFrame
	m      *Module
	ft     *FunctionType
	locals []ValueType
}

func validateFunctionBody(m *Module, ft *FunctionType, locals []ValueType, body []*Instruction) error {
	tc := &typeChecker{m: m, ft: ft, locals: locals}
	tc.pushFrame(ft.Results, false)
	if err := tc.walk(body); err != nil {
		return err
	}
	f := tc.popFrame()
	return tc.checkEnd(f)
}

func (tc *typeChecker) pushFrame(label []ValueType, isLoop bool) {
	tc.frames = append(tc.frames, &ctrlFrame{label: label, baseHeight: len(tc.stack), isLoop: isLoop})
}

func (tc *typeChecker) popFrame() *ctrlFrame {
	f := tc.frames[len(tc.frames)-1]
	tc.frames = tc.frames[:len(tc.frames)-1]
	return f
}

func (tc *typeChecker) cur() *ctrlFrame { return tc.frames[len(tc.frames)-1] }

func (tc *typeChecker) push(vt ValueType) { tc.stack = append(tc.stack, vt) }

func (tc *typeChecker) pop(want ValueType) error {
	f := tc.cur()
	if len(tc.stack) == f.baseHeight {
		if f.unreachable {
			return nil // polymorphic: popping from an empty post-unreachable stack yields "anything"
		}
		return NewError(ErrCodeTypeMismatch, "stack underflow")
	}
	got := tc.stack[len(tc.stack)-1]
	tc.stack = tc.stack[:len(tc.stack)-1]
	if got != want {
		return NewError(ErrCodeTypeMismatch, fmt.Sprintf("expected %s, got %s", want, got))
	}
	return nil
}

func (tc *typeChecker) popAny() (ValueType, error) {
	f := tc.cur()
	if len(tc.stack) == f.baseHeight {
		if f.unreachable {
			return 0, nil
		}
		return 0, NewError(ErrCodeTypeMismatch, "stack underflow")
	}
	got := tc.stack[len(tc.stack)-1]
	tc.stack = tc.stack[:len(tc.stack)-1]
	return got, nil
}

// setUnreachable marks the current frame polymorphic (after unreachable,
// br, br_table or return) and truncates the stack to the frame's base, so
// any further pop within the frame trivially succeeds regardless of type.
func (tc *typeChecker) setUnreachable() {
	f := tc.cur()
	f.unreachable = true
	tc.stack = tc.stack[:f.baseHeight]
}

func (tc *typeChecker) checkEnd(f *ctrlFrame) error {
	want := f.label
	if len(tc.stack)-f.baseHeight != len(want) && !f.unreachable {
		return NewError(ErrCodeTypeMismatch, "block result arity mismatch")
	}
	// f has already been popped off tc.frames, so results are popped against
	// f itself here rather than through pop, which consults tc.cur().
	for i := len(want) - 1; i >= 0; i-- {
		if len(tc.stack) == f.baseHeight {
			continue // only reachable when f is unreachable (arity checked above)
		}
		got := tc.stack[len(tc.stack)-1]
		tc.stack = tc.stack[:len(tc.stack)-1]
		if got != want[i] {
			return NewError(ErrCodeTypeMismatch, fmt.Sprintf("expected %s, got %s", want[i], got))
		}
	}
	if len(tc.stack) != f.baseHeight && !f.unreachable {
		return NewError(ErrCodeTypeMismatch, "extra values left on stack")
	}
	tc.stack = tc.stack[:f.baseHeight]
	for _, vt := range want {
		tc.push(vt)
	}
	return nil
}

func (tc *typeChecker) labelTypes(depth Index) ([]ValueType, error) {
	if int(depth) >= len(tc.frames) {
		return nil, NewError(ErrCodeUnknownLabel, "")
	}
	f := tc.frames[len(tc.frames)-1-int(depth)]
	if f.isLoop {
		return nil, nil // branching to a loop targets its start (arity 0 in the MVP, no block params)
	}
	return f.label, nil
}

func (tc *typeChecker) walk(body []*Instruction) error {
	for _, instr := range body {
		if err := tc.step(instr); err != nil {
			return err
		}
	}
	return nil
}

func blockResultTypes(m *Module, bt BlockType) []ValueType {
	if bt.Empty {
		return nil
	}
	if bt.HasTypeIndex {
		return m.TypeSection[bt.TypeIndex].Results
	}
	return []ValueType{bt.ValueType}
}

func blockParamTypes(m *Module, bt BlockType) []ValueType {
	if !bt.Empty && bt.HasTypeIndex {
		return m.TypeSection[bt.TypeIndex].Params
	}
	return nil
}

func (tc *typeChecker) step(instr *Instruction) error {
	switch instr.Opcode {
	case OpcodeUnreachable:
		tc.setUnreachable()
	case OpcodeNop:
	case OpcodeBlock, OpcodeLoop:
		imm := instr.Imm.(BlockImm)
		params := blockParamTypes(tc.m, imm.Type)
		for i := len(params) - 1; i >= 0; i-- {
			if err := tc.pop(params[i]); err != nil {
				return err
			}
		}
		label := blockResultTypes(tc.m, imm.Type)
		if instr.Opcode == OpcodeLoop {
			label = params
		}
		tc.pushFrame(label, instr.Opcode == OpcodeLoop)
		for _, p := range params {
			tc.push(p)
		}
		if err := tc.walk(instr.Then); err != nil {
			return err
		}
		f := tc.popFrame()
		want := blockResultTypes(tc.m, imm.Type)
		f.label = want
		if err := tc.checkEnd(f); err != nil {
			return err
		}
	case OpcodeIf:
		if err := tc.pop(ValueTypeI32); err != nil {
			return err
		}
		imm := instr.Imm.(BlockImm)
		params := blockParamTypes(tc.m, imm.Type)
		for i := len(params) - 1; i >= 0; i-- {
			if err := tc.pop(params[i]); err != nil {
				return err
			}
		}
		want := blockResultTypes(tc.m, imm.Type)
		stackSnapshot := append([]ValueType{}, tc.stack...)

		tc.pushFrame(want, false)
		for _, p := range params {
			tc.push(p)
		}
		if err := tc.walk(instr.Then); err != nil {
			return err
		}
		if err := tc.checkEnd(tc.popFrame()); err != nil {
			return err
		}
		thenResult := tc.stack[len(stackSnapshot):]
		tc.stack = stackSnapshot

		tc.pushFrame(want, false)
		for _, p := range params {
			tc.push(p)
		}
		if err := tc.walk(instr.Else); err != nil {
			return err
		}
		if err := tc.checkEnd(tc.popFrame()); err != nil {
			return err
		}
		_ = thenResult // both branches already independently verified against want
	case OpcodeElse, OpcodeEnd:
		// never appear as standalone AST nodes; consumed by the decoder.
	case OpcodeBr:
		depth := instr.Imm.(BrImm).Depth
		label, err := tc.labelTypes(depth)
		if err != nil {
			return err
		}
		for i := len(label) - 1; i >= 0; i-- {
			if err := tc.pop(label[i]); err != nil {
				return err
			}
		}
		tc.setUnreachable()
	case OpcodeBrIf:
		if err := tc.pop(ValueTypeI32); err != nil {
			return err
		}
		depth := instr.Imm.(BrImm).Depth
		label, err := tc.labelTypes(depth)
		if err != nil {
			return err
		}
		for i := len(label) - 1; i >= 0; i-- {
			if err := tc.pop(label[i]); err != nil {
				return err
			}
		}
		for _, vt := range label {
			tc.push(vt)
		}
	case OpcodeBrTable:
		imm := instr.Imm.(BrTableImm)
		if err := tc.pop(ValueTypeI32); err != nil {
			return err
		}
		label, err := tc.labelTypes(imm.Default)
		if err != nil {
			return err
		}
		for _, t := range imm.Targets {
			tl, err := tc.labelTypes(t)
			if err != nil {
				return err
			}
			if len(tl) != len(label) {
				return NewError(ErrCodeTypeMismatch, "br_table arity mismatch")
			}
		}
		for i := len(label) - 1; i >= 0; i-- {
			if err := tc.pop(label[i]); err != nil {
				return err
			}
		}
		tc.setUnreachable()
	case OpcodeReturn:
		for i := len(tc.ft.Results) - 1; i >= 0; i-- {
			if err := tc.pop(tc.ft.Results[i]); err != nil {
				return err
			}
		}
		tc.setUnreachable()
	case OpcodeCall:
		idx := instr.Imm.(CallImm).FuncIndex
		ft := tc.m.TypeOfFunction(idx)
		if ft == nil {
			return NewError(ErrCodeUnknownFunction, "")
		}
		for i := len(ft.Params) - 1; i >= 0; i-- {
			if err := tc.pop(ft.Params[i]); err != nil {
				return err
			}
		}
		for _, vt := range ft.Results {
			tc.push(vt)
		}
	case OpcodeCallIndirect:
		imm := instr.Imm.(CallIndirectImm)
		if int(imm.TypeIndex) >= len(tc.m.TypeSection) {
			return NewError(ErrCodeUnknownType, "")
		}
		if len(tc.m.TableSection)+boolToInt(hasImportKind(tc.m, ImportKindTable)) == 0 {
			return NewError(ErrCodeUnknownTable, "")
		}
		if err := tc.pop(ValueTypeI32); err != nil {
			return err
		}
		ft := tc.m.TypeSection[imm.TypeIndex]
		for i := len(ft.Params) - 1; i >= 0; i-- {
			if err := tc.pop(ft.Params[i]); err != nil {
				return err
			}
		}
		for _, vt := range ft.Results {
			tc.push(vt)
		}
	case OpcodeDrop:
		if _, err := tc.popAny(); err != nil {
			return err
		}
	case OpcodeSelect:
		if err := tc.pop(ValueTypeI32); err != nil {
			return err
		}
		b, err := tc.popAny()
		if err != nil {
			return err
		}
		a, err := tc.popAny()
		if err != nil {
			return err
		}
		if a != 0 && b != 0 && a != b {
			return NewError(ErrCodeTypeMismatch, "select operands must match")
		}
		if a != 0 {
			tc.push(a)
		} else {
			tc.push(b)
		}
	case OpcodeLocalGet:
		idx := instr.Imm.(LocalImm).Index
		if int(idx) >= len(tc.locals) {
			return NewError(ErrCodeUnknownLocal, "")
		}
		tc.push(tc.locals[idx])
	case OpcodeLocalSet:
		idx := instr.Imm.(LocalImm).Index
		if int(idx) >= len(tc.locals) {
			return NewError(ErrCodeUnknownLocal, "")
		}
		if err := tc.pop(tc.locals[idx]); err != nil {
			return err
		}
	case OpcodeLocalTee:
		idx := instr.Imm.(LocalImm).Index
		if int(idx) >= len(tc.locals) {
			return NewError(ErrCodeUnknownLocal, "")
		}
		vt := tc.locals[idx]
		if err := tc.pop(vt); err != nil {
			return err
		}
		tc.push(vt)
	case OpcodeGlobalGet:
		idx := instr.Imm.(GlobalImm).Index
		gt := globalTypeAt(tc.m, idx)
		if gt == nil {
			return NewError(ErrCodeUnknownGlobal, "")
		}
		tc.push(gt.ValType)
	case OpcodeGlobalSet:
		idx := instr.Imm.(GlobalImm).Index
		gt := globalTypeAt(tc.m, idx)
		if gt == nil {
			return NewError(ErrCodeUnknownGlobal, "")
		}
		if !gt.Mutable {
			return NewError(ErrCodeGlobalImmutable, "")
		}
		if err := tc.pop(gt.ValType); err != nil {
			return err
		}
	case OpcodeMemorySize:
		if err := tc.requireMemory(); err != nil {
			return err
		}
		tc.push(ValueTypeI32)
	case OpcodeMemoryGrow:
		if err := tc.requireMemory(); err != nil {
			return err
		}
		if err := tc.pop(ValueTypeI32); err != nil {
			return err
		}
		tc.push(ValueTypeI32)
	case OpcodeI32Const:
		tc.push(ValueTypeI32)
	case OpcodeI64Const:
		tc.push(ValueTypeI64)
	case OpcodeF32Const:
		tc.push(ValueTypeF32)
	case OpcodeF64Const:
		tc.push(ValueTypeF64)
	default:
		if memArgOpcode(instr.Opcode) {
			if err := tc.requireMemory(); err != nil {
				return err
			}
			return tc.applyMemOp(instr.Opcode)
		}
		return tc.applyNumericOp(instr.Opcode)
	}
	return nil
}

func (tc *typeChecker) requireMemory() error {
	if len(tc.m.MemorySection)+boolToInt(hasImportKind(tc.m, ImportKindMemory)) == 0 {
		return NewError(ErrCodeUnknownMemory, "")
	}
	return nil
}

func globalTypeAt(m *Module, idx Index) *GlobalType {
	if idx < m.ImportGlobalCount {
		return globalTypeOf(m, idx)
	}
	local := idx - m.ImportGlobalCount
	if int(local) >= len(m.GlobalSection) {
		return nil
	}
	return m.GlobalSection[local].Type
}
