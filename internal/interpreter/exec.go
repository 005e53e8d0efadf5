package interpreter

import (
	"github.com/second-state/ssvm-go/internal/logging"
	"github.com/second-state/ssvm-go/internal/wasm"
)

// maxCallDepth bounds recursion through Call/CallIndirect; exceeding it
// traps rather than overflowing the Go goroutine stack.
const maxCallDepth = 8192

type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlBranch
	ctrlReturn
)

type ctrlResult struct {
	kind        ctrlKind
	branchDepth uint32
}

// frame is the activation record for one function call: its locals (params
// followed by declared locals) and the module instance it executes against,
// which is what every instruction resolving a function/table/memory/global
// index looks through.
type frame struct {
	locals []uint64
	module *wasm.ModuleInstance
}

// Engine runs compiled Wasm functions against a store. It is created once
// per Store and reused across every Invoke call against modules registered
// in it.
type Engine struct {
	store *wasm.Store
	depth int
	log   logging.Logger
}

// NewEngine creates an execution engine bound to store.
func NewEngine(store *wasm.Store) *Engine {
	return &Engine{store: store, log: logging.Discard()}
}

// WithLogger returns a copy of e that logs through l.
func (e *Engine) WithLogger(l logging.Logger) *Engine {
	cp := *e
	cp.log = l
	return &cp
}

// Invoke calls the function at addr with args, returning its results. args
// and the return slice are raw 64-bit patterns, one per declared parameter
// or result, reinterpreted according to the function's signature.
func (e *Engine) Invoke(addr wasm.FuncAddr, args []uint64) (results []uint64, err error) {
	fi := e.store.GetFunction(addr)
	if fi == nil {
		return nil, wasm.NewError(wasm.ErrCodeNoSuchFunction, "")
	}
	if len(args) != len(fi.Type.Params) {
		return nil, wasm.NewError(wasm.ErrCodeFunctionSignatureMismatch, "")
	}
	defer func() {
		if err != nil {
			e.log.Error("invoke failed", "error", err)
		}
	}()
	return e.callFunc(fi, args)
}

func (e *Engine) callFunc(fi *wasm.FunctionInstance, args []uint64) ([]uint64, error) {
	if fi.Host != nil {
		ctx := &wasm.ExecContext{Store: e.store, Instance: fi.Module}
		return fi.Host.Func(ctx, args)
	}

	e.depth++
	defer func() { e.depth-- }()
	if e.depth > maxCallDepth {
		return nil, wasm.NewError(wasm.ErrCodeTrapCallStackExhausted, "")
	}

	locals := make([]uint64, len(fi.Type.Params)+len(fi.Code.LocalTypes))
	copy(locals, args)
	fr := &frame{locals: locals, module: fi.Module}
	vs := &valueStack{}

	res, err := e.runBody(fi.Code.Body, vs, fr)
	if err != nil {
		return nil, err
	}
	if res.kind == ctrlBranch {
		return nil, wasm.NewError(wasm.ErrCodeTrapUnreachable, "branch escaped function body")
	}

	results := make([]uint64, len(fi.Type.Results))
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = vs.popU64()
	}
	return results, nil
}

func (e *Engine) runBody(body []*wasm.Instruction, vs *valueStack, fr *frame) (ctrlResult, error) {
	for _, instr := range body {
		res, err := e.step(instr, vs, fr)
		if err != nil {
			return ctrlResult{}, err
		}
		if res.kind != ctrlNone {
			return res, nil
		}
	}
	return ctrlResult{}, nil
}

// unwind adjusts a nested body's control result for the enclosing
// block/loop/if: a branch targeting depth 0 is caught here (the caller
// decides what "caught" means for its own construct kind); anything deeper
// propagates with depth decremented by one enclosing label.
func unwind(res ctrlResult) (caught bool, propagated ctrlResult) {
	if res.kind != ctrlBranch {
		return false, res
	}
	if res.branchDepth == 0 {
		return true, ctrlResult{}
	}
	return false, ctrlResult{kind: ctrlBranch, branchDepth: res.branchDepth - 1}
}

func (e *Engine) step(instr *wasm.Instruction, vs *valueStack, fr *frame) (ctrlResult, error) {
	switch instr.Opcode {
	case wasm.OpcodeUnreachable:
		return ctrlResult{}, wasm.NewError(wasm.ErrCodeTrapUnreachable, "")
	case wasm.OpcodeNop:
		return ctrlResult{}, nil

	case wasm.OpcodeBlock:
		imm := instr.Imm.(wasm.BlockImm)
		base := vs.len() - blockParamArity(fr.module.Types, imm.Type)
		res, err := e.runBody(instr.Then, vs, fr)
		if err != nil {
			return ctrlResult{}, err
		}
		if res.kind == ctrlReturn {
			return res, nil
		}
		if caught, prop := unwind(res); caught {
			vs.dropToArity(base, blockResultArity(fr.module.Types, imm.Type))
		} else if prop.kind != ctrlNone {
			return prop, nil
		}
		return ctrlResult{}, nil

	case wasm.OpcodeLoop:
		// A branch reaching depth 0 here restarts the loop at its label,
		// which in the MVP always carries arity 0 (branching to a loop
		// targets its start, never its declared result type), so the
		// operand stack is simply dropped back to its height on entry.
		base := vs.len()
		for {
			res, err := e.runBody(instr.Then, vs, fr)
			if err != nil {
				return ctrlResult{}, err
			}
			if res.kind == ctrlReturn {
				return res, nil
			}
			if res.kind == ctrlBranch && res.branchDepth == 0 {
				vs.truncate(base)
				continue
			}
			if caught, prop := unwind(res); !caught && prop.kind != ctrlNone {
				return prop, nil
			}
			return ctrlResult{}, nil
		}

	case wasm.OpcodeIf:
		imm := instr.Imm.(wasm.BlockImm)
		cond := vs.popI32()
		body := instr.Else
		if cond != 0 {
			body = instr.Then
		}
		base := vs.len() - blockParamArity(fr.module.Types, imm.Type)
		res, err := e.runBody(body, vs, fr)
		if err != nil {
			return ctrlResult{}, err
		}
		if res.kind == ctrlReturn {
			return res, nil
		}
		if caught, prop := unwind(res); caught {
			vs.dropToArity(base, blockResultArity(fr.module.Types, imm.Type))
		} else if prop.kind != ctrlNone {
			return prop, nil
		}
		return ctrlResult{}, nil

	case wasm.OpcodeBr:
		return ctrlResult{kind: ctrlBranch, branchDepth: instr.Imm.(wasm.BrImm).Depth}, nil
	case wasm.OpcodeBrIf:
		if vs.popI32() != 0 {
			return ctrlResult{kind: ctrlBranch, branchDepth: instr.Imm.(wasm.BrImm).Depth}, nil
		}
		return ctrlResult{}, nil
	case wasm.OpcodeBrTable:
		imm := instr.Imm.(wasm.BrTableImm)
		idx := vs.popU32()
		depth := imm.Default
		if int(idx) < len(imm.Targets) {
			depth = imm.Targets[idx]
		}
		return ctrlResult{kind: ctrlBranch, branchDepth: depth}, nil
	case wasm.OpcodeReturn:
		return ctrlResult{kind: ctrlReturn}, nil

	case wasm.OpcodeCall:
		idx := instr.Imm.(wasm.CallImm).FuncIndex
		addr := fr.module.Funcs[idx]
		fi := e.store.GetFunction(addr)
		args := make([]uint64, len(fi.Type.Params))
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = vs.popU64()
		}
		results, err := e.callFunc(fi, args)
		if err != nil {
			return ctrlResult{}, err
		}
		for _, r := range results {
			vs.pushU64(r)
		}
		return ctrlResult{}, nil

	case wasm.OpcodeCallIndirect:
		imm := instr.Imm.(wasm.CallIndirectImm)
		elemIdx := vs.popU32()
		tableAddr := fr.module.Tables[imm.TableIndex]
		table := e.store.GetTable(tableAddr)
		if int(elemIdx) >= len(table.Elements) {
			return ctrlResult{}, wasm.NewError(wasm.ErrCodeTrapOutOfBoundsTableAccess, "")
		}
		if !table.HasElement[elemIdx] {
			return ctrlResult{}, wasm.NewError(wasm.ErrCodeTrapUninitializedElement, "")
		}
		fi := e.store.GetFunction(table.Elements[elemIdx])
		wantType := fr.module.Types[imm.TypeIndex]
		if !sameFunctionType(fi.Type, wantType) {
			return ctrlResult{}, wasm.NewError(wasm.ErrCodeTrapIndirectCallTypeMismatch, "")
		}
		args := make([]uint64, len(fi.Type.Params))
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = vs.popU64()
		}
		results, err := e.callFunc(fi, args)
		if err != nil {
			return ctrlResult{}, err
		}
		for _, r := range results {
			vs.pushU64(r)
		}
		return ctrlResult{}, nil

	case wasm.OpcodeDrop:
		vs.popU64()
		return ctrlResult{}, nil
	case wasm.OpcodeSelect:
		cond := vs.popI32()
		b := vs.popU64()
		a := vs.popU64()
		if cond != 0 {
			vs.pushU64(a)
		} else {
			vs.pushU64(b)
		}
		return ctrlResult{}, nil

	case wasm.OpcodeLocalGet:
		vs.pushU64(fr.locals[instr.Imm.(wasm.LocalImm).Index])
		return ctrlResult{}, nil
	case wasm.OpcodeLocalSet:
		fr.locals[instr.Imm.(wasm.LocalImm).Index] = vs.popU64()
		return ctrlResult{}, nil
	case wasm.OpcodeLocalTee:
		v := vs.popU64()
		fr.locals[instr.Imm.(wasm.LocalImm).Index] = v
		vs.pushU64(v)
		return ctrlResult{}, nil
	case wasm.OpcodeGlobalGet:
		addr := fr.module.Globals[instr.Imm.(wasm.GlobalImm).Index]
		vs.pushU64(e.store.GetGlobal(addr).Value)
		return ctrlResult{}, nil
	case wasm.OpcodeGlobalSet:
		addr := fr.module.Globals[instr.Imm.(wasm.GlobalImm).Index]
		e.store.GetGlobal(addr).Value = vs.popU64()
		return ctrlResult{}, nil

	case wasm.OpcodeMemorySize:
		mem := e.store.GetMemory(fr.module.Memories[0])
		vs.pushU32(mem.PageCount())
		return ctrlResult{}, nil
	case wasm.OpcodeMemoryGrow:
		mem := e.store.GetMemory(fr.module.Memories[0])
		delta := vs.popU32()
		vs.pushI32(mem.Grow(delta))
		return ctrlResult{}, nil

	case wasm.OpcodeI32Const:
		vs.pushI32(instr.Imm.(wasm.I32Imm).Value)
		return ctrlResult{}, nil
	case wasm.OpcodeI64Const:
		vs.pushI64(instr.Imm.(wasm.I64Imm).Value)
		return ctrlResult{}, nil
	case wasm.OpcodeF32Const:
		vs.pushF32(instr.Imm.(wasm.F32Imm).Value)
		return ctrlResult{}, nil
	case wasm.OpcodeF64Const:
		vs.pushF64(instr.Imm.(wasm.F64Imm).Value)
		return ctrlResult{}, nil

	default:
		if isMemArgOpcode(instr.Opcode) {
			return ctrlResult{}, e.execMemOp(instr, vs, fr)
		}
		return ctrlResult{}, execNumericOp(instr.Opcode, vs)
	}
}

// blockParamArity and blockResultArity mirror the validator's
// blockParamTypes/blockResultTypes (internal/wasm/validate.go), resolving a
// block/loop/if's declared type against the owning module's type section,
// now reached through the instance's already-resolved Types rather than a
// *wasm.Module.
func blockParamArity(types []*wasm.FunctionType, bt wasm.BlockType) int {
	if !bt.Empty && bt.HasTypeIndex {
		return len(types[bt.TypeIndex].Params)
	}
	return 0
}

func blockResultArity(types []*wasm.FunctionType, bt wasm.BlockType) int {
	if bt.Empty {
		return 0
	}
	if bt.HasTypeIndex {
		return len(types[bt.TypeIndex].Results)
	}
	return 1
}

func sameFunctionType(a, b *wasm.FunctionType) bool {
	if len(a.Params) != len(b.Params) || len(a.Results) != len(b.Results) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	for i := range a.Results {
		if a.Results[i] != b.Results[i] {
			return false
		}
	}
	return true
}
