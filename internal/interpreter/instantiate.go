package interpreter

import (
	"fmt"

	"github.com/second-state/ssvm-go/internal/leb128"
	"github.com/second-state/ssvm-go/internal/wasm"
)

// Instantiate resolves m's imports against modules already registered in
// store, allocates its locally defined functions/tables/memories/globals,
// runs element and data segment initialization, and (if name is non-empty)
// registers the result so later modules can import from it. A failure at
// any point rolls the store back to its state before this call started, so
// a rejected module never leaves a partially-allocated instance behind.
func Instantiate(store *wasm.Store, name string, m *wasm.Module) (*wasm.ModuleInstance, error) {
	mi, err := instantiate(store, name, m)
	if err != nil {
		store.Reset()
		return nil, err
	}
	return mi, nil
}

func instantiate(store *wasm.Store, name string, m *wasm.Module) (*wasm.ModuleInstance, error) {
	store.Mark()

	mi := &wasm.ModuleInstance{Name: name, Types: m.TypeSection, Exports: map[string]*wasm.Export{}}

	if err := resolveImports(store, m, mi); err != nil {
		return nil, err
	}
	if err := allocateLocals(store, m, mi); err != nil {
		return nil, err
	}

	if err := initGlobalsAlreadyAllocated(store, m, mi); err != nil {
		return nil, err
	}

	if err := initElements(store, m, mi); err != nil {
		return nil, err
	}
	if err := initData(store, m, mi); err != nil {
		return nil, err
	}

	for _, exp := range m.ExportSection {
		mi.Exports[exp.Name] = exp
	}

	if m.StartSection != nil {
		engine := NewEngine(store)
		if _, err := engine.Invoke(mi.Funcs[*m.StartSection], nil); err != nil {
			return nil, err
		}
	}

	if name != "" {
		if err := store.RegisterModuleInstance(name, mi); err != nil {
			return nil, err
		}
	}
	return mi, nil
}

func resolveImports(store *wasm.Store, m *wasm.Module, mi *wasm.ModuleInstance) error {
	for _, imp := range m.ImportSection {
		srcMod, ok := store.FindModule(imp.Module)
		if !ok {
			return wasm.NewError(wasm.ErrCodeUnknownImport, fmt.Sprintf("%s.%s", imp.Module, imp.Name))
		}
		exp, ok := srcMod.Exports[imp.Name]
		if !ok || exp.Kind != imp.Kind {
			return wasm.NewError(wasm.ErrCodeUnknownImport, fmt.Sprintf("%s.%s", imp.Module, imp.Name))
		}
		switch imp.Kind {
		case wasm.ImportKindFunc:
			addr := srcMod.Funcs[exp.Index]
			if !sameFunctionType(store.GetFunction(addr).Type, m.TypeSection[imp.DescFunc]) {
				return wasm.NewError(wasm.ErrCodeIncompatibleImportType, fmt.Sprintf("%s.%s", imp.Module, imp.Name))
			}
			mi.Funcs = append(mi.Funcs, addr)
		case wasm.ImportKindTable:
			addr := srcMod.Tables[exp.Index]
			t := store.GetTable(addr)
			if !limitsCompatible(t.Type.Limits, imp.DescTable.Limits) {
				return wasm.NewError(wasm.ErrCodeIncompatibleImportType, fmt.Sprintf("%s.%s", imp.Module, imp.Name))
			}
			mi.Tables = append(mi.Tables, addr)
		case wasm.ImportKindMemory:
			addr := srcMod.Memories[exp.Index]
			mem := store.GetMemory(addr)
			if !limitsCompatible(mem.Type, imp.DescMemory.Limits) {
				return wasm.NewError(wasm.ErrCodeIncompatibleImportType, fmt.Sprintf("%s.%s", imp.Module, imp.Name))
			}
			mi.Memories = append(mi.Memories, addr)
		case wasm.ImportKindGlobal:
			addr := srcMod.Globals[exp.Index]
			g := store.GetGlobal(addr)
			if g.Type.ValType != imp.DescGlobal.ValType || g.Type.Mutable != imp.DescGlobal.Mutable {
				return wasm.NewError(wasm.ErrCodeIncompatibleImportType, fmt.Sprintf("%s.%s", imp.Module, imp.Name))
			}
			mi.Globals = append(mi.Globals, addr)
		}
	}
	return nil
}

// limitsCompatible holds when an imported table/memory's actual limits
// satisfy the importing module's declared bound: its minimum must be at
// least as large as required, and if the importer requires a maximum, the
// provided instance must have one no larger.
func limitsCompatible(actual, required wasm.Limits) bool {
	if actual.Min < required.Min {
		return false
	}
	if required.Max == nil {
		return true
	}
	return actual.Max != nil && *actual.Max <= *required.Max
}

func allocateLocals(store *wasm.Store, m *wasm.Module, mi *wasm.ModuleInstance) error {
	for i, typeIdx := range m.FunctionSection {
		fi := &wasm.FunctionInstance{
			Type:   m.TypeSection[typeIdx],
			Module: mi,
			Code:   m.CodeSection[i],
		}
		mi.Funcs = append(mi.Funcs, store.ImportFunction(fi))
	}
	for _, tt := range m.TableSection {
		n := tt.Limits.Min
		ti := &wasm.TableInstance{Type: tt, Elements: make([]wasm.FuncAddr, n), HasElement: make([]bool, n)}
		mi.Tables = append(mi.Tables, store.ImportTable(ti))
	}
	for _, mt := range m.MemorySection {
		max := store.MemoryMaxPages
		if mt.Limits.Max != nil {
			if *mt.Limits.Max > store.MemoryMaxPages {
				return wasm.NewError(wasm.ErrCodeMemoryTooLarge, "")
			}
			max = *mt.Limits.Max
		}
		memInst := &wasm.MemoryInstance{
			Type: mt.Limits,
			Data: make([]byte, uint64(mt.Limits.Min)*wasm.MemoryPageSize),
			Max:  max,
		}
		mi.Memories = append(mi.Memories, store.ImportMemory(memInst))
	}
	for _, g := range m.GlobalSection {
		mi.Globals = append(mi.Globals, store.ImportGlobal(&wasm.GlobalInstance{Type: g.Type}))
	}
	return nil
}

// initGlobalsAlreadyAllocated evaluates each locally defined global's
// constant-expression initializer now that mi.Globals holds real
// addresses (a global.get initializer can only reference an imported
// global, which by validation precedes every local one in the index
// space, so it is always already resolvable here).
func initGlobalsAlreadyAllocated(store *wasm.Store, m *wasm.Module, mi *wasm.ModuleInstance) error {
	localBase := len(mi.Globals) - len(m.GlobalSection)
	for i, g := range m.GlobalSection {
		v, err := evalConstExpr(store, mi, g.Init)
		if err != nil {
			return err
		}
		store.GetGlobal(mi.Globals[localBase+i]).Value = v
	}
	return nil
}

func evalConstExpr(store *wasm.Store, mi *wasm.ModuleInstance, ce *wasm.ConstantExpression) (uint64, error) {
	switch ce.Opcode {
	case wasm.OpcodeI32Const:
		v, _, err := leb128.LoadInt32(ce.Data)
		if err != nil {
			return 0, err
		}
		return uint64(uint32(v)), nil
	case wasm.OpcodeI64Const:
		v, _, err := leb128.LoadInt64(ce.Data)
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	case wasm.OpcodeF32Const:
		return uint64(leU32(ce.Data)), nil
	case wasm.OpcodeF64Const:
		return leU64(ce.Data), nil
	case wasm.OpcodeGlobalGet:
		idx, _, err := leb128.LoadUint32(ce.Data)
		if err != nil {
			return 0, err
		}
		return store.GetGlobal(mi.Globals[idx]).Value, nil
	default:
		return 0, wasm.NewError(wasm.ErrCodeConstantExpressionRequired, "")
	}
}

func evalConstExprI32(store *wasm.Store, mi *wasm.ModuleInstance, ce *wasm.ConstantExpression) (uint32, error) {
	v, err := evalConstExpr(store, mi, ce)
	return uint32(v), err
}

// initElements bounds-checks every active element segment against its
// target table before writing any of them (two-phase bounds-then-commit),
// so a module with one out-of-bounds segment among several never leaves
// the earlier ones partially applied.
func initElements(store *wasm.Store, m *wasm.Module, mi *wasm.ModuleInstance) error {
	type planned struct {
		table  *wasm.TableInstance
		offset uint32
		seg    *wasm.ElementSegment
	}
	var plans []planned
	for _, seg := range m.ElementSection {
		offset, err := evalConstExprI32(store, mi, seg.OffsetExpr)
		if err != nil {
			return err
		}
		table := store.GetTable(mi.Tables[seg.TableIndex])
		if uint64(offset)+uint64(len(seg.Init)) > uint64(len(table.Elements)) {
			return wasm.NewError(wasm.ErrCodeElementSegmentOutOfBounds, "")
		}
		plans = append(plans, planned{table, offset, seg})
	}
	for _, p := range plans {
		for i, funcIdx := range p.seg.Init {
			p.table.Elements[p.offset+uint32(i)] = mi.Funcs[funcIdx]
			p.table.HasElement[p.offset+uint32(i)] = true
		}
	}
	return nil
}

// initData mirrors initElements for the data section: bounds-check every
// segment against its target memory before copying any bytes.
func initData(store *wasm.Store, m *wasm.Module, mi *wasm.ModuleInstance) error {
	type planned struct {
		mem    *wasm.MemoryInstance
		offset uint32
		seg    *wasm.DataSegment
	}
	var plans []planned
	for _, seg := range m.DataSection {
		offset, err := evalConstExprI32(store, mi, seg.OffsetExpr)
		if err != nil {
			return err
		}
		mem := store.GetMemory(mi.Memories[seg.MemoryIndex])
		if uint64(offset)+uint64(len(seg.Init)) > uint64(len(mem.Data)) {
			return wasm.NewError(wasm.ErrCodeDataSegmentOutOfBounds, "")
		}
		plans = append(plans, planned{mem, offset, seg})
	}
	for _, p := range plans {
		copy(p.mem.Data[p.offset:], p.seg.Init)
	}
	return nil
}

func leU32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(b); i++ {
		v |= uint32(b[i]) << (8 * uint(i))
	}
	return v
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}
