package wasm

import "sync"

// FuncAddr, TableAddr, MemoryAddr and GlobalAddr are stable indices into a
// Store's flat instance pools. Unlike a pointer, an address survives a
// pool reallocation and is what export/import bindings and the frame stack
// actually carry around, matching the store model described by the
// upstream C++ interpreter this runtime's addressing scheme is grounded on.
type FuncAddr = uint32
type TableAddr = uint32
type MemoryAddr = uint32
type GlobalAddr = uint32

// HostFunction is a function implemented in Go rather than decoded from a
// Wasm module, registered into the store as an import target.
type HostFunction struct {
	Type *FunctionType
	Func func(ctx *ExecContext, args []uint64) ([]uint64, error)
}

// ExecContext is threaded through host function calls. Store is the store
// the calling engine runs against; Instance is the called FunctionInstance's
// Module, which is nil for a host function, so host code reaches memories
// and globals only through Store.
type ExecContext struct {
	Store    *Store
	Instance *ModuleInstance
}

// FunctionInstance is an entry of the store's function pool: either a
// decoded Wasm function body (Code/Module set, Host nil) or a host function
// (Host set, Code/Module nil).
type FunctionInstance struct {
	Type   *FunctionType
	Module *ModuleInstance // owning module, nil for host functions
	Code   *Code           // nil for host functions
	Host   *HostFunction   // nil for Wasm functions
}

// TableInstance is an entry of the store's table pool: a slice of function
// addresses; a slot whose HasElement entry is false holds no element (trap
// on call).
type TableInstance struct {
	Type     *TableType
	Elements []FuncAddr
	// HasElement tracks which slots have actually been initialized, since
	// FuncAddr 0 is a valid address and cannot double as "empty".
	HasElement []bool
}

// MemoryInstance is an entry of the store's memory pool: a byte slice sized
// in whole pages, grown only by Grow.
type MemoryInstance struct {
	Type Limits
	Data []byte
	Max  uint32 // resolved ceiling: Type.Max if declared, else the store's MemoryMaxPages
}

// PageCount returns the memory's current size in 64KiB pages.
func (m *MemoryInstance) PageCount() uint32 {
	return uint32(len(m.Data) / MemoryPageSize)
}

// Grow extends the memory by delta pages, returning the previous page
// count, or -1 if growth would exceed the memory's ceiling.
func (m *MemoryInstance) Grow(delta uint32) int32 {
	cur := m.PageCount()
	if delta == 0 {
		return int32(cur)
	}
	newPages := cur + delta
	if newPages < cur || newPages > m.Max {
		return -1
	}
	m.Data = append(m.Data, make([]byte, uint64(delta)*MemoryPageSize)...)
	return int32(cur)
}

// GlobalInstance is an entry of the store's global pool.
type GlobalInstance struct {
	Type  *GlobalType
	Value uint64 // raw bit pattern, reinterpreted per Type.ValType
}

// ModuleInstance is the runtime-resident view of an instantiated module: the
// concatenated index spaces (imports first, then local definitions) each
// expressed as addresses into the owning Store's pools, plus the exports
// map a caller looks functions up by name through.
type ModuleInstance struct {
	Name    string
	Types   []*FunctionType
	Funcs   []FuncAddr
	Tables  []TableAddr
	Memories []MemoryAddr
	Globals []GlobalAddr
	Exports map[string]*Export
}

// Store owns every live instance's storage, addressed by flat pool index.
// It is the runtime analogue of the upstream interpreter's StoreManager:
// importFunction/importTable/importMemory/importGlobal append to a pool and
// hand back the new entry's address, and reset() discards everything
// allocated by a partially-failed registerModule so retrying a load never
// leaks a half-initialized instance into a later one.
type Store struct {
	mu sync.Mutex

	Functions []*FunctionInstance
	Tables    []*TableInstance
	Memories  []*MemoryInstance
	Globals   []*GlobalInstance

	modules map[string]*ModuleInstance

	// MemoryMaxPages is the ceiling applied to a module's memory when it
	// declares no explicit memory.max, and the limit instantiation rejects
	// an explicit memory.max larger than. Defaults to MaxMemoryPages.
	MemoryMaxPages uint32

	// floor* mark the pool lengths at the start of the registration
	// currently in flight, so reset() can truncate back to them.
	floorFuncs, floorTables, floorMemories, floorGlobals int
}

// NewStore creates an empty store with the MVP's full memory ceiling.
func NewStore() *Store {
	return &Store{modules: make(map[string]*ModuleInstance), MemoryMaxPages: MaxMemoryPages}
}

// Mark records the current pool lengths as the rollback floor. Call before
// starting a registration; call Reset if that registration fails partway.
func (s *Store) Mark() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floorFuncs = len(s.Functions)
	s.floorTables = len(s.Tables)
	s.floorMemories = len(s.Memories)
	s.floorGlobals = len(s.Globals)
}

// Reset discards every instance allocated since the last Mark, so a module
// that fails partway through instantiation (an out-of-bounds element
// segment, say) leaves the store exactly as it was before the attempt.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Functions = s.Functions[:s.floorFuncs]
	s.Tables = s.Tables[:s.floorTables]
	s.Memories = s.Memories[:s.floorMemories]
	s.Globals = s.Globals[:s.floorGlobals]
}

func (s *Store) importFunction(fi *FunctionInstance) FuncAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Functions = append(s.Functions, fi)
	return FuncAddr(len(s.Functions) - 1)
}

func (s *Store) importTable(ti *TableInstance) TableAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tables = append(s.Tables, ti)
	return TableAddr(len(s.Tables) - 1)
}

func (s *Store) importMemory(mi *MemoryInstance) MemoryAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Memories = append(s.Memories, mi)
	return MemoryAddr(len(s.Memories) - 1)
}

func (s *Store) importGlobal(gi *GlobalInstance) GlobalAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Globals = append(s.Globals, gi)
	return GlobalAddr(len(s.Globals) - 1)
}

// GetFunction resolves a function address to its instance.
func (s *Store) GetFunction(addr FuncAddr) *FunctionInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Functions[addr]
}

// GetTable resolves a table address to its instance.
func (s *Store) GetTable(addr TableAddr) *TableInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Tables[addr]
}

// GetMemory resolves a memory address to its instance.
func (s *Store) GetMemory(addr MemoryAddr) *MemoryInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Memories[addr]
}

// GetGlobal resolves a global address to its instance.
func (s *Store) GetGlobal(addr GlobalAddr) *GlobalInstance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Globals[addr]
}

// FindModule looks up a previously registered module instance by name.
func (s *Store) FindModule(name string) (*ModuleInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mi, ok := s.modules[name]
	return mi, ok
}

// RegisterModuleInstance names mi so later instantiations can import from
// it, failing if the name is already taken.
func (s *Store) RegisterModuleInstance(name string, mi *ModuleInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.modules[name]; ok {
		return NewError(ErrCodeDuplicateModuleName, name)
	}
	s.modules[name] = mi
	return nil
}

// ImportFunction, ImportTable, ImportMemory and ImportGlobal append a new
// instance to the corresponding pool and return its address. They exist as
// exported wrappers (in addition to the unexported import* used internally
// during instantiation) so a caller building an ad hoc ImportObject of host
// functions can populate the store directly.
func (s *Store) ImportFunction(fi *FunctionInstance) FuncAddr   { return s.importFunction(fi) }
func (s *Store) ImportTable(ti *TableInstance) TableAddr        { return s.importTable(ti) }
func (s *Store) ImportMemory(mi *MemoryInstance) MemoryAddr     { return s.importMemory(mi) }
func (s *Store) ImportGlobal(gi *GlobalInstance) GlobalAddr     { return s.importGlobal(gi) }
