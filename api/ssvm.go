// Package api is the public embedding surface of the runtime: parse a Wasm
// binary into a Module, register host or Wasm modules against a Runtime,
// instantiate a registered Module, and invoke an exported function.
package api

import (
	"fmt"
	"os"

	"github.com/second-state/ssvm-go/internal/interpreter"
	"github.com/second-state/ssvm-go/internal/logging"
	"github.com/second-state/ssvm-go/internal/wasm"
	"github.com/second-state/ssvm-go/internal/wasm/binary"
)

// Module is the decoded, validated form of a Wasm binary, ready to be
// instantiated any number of times against different runtimes.
type Module = wasm.Module

// Instance is a live, instantiated module: its functions, tables, memories
// and globals are allocated in a Runtime's store and reachable by Invoke.
type Instance = wasm.ModuleInstance

// ParseModule decodes and validates a Wasm binary, returning the resulting
// Module. It does not allocate any runtime state; the same Module can be
// registered into any number of Runtimes.
func ParseModule(wasmBytes []byte) (*Module, error) {
	m, err := binary.DecodeModule(wasmBytes)
	if err != nil {
		return nil, err
	}
	if err := wasm.ValidateModule(m); err != nil {
		return nil, err
	}
	return m, nil
}

// ParseModuleFile reads path from disk and parses it as a Wasm binary.
func ParseModuleFile(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ssvm: read %s: %w", path, err)
	}
	return ParseModule(data)
}

// ImportObject groups a set of host-provided functions, tables, memories and
// globals under a single module name, the unit RegisterImportObject binds
// into a Runtime's store for later modules to import from.
type ImportObject struct {
	ModuleName string
	Functions  map[string]*wasm.HostFunction
	Tables     map[string]*wasm.TableInstance
	Memories   map[string]*wasm.MemoryInstance
	Globals    map[string]*wasm.GlobalInstance
}

// NewImportObject creates an empty ImportObject named name.
func NewImportObject(name string) *ImportObject {
	return &ImportObject{
		ModuleName: name,
		Functions:  map[string]*wasm.HostFunction{},
		Tables:     map[string]*wasm.TableInstance{},
		Memories:   map[string]*wasm.MemoryInstance{},
		Globals:    map[string]*wasm.GlobalInstance{},
	}
}

// AddFunction registers a host function under name, callable by a Wasm
// module importing ModuleName.name.
func (o *ImportObject) AddFunction(name string, ft *wasm.FunctionType, fn func(ctx *wasm.ExecContext, args []uint64) ([]uint64, error)) {
	o.Functions[name] = &wasm.HostFunction{Type: ft, Func: fn}
}

// Runtime owns a store and the engine that executes against it. It is the
// entry point for registering, instantiating and invoking modules; a
// single Runtime is expected to back one logical Wasm sandbox, with
// imports resolved across every module registered into it.
type Runtime struct {
	store  *wasm.Store
	engine *interpreter.Engine
	log    logging.Logger
}

// NewRuntime creates a Runtime with an empty store and a discarding logger.
func NewRuntime() *Runtime {
	store := wasm.NewStore()
	return &Runtime{store: store, engine: interpreter.NewEngine(store), log: logging.Discard()}
}

// WithLogger returns r configured to log through l, replacing the default
// no-op logger. It mutates and returns the same Runtime for chaining.
func (r *Runtime) WithLogger(l logging.Logger) *Runtime {
	r.log = l
	r.engine = r.engine.WithLogger(l)
	return r
}

// RegisterModule instantiates m and binds its exports under name so a
// later RegisterModule/InstantiateModule call can import from it.
func (r *Runtime) RegisterModule(name string, m *Module) (*Instance, error) {
	if name == "" {
		return nil, wasm.NewError(wasm.ErrCodeDuplicateModuleName, "module name required")
	}
	return interpreter.Instantiate(r.store, name, m)
}

// InstantiateModule instantiates m anonymously: its imports are still
// resolved against whatever is already registered, but its own exports are
// not bound under any name and cannot be imported from afterward.
func (r *Runtime) InstantiateModule(m *Module) (*Instance, error) {
	return interpreter.Instantiate(r.store, "", m)
}

// InstantiateModuleWithConfig instantiates m as InstantiateModule does, but
// registers it under cfg's name when one is set, making its exports
// importable by later modules the same way RegisterModule would.
func (r *Runtime) InstantiateModuleWithConfig(m *Module, cfg *ModuleConfig) (*Instance, error) {
	if cfg.name == "" {
		return r.InstantiateModule(m)
	}
	return r.RegisterModule(cfg.name, m)
}

// RegisterImportObject binds a host-provided ImportObject into the store
// under its ModuleName, the Go-side equivalent of RegisterModule for
// modules that are not decoded Wasm but a fixed set of host bindings.
func (r *Runtime) RegisterImportObject(o *ImportObject) (*Instance, error) {
	mi := &Instance{Name: o.ModuleName, Exports: map[string]*wasm.Export{}}
	for name, fn := range o.Functions {
		addr := r.store.ImportFunction(&wasm.FunctionInstance{Type: fn.Type, Host: fn})
		mi.Exports[name] = &wasm.Export{Name: name, Kind: wasm.ImportKindFunc, Index: wasm.Index(len(mi.Funcs))}
		mi.Funcs = append(mi.Funcs, addr)
	}
	for name, t := range o.Tables {
		addr := r.store.ImportTable(t)
		mi.Exports[name] = &wasm.Export{Name: name, Kind: wasm.ImportKindTable, Index: wasm.Index(len(mi.Tables))}
		mi.Tables = append(mi.Tables, addr)
	}
	for name, m := range o.Memories {
		addr := r.store.ImportMemory(m)
		mi.Exports[name] = &wasm.Export{Name: name, Kind: wasm.ImportKindMemory, Index: wasm.Index(len(mi.Memories))}
		mi.Memories = append(mi.Memories, addr)
	}
	for name, g := range o.Globals {
		addr := r.store.ImportGlobal(g)
		mi.Exports[name] = &wasm.Export{Name: name, Kind: wasm.ImportKindGlobal, Index: wasm.Index(len(mi.Globals))}
		mi.Globals = append(mi.Globals, addr)
	}
	if err := r.store.RegisterModuleInstance(o.ModuleName, mi); err != nil {
		return nil, err
	}
	return mi, nil
}

// Invoke calls the function exported by inst under name with args, one raw
// 64-bit value per parameter, returning one raw 64-bit value per result.
func (r *Runtime) Invoke(inst *Instance, name string, args ...uint64) ([]uint64, error) {
	exp, ok := inst.Exports[name]
	if !ok || exp.Kind != wasm.ImportKindFunc {
		return nil, wasm.NewError(wasm.ErrCodeUnknownImport, name)
	}
	return r.engine.Invoke(inst.Funcs[exp.Index], args)
}

// LoadCompiledModule decodes a ".so" artifact previously produced by
// SaveCompiledModule, re-parsing its embedded Wasm payload rather than
// trusting any cached native code (this runtime never generates any).
func LoadCompiledModule(data []byte) (*Module, error) {
	cm, err := wasm.DecodeCompiledModule(data)
	if err != nil {
		return nil, err
	}
	return ParseModule(cm.Wasm)
}

// SaveCompiledModule wraps wasmBytes and symbols into the ".so" artifact
// format, tagged with this runtime's CompiledModuleVersion.
func SaveCompiledModule(wasmBytes []byte, symbols map[string]string) []byte {
	return wasm.EncodeCompiledModule(&wasm.CompiledModule{
		Version: wasm.CompiledModuleVersion,
		Wasm:    wasmBytes,
		Symbols: symbols,
	})
}
