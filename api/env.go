package api

import (
	"fmt"
	"io"

	"github.com/second-state/ssvm-go/internal/wasm"
)

// NewEnvModule builds a minimal "env" ImportObject: not a WASI
// implementation, but a small fixture a Wasm module can import against to
// exercise host function calls end to end. print_i32/print_i64 format their
// single argument as decimal text followed by a newline on cfg's stdout;
// print_err_i32 does the same on stderr. A module that imports none of these
// is unaffected by registering it.
func NewEnvModule(cfg *ModuleConfig) *ImportObject {
	o := NewImportObject("env")
	i32 := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI32}}
	i64 := &wasm.FunctionType{Params: []wasm.ValueType{wasm.ValueTypeI64}}

	o.AddFunction("print_i32", i32, func(ctx *wasm.ExecContext, args []uint64) ([]uint64, error) {
		fmt.Fprintf(cfg.stdout, "%d\n", int32(args[0]))
		return nil, nil
	})
	o.AddFunction("print_i64", i64, func(ctx *wasm.ExecContext, args []uint64) ([]uint64, error) {
		fmt.Fprintf(cfg.stdout, "%d\n", int64(args[0]))
		return nil, nil
	})
	o.AddFunction("print_err_i32", i32, func(ctx *wasm.ExecContext, args []uint64) ([]uint64, error) {
		fmt.Fprintf(cfg.stderr, "%d\n", int32(args[0]))
		return nil, nil
	})

	readByte := &wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}}
	o.AddFunction("read_byte", readByte, func(ctx *wasm.ExecContext, args []uint64) ([]uint64, error) {
		var b [1]byte
		if _, err := io.ReadFull(cfg.stdin, b[:]); err != nil {
			var eof int32 = -1
			return []uint64{uint64(uint32(eof))}, nil
		}
		return []uint64{uint64(b[0])}, nil
	})
	return o
}
