// Package interpreter walks a decoded instruction tree (internal/wasm)
// directly, without re-decoding LEB128 immediates at each step, and is
// responsible for both the two-phase module instantiation process and the
// function execution engine.
package interpreter

import "math"

// valueStack holds Wasm operand values as raw 64-bit patterns; the
// instruction performing a push/pop knows which width and interpretation
// (integer or float) applies, the same representation internal/wasm uses
// for GlobalInstance.Value.
type valueStack struct {
	data []uint64
}

func (s *valueStack) pushU64(v uint64)    { s.data = append(s.data, v) }
func (s *valueStack) pushI32(v int32)     { s.pushU64(uint64(uint32(v))) }
func (s *valueStack) pushU32(v uint32)    { s.pushU64(uint64(v)) }
func (s *valueStack) pushI64(v int64)     { s.pushU64(uint64(v)) }
func (s *valueStack) pushF32(v float32)   { s.pushU64(uint64(math.Float32bits(v))) }
func (s *valueStack) pushF64(v float64)   { s.pushU64(math.Float64bits(v)) }

func (s *valueStack) popU64() uint64 {
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v
}
func (s *valueStack) popI32() int32   { return int32(uint32(s.popU64())) }
func (s *valueStack) popU32() uint32  { return uint32(s.popU64()) }
func (s *valueStack) popI64() int64   { return int64(s.popU64()) }
func (s *valueStack) popF32() float32 { return math.Float32frombits(uint32(s.popU64())) }
func (s *valueStack) popF64() float64 { return math.Float64frombits(s.popU64()) }

func (s *valueStack) len() int { return len(s.data) }

func (s *valueStack) truncate(n int) { s.data = s.data[:n] }

// dropToArity implements the Wasm branch-target stack adjustment: pop the
// top arity values, discard everything back down to base, then push those
// arity values back. It is how a caught branch discards whatever a nested,
// now-abandoned block left behind above its label's declared result arity
// (a restarted loop iteration uses truncate instead).
func (s *valueStack) dropToArity(base, arity int) {
	kept := append([]uint64(nil), s.data[len(s.data)-arity:]...)
	s.data = append(s.data[:base], kept...)
}
