// Package binary decodes the WebAssembly binary format (MVP, 1.0) into the
// AST types in internal/wasm.
package binary

import (
	"encoding/binary"
	"math"
	"unicode/utf8"

	"github.com/second-state/ssvm-go/internal/leb128"
	"github.com/second-state/ssvm-go/internal/wasm"
)

// ByteSource is a cursor over an in-memory Wasm binary. Every decode
// function in this package reads through one rather than holding a raw
// []byte and an index directly, so the cursor position and error handling
// stay in one place.
type ByteSource struct {
	data []byte
	pos  int
}

// NewByteSource wraps data for decoding.
func NewByteSource(data []byte) *ByteSource {
	return &ByteSource{data: data}
}

func (b *ByteSource) hasMore() bool { return b.pos < len(b.data) }

func (b *ByteSource) tell() int { return b.pos }

func (b *ByteSource) seek(pos int) { b.pos = pos }

func (b *ByteSource) remaining() []byte { return b.data[b.pos:] }

func (b *ByteSource) readByte() (byte, error) {
	if b.pos >= len(b.data) {
		return 0, wasm.NewError(wasm.ErrCodeUnexpectedEnd, "")
	}
	c := b.data[b.pos]
	b.pos++
	return c, nil
}

func (b *ByteSource) readBytes(n uint32) ([]byte, error) {
	if uint64(b.pos)+uint64(n) > uint64(len(b.data)) {
		return nil, wasm.NewError(wasm.ErrCodeUnexpectedEnd, "")
	}
	out := b.data[b.pos : b.pos+int(n)]
	b.pos += int(n)
	return out, nil
}

func (b *ByteSource) readU32Leb() (uint32, error) {
	v, n, err := leb128.LoadUint32(b.remaining())
	if err != nil {
		return 0, translateLebErr(err)
	}
	b.pos += int(n)
	return v, nil
}

func (b *ByteSource) readU64Leb() (uint64, error) {
	v, n, err := leb128.LoadUint64(b.remaining())
	if err != nil {
		return 0, translateLebErr(err)
	}
	b.pos += int(n)
	return v, nil
}

func (b *ByteSource) readS32Leb() (int32, error) {
	v, n, err := leb128.LoadInt32(b.remaining())
	if err != nil {
		return 0, translateLebErr(err)
	}
	b.pos += int(n)
	return v, nil
}

func (b *ByteSource) readS64Leb() (int64, error) {
	v, n, err := leb128.LoadInt64(b.remaining())
	if err != nil {
		return 0, translateLebErr(err)
	}
	b.pos += int(n)
	return v, nil
}

func (b *ByteSource) readF32() (float32, error) {
	raw, err := b.readBytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(raw)), nil
}

func (b *ByteSource) readF64() (float64, error) {
	raw, err := b.readBytes(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(raw)), nil
}

// readName decodes a length-prefixed UTF-8 string, rejecting invalid
// encodings per the binary format's "names are valid UTF-8" rule.
func (b *ByteSource) readName() (string, error) {
	n, err := b.readU32Leb()
	if err != nil {
		return "", err
	}
	raw, err := b.readBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", wasm.NewError(wasm.ErrCodeInvalidUTF8, "")
	}
	return string(raw), nil
}

func translateLebErr(err error) error {
	switch err {
	case leb128.ErrIntegerTooLong:
		return wasm.NewError(wasm.ErrCodeIntegerTooLong, "")
	case leb128.ErrIntegerTooLarge:
		return wasm.NewError(wasm.ErrCodeIntegerTooLarge, "")
	default:
		return wasm.NewError(wasm.ErrCodeUnexpectedEnd, "")
	}
}
