// Package leb128 decodes and encodes the variable-length integer format
// used throughout the WebAssembly binary format: little-endian base-128,
// 7 bits of payload per byte with the high bit marking continuation.
//
// Two decoding APIs are exposed. The Load* functions take the remaining
// input as a byte slice and never allocate; they are what the module
// decoder's hot path (opcode immediates, section vector counts) uses.
// The Decode* functions take an io.Reader for call sites that only have
// a stream; the module decoder's byte source does not use them.
//
// Every decoder enforces the per-call byte-count and bit-count caps the
// Wasm binary format requires: a u32 LEB128 may not consume more than 5
// bytes, and the final byte may not carry payload bits beyond bit 32 (9
// for u64/i64). Violating either rule is a decode error, not merely an
// oversized value.
package leb128

import (
	"errors"
	"io"
)

// ErrIntegerTooLong indicates a LEB128 value used more continuation bytes
// than the Wasm binary format permits for its bit width.
var ErrIntegerTooLong = errors.New("leb128: integer representation too long")

// ErrIntegerTooLarge indicates a LEB128 value's high byte carries payload
// bits that would overflow the target bit width.
var ErrIntegerTooLarge = errors.New("leb128: integer too large")

const (
	maxUint32Bytes = 5
	maxUint64Bytes = 10
)

// LoadUint32 decodes an unsigned 32-bit LEB128 value from the head of b.
func LoadUint32(b []byte) (ret uint32, num uint64, err error) {
	var shift uint
	for {
		if num >= maxUint32Bytes {
			return 0, 0, ErrIntegerTooLong
		}
		if int(num) >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c := b[num]
		num++
		payload := uint32(c & 0x7f)
		if shift == 28 {
			if c&0x80 != 0 {
				return 0, 0, ErrIntegerTooLong
			}
			if payload > 0x0f {
				return 0, 0, ErrIntegerTooLarge
			}
		}
		ret |= payload << shift
		if c&0x80 == 0 {
			return ret, num, nil
		}
		shift += 7
	}
}

// LoadUint64 decodes an unsigned 64-bit LEB128 value from the head of b.
func LoadUint64(b []byte) (ret uint64, num uint64, err error) {
	var shift uint
	for {
		if num >= maxUint64Bytes {
			return 0, 0, ErrIntegerTooLong
		}
		if int(num) >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c := b[num]
		num++
		payload := uint64(c & 0x7f)
		if shift == 63 {
			if c&0x80 != 0 {
				return 0, 0, ErrIntegerTooLong
			}
			if payload > 1 {
				return 0, 0, ErrIntegerTooLarge
			}
		}
		ret |= payload << shift
		if c&0x80 == 0 {
			return ret, num, nil
		}
		shift += 7
	}
}

// LoadInt32 decodes a signed 32-bit LEB128 value, sign-extending from the
// highest payload bit of the final byte.
func LoadInt32(b []byte) (ret int32, num uint64, err error) {
	var shift uint
	var c byte
	for {
		if num >= maxUint32Bytes {
			return 0, 0, ErrIntegerTooLong
		}
		if int(num) >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c = b[num]
		num++
		if shift == 28 {
			if c&0x80 != 0 {
				return 0, 0, ErrIntegerTooLong
			}
			// The fifth byte holds bits 28-31; its unused high bits must all
			// repeat bit 31 (0x08), so only 0x00..0x07 and 0x78..0x7f fit.
			if c&0x78 != 0 && c&0x78 != 0x78 {
				return 0, 0, ErrIntegerTooLarge
			}
		}
		ret |= int32(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}
	if shift < 32 && c&0x40 != 0 {
		ret |= ^int32(0) << shift
	}
	return ret, num, nil
}

// LoadInt64 decodes a signed 64-bit LEB128 value.
func LoadInt64(b []byte) (ret int64, num uint64, err error) {
	var shift uint
	var c byte
	for {
		if num >= maxUint64Bytes {
			return 0, 0, ErrIntegerTooLong
		}
		if int(num) >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c = b[num]
		num++
		if shift == 63 {
			if c&0x80 != 0 {
				return 0, 0, ErrIntegerTooLong
			}
			if c != 0 && c != 0x7f {
				return 0, 0, ErrIntegerTooLarge
			}
		}
		ret |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}
	if shift < 64 && c&0x40 != 0 {
		ret |= ^int64(0) << shift
	}
	return ret, num, nil
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128 value (used by block
// type immediates, which encode either a value type or a signed type
// index) widened to int64.
func DecodeInt33AsInt64(r io.Reader) (ret int64, num uint64, err error) {
	const (
		mask1 int64 = 1 << 7
		mask2       = ^mask1
		mask3       = 1 << 6
		mask4       = 8589934591 // 2^33-1
		mask5       = 1 << 32
		mask6       = mask4 + 1 // 2^33
	)
	var shift int
	var b int64
	buf := make([]byte, 1)
	for shift < 35 {
		if _, err = io.ReadFull(r, buf); err != nil {
			return 0, 0, err
		}
		b = int64(buf[0])
		num++
		ret |= (b & mask2) << shift
		shift += 7
		if b&mask1 == 0 {
			break
		}
	}
	if shift < 33 && (b&mask3) == mask3 {
		ret |= mask4 << shift
	}
	ret &= mask4
	if ret&mask5 > 0 {
		ret -= mask6
	}
	return ret, num, nil
}

// DecodeUint32 reads an unsigned 32-bit LEB128 value from an io.Reader.
func DecodeUint32(r io.Reader) (ret uint32, num uint64, err error) {
	buf := make([]byte, 1)
	var shift uint
	for {
		if num >= maxUint32Bytes {
			return 0, 0, ErrIntegerTooLong
		}
		if _, err = io.ReadFull(r, buf); err != nil {
			return 0, 0, err
		}
		c := buf[0]
		num++
		payload := uint32(c & 0x7f)
		if shift == 28 {
			if c&0x80 != 0 {
				return 0, 0, ErrIntegerTooLong
			}
			if payload > 0x0f {
				return 0, 0, ErrIntegerTooLarge
			}
		}
		ret |= payload << shift
		if c&0x80 == 0 {
			return ret, num, nil
		}
		shift += 7
	}
}

// DecodeInt32 reads a signed 32-bit LEB128 value from an io.Reader.
func DecodeInt32(r io.Reader) (ret int32, num uint64, err error) {
	buf := make([]byte, 1)
	var shift uint
	var c byte
	for {
		if num >= maxUint32Bytes {
			return 0, 0, ErrIntegerTooLong
		}
		if _, err = io.ReadFull(r, buf); err != nil {
			return 0, 0, err
		}
		c = buf[0]
		num++
		if shift == 28 {
			if c&0x80 != 0 {
				return 0, 0, ErrIntegerTooLong
			}
			if c&0x78 != 0 && c&0x78 != 0x78 {
				return 0, 0, ErrIntegerTooLarge
			}
		}
		ret |= int32(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}
	if shift < 32 && c&0x40 != 0 {
		ret |= ^int32(0) << shift
	}
	return ret, num, nil
}

// DecodeInt64 reads a signed 64-bit LEB128 value from an io.Reader.
func DecodeInt64(r io.Reader) (ret int64, num uint64, err error) {
	buf := make([]byte, 1)
	var shift uint
	var c byte
	for {
		if num >= maxUint64Bytes {
			return 0, 0, ErrIntegerTooLong
		}
		if _, err = io.ReadFull(r, buf); err != nil {
			return 0, 0, err
		}
		c = buf[0]
		num++
		if shift == 63 {
			if c&0x80 != 0 {
				return 0, 0, ErrIntegerTooLong
			}
			if c != 0 && c != 0x7f {
				return 0, 0, ErrIntegerTooLarge
			}
		}
		ret |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}
	if shift < 64 && c&0x40 != 0 {
		ret |= ^int64(0) << shift
	}
	return ret, num, nil
}

// EncodeUint32 returns the unsigned LEB128 encoding of v.
func EncodeUint32(v uint32) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

// EncodeUint64 returns the unsigned LEB128 encoding of v.
func EncodeUint64(v uint64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		out = append(out, c)
		if v == 0 {
			return out
		}
	}
}

// EncodeInt32 returns the signed LEB128 encoding of v.
func EncodeInt32(v int32) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		signBitSet := c&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, c)
			return out
		}
		out = append(out, c|0x80)
	}
}

// EncodeInt64 returns the signed LEB128 encoding of v.
func EncodeInt64(v int64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		signBitSet := c&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			out = append(out, c)
			return out
		}
		out = append(out, c|0x80)
	}
}
