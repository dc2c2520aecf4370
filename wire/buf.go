// Package wire implements the PostgreSQL frontend/backend wire protocol
// version 3.0: byte-level framing and encoders/decoders for every message
// this client sends or receives. It has no knowledge of sockets, locks, or
// query semantics — see package engine for that.
package wire

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// ProtocolVersion is the startup version number: major 3, minor 0.
const ProtocolVersion int32 = 196608

// CancelRequestCode identifies a CancelRequest in place of a startup version.
const CancelRequestCode int32 = 80877102

// Builder accumulates the body of a single wire message. Callers begin with
// Reset (or NewBuilder), append fields, and call Finish to backfill the
// length prefix — mirroring the encode/backfill split every message codec
// needs regardless of whether it carries a leading type byte.
type Builder struct {
	buf   []byte
	typed bool
}

// NewBuilder returns a Builder with a reasonably sized backing array.
func NewBuilder() *Builder {
	return &Builder{buf: make([]byte, 0, 256)}
}

// Reset clears the builder and, if typ is nonzero, writes the message's
// one-byte type tag followed by a 4-byte length placeholder. A zero typ
// starts an untyped message (Startup, CancelRequest) with just the
// placeholder.
func (b *Builder) Reset(typ byte) {
	b.buf = b.buf[:0]
	b.typed = typ != 0
	if b.typed {
		b.buf = append(b.buf, typ)
	}
	b.buf = append(b.buf, 0, 0, 0, 0)
}

// Int8 appends a single byte.
func (b *Builder) Int8(v int8) *Builder {
	b.buf = append(b.buf, byte(v))
	return b
}

// Int16 appends a big-endian int16.
func (b *Builder) Int16(v int16) *Builder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, uint16(v))
	return b
}

// Int32 appends a big-endian int32.
func (b *Builder) Int32(v int32) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v))
	return b
}

// Byte appends a single raw byte, e.g. a which-tag ('S'/'P') or status char.
func (b *Builder) Byte(v byte) *Builder {
	b.buf = append(b.buf, v)
	return b
}

// ByteN appends the bytes of v verbatim, with no length prefix and no
// padding or truncation; kept for symmetry with the decode side's ByteN
// reader.
func (b *Builder) ByteN(v []byte) *Builder {
	b.buf = append(b.buf, v...)
	return b
}

// Bytes appends the remainder of a message verbatim, no length prefix —
// used for CopyData payloads.
func (b *Builder) Bytes(v []byte) *Builder {
	b.buf = append(b.buf, v...)
	return b
}

// BytesLP appends an int32 length prefix followed by v, or -1 alone when v
// is nil (the wire protocol's NULL column value encoding).
func (b *Builder) BytesLP(v []byte) *Builder {
	if v == nil {
		return b.Int32(-1)
	}
	b.Int32(int32(len(v)))
	b.buf = append(b.buf, v...)
	return b
}

// CString appends s followed by a NUL terminator. Rejects s containing an
// embedded NUL or invalid UTF-8, since the protocol has no way to escape
// either inside a C-string field.
func (b *Builder) CString(s string) *Builder {
	if !utf8.ValidString(s) {
		panic(fmt.Errorf("wire: cstring is not valid utf-8: %q", s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			panic(fmt.Errorf("wire: cstring contains embedded NUL: %q", s))
		}
	}
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	return b
}

// Array writes an int16 count followed by n applications of write, one per
// element — the shape shared by Bind's parameter/format lists and
// RowDescription's column list.
func (b *Builder) Array(n int, write func(i int)) *Builder {
	b.Int16(int16(n))
	for i := 0; i < n; i++ {
		write(i)
	}
	return b
}

// OIDArray writes an int16 count followed by n int32 elements — the shape
// Parse uses for its parameter type OID list (spec §4.1: "param_types:
// array(i16, i32)"), distinct from Array only in that its elements are a
// fixed int32 rather than caller-written.
func (b *Builder) OIDArray(vs []int32) *Builder {
	b.Int16(int16(len(vs)))
	for _, v := range vs {
		b.Int32(v)
	}
	return b
}

// Finish backfills the length field — which covers itself and everything
// after it, but never the leading type byte — and returns the complete
// on-wire message ready to hand to the writer task.
func (b *Builder) Finish() []byte {
	if b.typed {
		length := int32(len(b.buf) - 1)
		binary.BigEndian.PutUint32(b.buf[1:5], uint32(length))
	} else {
		length := int32(len(b.buf))
		binary.BigEndian.PutUint32(b.buf[0:4], uint32(length))
	}
	return b.buf
}
