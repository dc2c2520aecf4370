package wire

import (
	"encoding/binary"
	"fmt"
)

// Cursor walks a decoded message body left to right. Every backend message
// decoder takes a Cursor over its payload (header already stripped by the
// framer) and returns a typed struct.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential decoding starting at offset 0.
func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Remaining reports how many bytes are left to consume.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

func (c *Cursor) need(n int) error {
	if c.Remaining() < n {
		return fmt.Errorf("wire: short read: need %d bytes, have %d", n, c.Remaining())
	}
	return nil
}

// Int8 reads a single signed byte.
func (c *Cursor) Int8() (int8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := int8(c.buf[c.pos])
	c.pos++
	return v, nil
}

// Byte reads a single raw byte (which-tag, status char, ...).
func (c *Cursor) Byte() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

// Int16 reads a big-endian int16.
func (c *Cursor) Int16() (int16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(c.buf[c.pos:]))
	c.pos += 2
	return v, nil
}

// Int32 reads a big-endian int32.
func (c *Cursor) Int32() (int32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(c.buf[c.pos:]))
	c.pos += 4
	return v, nil
}

// ByteN reads exactly n raw bytes.
func (c *Cursor) ByteN(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// Bytes reads whatever remains in the message — used for CopyData payloads
// and the final untyped byte(s) of some messages.
func (c *Cursor) Bytes() []byte {
	v := c.buf[c.pos:]
	c.pos = len(c.buf)
	return v
}

// BytesLP reads an int32 length prefix followed by that many bytes, or
// returns (nil, nil) when the prefix is -1 (a SQL NULL column value).
func (c *Cursor) BytesLP() ([]byte, error) {
	n, err := c.Int32()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	return c.ByteN(int(n))
}

// CString reads bytes up to and including the next NUL, returning the
// string without the terminator.
func (c *Cursor) CString() (string, error) {
	for i := c.pos; i < len(c.buf); i++ {
		if c.buf[i] == 0 {
			s := string(c.buf[c.pos:i])
			c.pos = i + 1
			return s, nil
		}
	}
	return "", fmt.Errorf("wire: unterminated cstring")
}

// Array reads an int16 count and invokes read once per element in order.
func (c *Cursor) Array(read func(i int) error) (int, error) {
	n, err := c.Int16()
	if err != nil {
		return 0, err
	}
	for i := 0; i < int(n); i++ {
		if err := read(i); err != nil {
			return 0, err
		}
	}
	return int(n), nil
}

// OIDArray reads an int16 count followed by that many int32 elements — the
// shape of Parse's param_types list and ParameterDescription's OID list.
func (c *Cursor) OIDArray() ([]int32, error) {
	n, err := c.Int16()
	if err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		v, err := c.Int32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
