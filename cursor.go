package divaspr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Cursor is a sequential reader/writer over an in-memory buffer with a
// selectable byte order. Reads past the end fail with ErrUnexpectedEOF.
type Cursor struct {
	order binary.ByteOrder
	buf   []byte
	pos   int
}

// NewCursor returns a cursor positioned at the start of buf.
// A nil order selects little endian.
func NewCursor(buf []byte, order binary.ByteOrder) *Cursor {
	if order == nil {
		order = binary.LittleEndian
	}

	return &Cursor{buf: buf, order: order}
}

// Order returns the byte order used for multi-byte reads and writes.
func (c *Cursor) Order() binary.ByteOrder { return c.order }

// SetOrder changes the byte order. Callers must keep it fixed for one blob.
func (c *Cursor) SetOrder(order binary.ByteOrder) { c.order = order }

// Pos returns the current position.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the buffer length.
func (c *Cursor) Len() int { return len(c.buf) }

// Remaining returns the number of bytes after the current position.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Bytes returns the underlying buffer.
func (c *Cursor) Bytes() []byte { return c.buf }

// SeekTo moves to an absolute offset. Seeking exactly to the end is allowed.
func (c *Cursor) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(c.buf)) {
		return fmt.Errorf("%w: %d (len %d)", ErrSeekOutOfRange, offset, len(c.buf))
	}
	c.pos = int(offset)

	return nil
}

// Skip advances the position by n bytes.
func (c *Cursor) Skip(n int) error {
	return c.SeekTo(int64(c.pos) + int64(n))
}

// Align moves the position up to the next multiple of k.
func (c *Cursor) Align(k int) error {
	if k <= 1 {
		return nil
	}
	if rem := c.pos % k; rem != 0 {
		return c.Skip(k - rem)
	}

	return nil
}

// take returns the next n bytes and advances past them.
func (c *Cursor) take(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at %d, have %d", ErrUnexpectedEOF, n, c.pos, c.Remaining())
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n

	return b, nil
}

// ReadBytes returns the next n bytes. The slice aliases the buffer.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	return c.take(n)
}

// ReadU8 reads an unsigned byte.
func (c *Cursor) ReadU8() (uint8, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadI8 reads a signed byte.
func (c *Cursor) ReadI8() (int8, error) {
	v, err := c.ReadU8()
	return int8(v), err
}

// ReadU16 reads an unsigned 16-bit integer.
func (c *Cursor) ReadU16() (uint16, error) {
	b, err := c.take(2)
	if err != nil {
		return 0, err
	}

	return c.order.Uint16(b), nil
}

// ReadI16 reads a signed 16-bit integer.
func (c *Cursor) ReadI16() (int16, error) {
	v, err := c.ReadU16()
	return int16(v), err
}

// ReadU32 reads an unsigned 32-bit integer.
func (c *Cursor) ReadU32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}

	return c.order.Uint32(b), nil
}

// ReadI32 reads a signed 32-bit integer.
func (c *Cursor) ReadI32() (int32, error) {
	v, err := c.ReadU32()
	return int32(v), err
}

// ReadU64 reads an unsigned 64-bit integer.
func (c *Cursor) ReadU64() (uint64, error) {
	b, err := c.take(8)
	if err != nil {
		return 0, err
	}

	return c.order.Uint64(b), nil
}

// ReadI64 reads a signed 64-bit integer.
func (c *Cursor) ReadI64() (int64, error) {
	v, err := c.ReadU64()
	return int64(v), err
}

// ReadF32 reads an IEEE 754 single precision float.
func (c *Cursor) ReadF32() (float32, error) {
	v, err := c.ReadU32()
	return math.Float32frombits(v), err
}

// ReadCString reads a null-terminated string and consumes the terminator.
// A string running into the end of the buffer is an error.
func (c *Cursor) ReadCString() (string, error) {
	i := bytes.IndexByte(c.buf[c.pos:], 0)
	if i < 0 {
		return "", fmt.Errorf("%w: unterminated string at %d", ErrUnexpectedEOF, c.pos)
	}
	s := string(c.buf[c.pos : c.pos+i])
	c.pos += i + 1

	return s, nil
}

// ReadCStringAt reads a null-terminated string at an absolute offset
// without moving the cursor.
func (c *Cursor) ReadCStringAt(offset int64) (string, error) {
	saved := c.pos
	defer func() { c.pos = saved }()

	if err := c.SeekTo(offset); err != nil {
		return "", err
	}

	return c.ReadCString()
}

// ReadPString reads a string prefixed by an unsigned 32-bit length.
func (c *Cursor) ReadPString() (string, error) {
	n, err := c.ReadU32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(c.Remaining()) {
		return "", fmt.Errorf("%w: string length %d at %d", ErrUnexpectedEOF, n, c.pos-4)
	}
	b, err := c.take(int(n))
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// grow makes room for n more bytes at the current position.
func (c *Cursor) grow(n int) []byte {
	end := c.pos + n
	if end > len(c.buf) {
		if end > cap(c.buf) {
			nb := make([]byte, len(c.buf), 2*end)
			copy(nb, c.buf)
			c.buf = nb
		}
		c.buf = c.buf[:end]
	}
	b := c.buf[c.pos:end]
	c.pos = end

	return b
}

// WriteBytes writes raw bytes, extending the buffer as needed.
func (c *Cursor) WriteBytes(p []byte) {
	copy(c.grow(len(p)), p)
}

// WriteU8 writes an unsigned byte.
func (c *Cursor) WriteU8(v uint8) {
	c.grow(1)[0] = v
}

// WriteU16 writes an unsigned 16-bit integer.
func (c *Cursor) WriteU16(v uint16) {
	c.order.PutUint16(c.grow(2), v)
}

// WriteU32 writes an unsigned 32-bit integer.
func (c *Cursor) WriteU32(v uint32) {
	c.order.PutUint32(c.grow(4), v)
}

// WriteI32 writes a signed 32-bit integer.
func (c *Cursor) WriteI32(v int32) {
	c.WriteU32(uint32(v))
}

// WriteU64 writes an unsigned 64-bit integer.
func (c *Cursor) WriteU64(v uint64) {
	c.order.PutUint64(c.grow(8), v)
}

// WriteF32 writes an IEEE 754 single precision float.
func (c *Cursor) WriteF32(v float32) {
	c.WriteU32(math.Float32bits(v))
}

// WriteCString writes s followed by a null terminator.
func (c *Cursor) WriteCString(s string) {
	c.WriteBytes([]byte(s))
	c.WriteU8(0)
}

// PadTo writes zero bytes until the position is a multiple of k.
func (c *Cursor) PadTo(k int) {
	if k <= 1 {
		return
	}
	for c.pos%k != 0 {
		c.WriteU8(0)
	}
}
