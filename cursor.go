// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"encoding/binary"
	"fmt"
)

// cursor is a bounds-checked reader over an in-memory blob buffer.
// Every parse step goes through it so overruns surface as ErrOutOfBounds.
type cursor struct {
	order binary.ByteOrder
	buf   []byte
	pos   int
}

// newCursor returns little-endian cursor positioned at zero.
func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf, order: binary.LittleEndian}
}

// Pos returns current absolute position.
func (c *cursor) Pos() int {
	return c.pos
}

// Len returns buffer length.
func (c *cursor) Len() int {
	return len(c.buf)
}

// Remaining returns number of unread bytes.
func (c *cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Seek moves to absolute offset; offset equal to buffer length is allowed.
func (c *cursor) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(c.buf)) {
		return fmt.Errorf("%w: seek to %d in %d-byte buffer", ErrOutOfBounds, offset, len(c.buf))
	}

	c.pos = int(offset)
	return nil
}

// Skip advances by n bytes.
func (c *cursor) Skip(n int) error {
	return c.Seek(int64(c.pos) + int64(n))
}

// Read returns the next n bytes and advances. The slice aliases the buffer.
func (c *cursor) Read(n int) ([]byte, error) {
	if n < 0 || n > c.Remaining() {
		return nil, fmt.Errorf("%w: read %d bytes at %d, %d remain", ErrOutOfBounds, n, c.pos, c.Remaining())
	}

	out := c.buf[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return out, nil
}

// U8 reads one byte.
func (c *cursor) U8() (uint8, error) {
	b, err := c.Read(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// U16 reads one 16-bit integer in cursor byte order.
func (c *cursor) U16() (uint16, error) {
	b, err := c.Read(2)
	if err != nil {
		return 0, err
	}

	return c.order.Uint16(b), nil
}

// U32 reads one 32-bit integer in cursor byte order.
func (c *cursor) U32() (uint32, error) {
	b, err := c.Read(4)
	if err != nil {
		return 0, err
	}

	return c.order.Uint32(b), nil
}

// PeekU8 reads one byte without advancing.
func (c *cursor) PeekU8() (uint8, error) {
	pos := c.pos
	v, err := c.U8()
	c.pos = pos
	return v, err
}

// PeekU16 reads one 16-bit integer without advancing.
func (c *cursor) PeekU16() (uint16, error) {
	pos := c.pos
	v, err := c.U16()
	c.pos = pos
	return v, err
}

// PeekU32 reads one 32-bit integer without advancing.
func (c *cursor) PeekU32() (uint32, error) {
	pos := c.pos
	v, err := c.U32()
	c.pos = pos
	return v, err
}

// section returns a bounded cursor over [offset, offset+size) sharing the buffer.
func (c *cursor) section(offset uint32, size uint32) (*cursor, error) {
	end := uint64(offset) + uint64(size)
	if end > uint64(len(c.buf)) {
		return nil, fmt.Errorf("%w: range [%d, %d) in %d-byte buffer", ErrOutOfBounds, offset, end, len(c.buf))
	}

	return &cursor{buf: c.buf[offset:end:end], order: c.order}, nil
}
