// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package binio provides a bounds-checked cursor over in-memory binary
// data plus a mirrored writer. Every multi-byte read and write takes an
// explicit byte order: one supported container format detects its byte
// order per file, so there is no safe package-wide default.
package binio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel errors for cursor operations. Use errors.Is in callers.
var (
	// ErrOutOfBounds means a read would pass the end of the buffer.
	ErrOutOfBounds = errors.New("read past end of buffer")
	// ErrUnterminatedString means no NUL terminator was found within the limit.
	ErrUnterminatedString = errors.New("unterminated string")
	// ErrInvalidSeek means the seek target is outside the buffer.
	ErrInvalidSeek = errors.New("seek target outside buffer")
)

// Cursor reads primitive values from a byte buffer with bounds checks.
type Cursor struct {
	// buf is the underlying data window.
	buf []byte
	// off is the current absolute read offset.
	off int
}

// NewCursor returns a cursor positioned at the start of buf.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Offset returns the current absolute offset.
func (c *Cursor) Offset() int64 {
	return int64(c.off)
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// SeekTo moves the cursor to an absolute offset inside the buffer.
func (c *Cursor) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(c.buf)) {
		return fmt.Errorf("%w: offset %d, buffer %d", ErrInvalidSeek, offset, len(c.buf))
	}

	c.off = int(offset)
	return nil
}

// need checks n more bytes are available before a read.
func (c *Cursor) need(n int) error {
	if n < 0 || c.off+n > len(c.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, buffer %d", ErrOutOfBounds, n, c.off, len(c.buf))
	}

	return nil
}

// ReadU8 reads one byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}

	v := c.buf[c.off]
	c.off++
	return v, nil
}

// ReadU16 reads an unsigned 16-bit value in the given byte order.
func (c *Cursor) ReadU16(order binary.ByteOrder) (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}

	v := order.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

// ReadU32 reads an unsigned 32-bit value in the given byte order.
func (c *Cursor) ReadU32(order binary.ByteOrder) (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}

	v := order.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

// ReadU64 reads an unsigned 64-bit value in the given byte order.
func (c *Cursor) ReadU64(order binary.ByteOrder) (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}

	v := order.Uint64(c.buf[c.off:])
	c.off += 8
	return v, nil
}

// ReadBytes reads exactly n bytes and returns a copy.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out, nil
}

// Skip advances the cursor by n bytes without copying.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}

	c.off += n
	return nil
}

// ReadString reads a NUL-terminated string, scanning at most maxLen bytes.
// The terminator is consumed but not returned.
func (c *Cursor) ReadString(maxLen int) (string, error) {
	window := maxLen
	if rem := c.Remaining(); window > rem {
		window = rem
	}
	if window < 0 {
		window = 0
	}

	idx := bytes.IndexByte(c.buf[c.off:c.off+window], 0)
	if idx < 0 {
		if c.Remaining() > maxLen {
			return "", fmt.Errorf("%w: no terminator within %d bytes", ErrUnterminatedString, maxLen)
		}

		return "", fmt.Errorf("%w: no terminator before end of buffer", ErrUnterminatedString)
	}

	s := string(c.buf[c.off : c.off+idx])
	c.off += idx + 1
	return s, nil
}
