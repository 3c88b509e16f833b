// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package binio

import "encoding/binary"

// Writer builds a binary buffer with explicit byte order per value.
// It mirrors Cursor for the formats that support reconstruction.
type Writer struct {
	// buf accumulates written bytes.
	buf []byte
}

// NewWriter returns a writer with the given initial capacity hint.
func NewWriter(capacity int) *Writer {
	if capacity < 0 {
		capacity = 0
	}

	return &Writer{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Bytes returns the accumulated buffer. The slice is owned by the writer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteU8 appends one byte.
func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

// WriteU16 appends an unsigned 16-bit value in the given byte order.
func (w *Writer) WriteU16(order binary.AppendByteOrder, v uint16) {
	w.buf = order.AppendUint16(w.buf, v)
}

// WriteU32 appends an unsigned 32-bit value in the given byte order.
func (w *Writer) WriteU32(order binary.AppendByteOrder, v uint32) {
	w.buf = order.AppendUint32(w.buf, v)
}

// WriteU64 appends an unsigned 64-bit value in the given byte order.
func (w *Writer) WriteU64(order binary.AppendByteOrder, v uint64) {
	w.buf = order.AppendUint64(w.buf, v)
}

// WriteBytes appends raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteZeros appends n zero bytes.
func (w *Writer) WriteZeros(n int) {
	for i := 0; i < n; i++ {
		w.buf = append(w.buf, 0)
	}
}
