// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package decomp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/woozymasta/lzss"
)

// LZSS decodes classic LZSS payload of known output size.
func LZSS(src []byte, expectedSize int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(expectedSize)

	if _, err := lzss.DecompressToWriter(&buf, bytes.NewReader(src), expectedSize, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}

	return buf.Bytes(), nil
}

// LZ4 decodes an LZ4 frame payload of known output size.
func LZ4(src []byte, expectedSize int) ([]byte, error) {
	zr := lz4.NewReader(bytes.NewReader(src))

	out := make([]byte, expectedSize)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptData, err)
	}

	var probe [1]byte
	if n, _ := zr.Read(probe[:]); n != 0 {
		return nil, fmt.Errorf("%w: frame yields more than %d bytes", ErrSizeMismatch, expectedSize)
	}

	return out, nil
}
