// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package decomp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/nomadwithoutahome/lithtools/binio"
)

// DeflateBlocks decodes the block-based raw deflate stream used by the
// indexed archive format. The stream is a sequence of blocks, each with
// an 8-byte little-endian header {compressedSize, rawSize}, the block
// body, and zero padding up to 4-byte alignment. A block whose two sizes
// are equal is stored verbatim.
func DeflateBlocks(src []byte, expectedSize int) ([]byte, error) {
	cur := binio.NewCursor(src)
	out := make([]byte, 0, expectedSize)

	for cur.Remaining() > 0 {
		compSize, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: short block header: %w", ErrCorruptData, err)
		}

		rawSize, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("%w: short block header: %w", ErrCorruptData, err)
		}

		body, err := cur.ReadBytes(int(compSize))
		if err != nil {
			return nil, fmt.Errorf("%w: short block body: %w", ErrCorruptData, err)
		}

		// Alignment padding is optional on the final block.
		if pad := int((4 - compSize%4) % 4); pad > 0 && cur.Remaining() >= pad {
			if err := cur.Skip(pad); err != nil {
				return nil, fmt.Errorf("%w: block padding: %w", ErrCorruptData, err)
			}
		}

		if compSize == rawSize {
			out = append(out, body...)
			continue
		}

		decoded, err := inflateBlock(body, int(rawSize))
		if err != nil {
			return nil, err
		}

		out = append(out, decoded...)
	}

	if len(out) != expectedSize {
		return nil, fmt.Errorf("%w: produced %d bytes, want %d", ErrSizeMismatch, len(out), expectedSize)
	}

	return out, nil
}

// inflateBlock decodes one raw deflate block of known output size.
func inflateBlock(body []byte, rawSize int) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(body))
	defer func() { _ = fr.Close() }()

	decoded := make([]byte, rawSize)
	if _, err := io.ReadFull(fr, decoded); err != nil {
		return nil, fmt.Errorf("%w: inflate block: %w", ErrCorruptData, err)
	}

	// One extra readable byte means the block header lied about rawSize.
	var probe [1]byte
	if n, _ := fr.Read(probe[:]); n != 0 {
		return nil, fmt.Errorf("%w: block yields more than %d bytes", ErrSizeMismatch, rawSize)
	}

	return decoded, nil
}
