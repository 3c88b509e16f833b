// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package decomp

import "fmt"

// MiniPack decodes the MiniPack LZSS variant carried by dsPack entries.
// Each control byte governs the next eight tokens, low bit first: a set
// bit copies one literal, a clear bit is a two-byte back-reference with
// offset ((b1 & 0xF0) << 4) | b0 and length (b1 & 0x0F) + 3.
func MiniPack(src []byte, expectedSize int) ([]byte, error) {
	out := make([]byte, expectedSize)
	inPos := 0
	outPos := 0

	for inPos < len(src) && outPos < len(out) {
		control := src[inPos]
		inPos++

		for bit := 0; bit < 8; bit++ {
			if inPos >= len(src) || outPos >= len(out) {
				break
			}

			if control&(1<<bit) != 0 {
				out[outPos] = src[inPos]
				outPos++
				inPos++
				continue
			}

			if inPos+1 >= len(src) {
				return nil, fmt.Errorf("%w: truncated back-reference at input offset %d", ErrCorruptData, inPos)
			}

			offset := int(src[inPos+1]&0xF0)<<4 | int(src[inPos])
			length := int(src[inPos+1]&0x0F) + 3
			inPos += 2

			if offset == 0 || offset > outPos {
				return nil, fmt.Errorf("%w: back-reference offset %d at output position %d", ErrCorruptData, offset, outPos)
			}

			for i := 0; i < length && outPos < len(out); i++ {
				out[outPos] = out[outPos-offset]
				outPos++
			}
		}
	}

	if outPos != expectedSize {
		return nil, fmt.Errorf("%w: produced %d bytes, want %d", ErrSizeMismatch, outPos, expectedSize)
	}

	return out, nil
}
