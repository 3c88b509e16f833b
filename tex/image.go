// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package tex converts game textures between the packed TEX container
// and DDS. Pixel payloads are carried through untouched; only headers
// are rewritten, so a conversion round trip is byte-identical.
package tex

import (
	"fmt"
	"math/bits"
)

// PixelFormat identifies the pixel encoding of all mip levels.
type PixelFormat uint32

// Packed pixel-format ids as stored in the TEX header.
const (
	FormatDXT1 PixelFormat = iota
	FormatDXT3
	FormatDXT5
	FormatBC5
	FormatRGBA8
)

// String returns the conventional format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatDXT1:
		return "DXT1"
	case FormatDXT3:
		return "DXT3"
	case FormatDXT5:
		return "DXT5"
	case FormatBC5:
		return "BC5"
	case FormatRGBA8:
		return "RGBA8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint32(f))
	}
}

// blockSize returns the bytes per 4x4 block for block-compressed
// formats, or 0 for uncompressed formats.
func (f PixelFormat) blockSize() int {
	switch f {
	case FormatDXT1:
		return 8
	case FormatDXT3, FormatDXT5, FormatBC5:
		return 16
	default:
		return 0
	}
}

// valid reports whether f is one of the known format ids.
func (f PixelFormat) valid() bool {
	switch f {
	case FormatDXT1, FormatDXT3, FormatDXT5, FormatBC5, FormatRGBA8:
		return true
	default:
		return false
	}
}

// Image is the decoded texture: header metadata plus the raw bytes of
// every mip level, largest level first.
type Image struct {
	// Width is the pixel width of level 0.
	Width uint32 `json:"width"`
	// Height is the pixel height of level 0.
	Height uint32 `json:"height"`
	// MipCount is the number of stored mip levels, at least 1.
	MipCount uint32 `json:"mip_count"`
	// Format is the shared pixel encoding of all levels.
	Format PixelFormat `json:"format"`
	// Levels holds the raw payload of each mip level in stored order.
	Levels [][]byte `json:"-"`
}

// LevelSize returns the byte length a mip level must have for the given
// format and level dimensions. Block-compressed formats round dimensions
// up to whole 4x4 blocks; each dimension clamps at one block.
func LevelSize(format PixelFormat, width, height uint32) (int, error) {
	if !format.valid() {
		return 0, fmt.Errorf("%w: id %d", ErrUnsupportedPixelFormat, uint32(format))
	}

	if bs := format.blockSize(); bs != 0 {
		bw := max((int64(width)+3)/4, 1)
		bh := max((int64(height)+3)/4, 1)
		return int(bw * bh * int64(bs)), nil
	}

	return int(int64(width) * int64(height) * 4), nil
}

// levelDims returns the dimensions of mip level n. Each level halves the
// previous one, clamping at 1.
func levelDims(width, height uint32, level int) (uint32, uint32) {
	w := max(width>>uint(level), 1)
	h := max(height>>uint(level), 1)
	return w, h
}

// maxMipLevels returns the length of the mip chain down to 1x1 for the
// given level-0 dimensions.
func maxMipLevels(width, height uint32) uint32 {
	return uint32(bits.Len32(max(width, height)))
}

// validate checks structural sanity and every level length against the
// size formula.
func (img *Image) validate() error {
	if img.Width == 0 || img.Height == 0 {
		return fmt.Errorf("%w: zero dimension %dx%d", ErrInvalidHeader, img.Width, img.Height)
	}
	if img.MipCount == 0 {
		return fmt.Errorf("%w: zero mip count", ErrInvalidHeader)
	}
	if limit := maxMipLevels(img.Width, img.Height); img.MipCount > limit {
		return fmt.Errorf("%w: mip count %d, chain to 1x1 has %d levels",
			ErrInvalidHeader, img.MipCount, limit)
	}
	if !img.Format.valid() {
		return fmt.Errorf("%w: id %d", ErrUnsupportedPixelFormat, uint32(img.Format))
	}
	if uint32(len(img.Levels)) != img.MipCount {
		return fmt.Errorf("%w: %d levels for mip count %d", ErrMipDataSize, len(img.Levels), img.MipCount)
	}

	for i, level := range img.Levels {
		w, h := levelDims(img.Width, img.Height, i)
		want, err := LevelSize(img.Format, w, h)
		if err != nil {
			return err
		}
		if len(level) != want {
			return fmt.Errorf("%w: level %d is %d bytes, want %d (%dx%d %s)",
				ErrMipDataSize, i, len(level), want, w, h, img.Format)
		}
	}

	return nil
}
