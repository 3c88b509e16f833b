// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package tex

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/nomadwithoutahome/lithtools/binio"
)

// DDS layout constants.
const (
	ddsHeaderSize    = 128 // magic + 124-byte header
	ddsStructSize    = 124
	ddsPixelFmtSize  = 32
	ddsReservedWords = 11
)

// DDS header flags.
const (
	ddsdCaps        = 0x00000001
	ddsdHeight      = 0x00000002
	ddsdWidth       = 0x00000004
	ddsdPitch       = 0x00000008
	ddsdPixelFormat = 0x00001000
	ddsdMipMapCount = 0x00020000
	ddsdLinearSize  = 0x00080000
)

// DDS pixel-format flags.
const (
	ddpfAlphaPixels = 0x00000001
	ddpfFourCC      = 0x00000004
	ddpfRGB         = 0x00000040
)

// DDS caps bits.
const (
	ddscapsComplex = 0x00000008
	ddscapsTexture = 0x00001000
	ddscapsMipMap  = 0x00400000
)

// DDSMagic identifies a DDS file ("DDS ").
var DDSMagic = []byte{'D', 'D', 'S', ' '}

// fourCC codes for the block-compressed formats.
var (
	fourCCDXT1 = [4]byte{'D', 'X', 'T', '1'}
	fourCCDXT3 = [4]byte{'D', 'X', 'T', '3'}
	fourCCDXT5 = [4]byte{'D', 'X', 'T', '5'}
	fourCCATI2 = [4]byte{'A', 'T', 'I', '2'}
)

// A8R8G8B8 channel masks used for the uncompressed format.
const (
	maskR = 0x00FF0000
	maskG = 0x0000FF00
	maskB = 0x000000FF
	maskA = 0xFF000000
)

// DecodeDDS parses a DDS file into an Image. Only the five known pixel
// formats decode; anything else is rejected, never guessed.
func DecodeDDS(data []byte) (*Image, error) {
	if len(data) < ddsHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d header bytes", ErrInvalidHeader, len(data), ddsHeaderSize)
	}

	cur := binio.NewCursor(data)
	magic, err := cur.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic, DDSMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidHeader)
	}

	structSize, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read header size: %w", err)
	}
	if structSize != ddsStructSize {
		return nil, fmt.Errorf("%w: header size %d", ErrInvalidHeader, structSize)
	}

	// flags, then dimensions; pitch/linear size and depth are ignored
	if _, err := cur.ReadU32(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("read flags: %w", err)
	}

	height, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read height: %w", err)
	}

	width, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read width: %w", err)
	}

	if err := cur.Skip(8); err != nil {
		return nil, fmt.Errorf("skip pitch and depth: %w", err)
	}

	mipCount, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read mip count: %w", err)
	}
	if mipCount == 0 {
		mipCount = 1
	}

	if err := cur.Skip(ddsReservedWords * 4); err != nil {
		return nil, fmt.Errorf("skip reserved: %w", err)
	}

	format, err := parsePixelFormat(cur)
	if err != nil {
		return nil, err
	}

	// caps words and trailing reserved word
	if err := cur.Skip(5 * 4); err != nil {
		return nil, fmt.Errorf("skip caps: %w", err)
	}

	img := &Image{
		Width:    width,
		Height:   height,
		MipCount: mipCount,
		Format:   format,
	}

	levels, err := readLevels(cur, img)
	if err != nil {
		return nil, err
	}
	if cur.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after last level", ErrMipDataSize, cur.Remaining())
	}

	img.Levels = levels
	if err := img.validate(); err != nil {
		return nil, err
	}

	return img, nil
}

// EncodeDDS serializes an Image into a standard DDS file.
func EncodeDDS(img *Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidHeader)
	}
	if err := img.validate(); err != nil {
		return nil, err
	}

	total := ddsHeaderSize
	for _, level := range img.Levels {
		total += len(level)
	}

	flags := uint32(ddsdCaps | ddsdHeight | ddsdWidth | ddsdPixelFormat)
	caps := uint32(ddscapsTexture)
	if img.MipCount > 1 {
		flags |= ddsdMipMapCount
		caps |= ddscapsComplex | ddscapsMipMap
	}

	level0, err := LevelSize(img.Format, img.Width, img.Height)
	if err != nil {
		return nil, err
	}

	var pitchOrLinearSize uint32
	if img.Format.blockSize() != 0 {
		flags |= ddsdLinearSize
		pitchOrLinearSize = uint32(level0)
	} else {
		flags |= ddsdPitch
		pitchOrLinearSize = img.Width * 4
	}

	w := binio.NewWriter(total)
	w.WriteBytes(DDSMagic)
	w.WriteU32(binary.LittleEndian, ddsStructSize)
	w.WriteU32(binary.LittleEndian, flags)
	w.WriteU32(binary.LittleEndian, img.Height)
	w.WriteU32(binary.LittleEndian, img.Width)
	w.WriteU32(binary.LittleEndian, pitchOrLinearSize)
	w.WriteU32(binary.LittleEndian, 0) // depth
	w.WriteU32(binary.LittleEndian, img.MipCount)
	w.WriteZeros(ddsReservedWords * 4)
	writePixelFormat(w, img.Format)
	w.WriteU32(binary.LittleEndian, caps)
	w.WriteZeros(4 * 4) // caps2..caps4 and reserved2
	for _, level := range img.Levels {
		w.WriteBytes(level)
	}

	return w.Bytes(), nil
}

// parsePixelFormat maps the 32-byte DDS pixel-format block to a known
// PixelFormat.
func parsePixelFormat(cur *binio.Cursor) (PixelFormat, error) {
	pfSize, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return 0, fmt.Errorf("read pixel-format size: %w", err)
	}
	if pfSize != ddsPixelFmtSize {
		return 0, fmt.Errorf("%w: pixel-format size %d", ErrInvalidHeader, pfSize)
	}

	pfFlags, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return 0, fmt.Errorf("read pixel-format flags: %w", err)
	}

	fourCC, err := cur.ReadBytes(4)
	if err != nil {
		return 0, fmt.Errorf("read fourCC: %w", err)
	}

	bitCount, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return 0, fmt.Errorf("read bit count: %w", err)
	}

	var masks [4]uint32
	for i := range masks {
		masks[i], err = cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return 0, fmt.Errorf("read channel mask: %w", err)
		}
	}

	if pfFlags&ddpfFourCC != 0 {
		switch [4]byte(fourCC) {
		case fourCCDXT1:
			return FormatDXT1, nil
		case fourCCDXT3:
			return FormatDXT3, nil
		case fourCCDXT5:
			return FormatDXT5, nil
		case fourCCATI2:
			return FormatBC5, nil
		default:
			return 0, fmt.Errorf("%w: fourCC %q", ErrUnsupportedPixelFormat, fourCC)
		}
	}

	if pfFlags&ddpfRGB != 0 && bitCount == 32 &&
		masks[0] == maskR && masks[1] == maskG && masks[2] == maskB && masks[3] == maskA {
		return FormatRGBA8, nil
	}

	return 0, fmt.Errorf("%w: flags %#x, %d bpp", ErrUnsupportedPixelFormat, pfFlags, bitCount)
}

// writePixelFormat emits the 32-byte DDS pixel-format block.
func writePixelFormat(w *binio.Writer, format PixelFormat) {
	w.WriteU32(binary.LittleEndian, ddsPixelFmtSize)

	var fourCC [4]byte
	switch format {
	case FormatDXT1:
		fourCC = fourCCDXT1
	case FormatDXT3:
		fourCC = fourCCDXT3
	case FormatDXT5:
		fourCC = fourCCDXT5
	case FormatBC5:
		fourCC = fourCCATI2
	case FormatRGBA8:
		w.WriteU32(binary.LittleEndian, ddpfRGB|ddpfAlphaPixels)
		w.WriteZeros(4) // no fourCC
		w.WriteU32(binary.LittleEndian, 32)
		w.WriteU32(binary.LittleEndian, maskR)
		w.WriteU32(binary.LittleEndian, maskG)
		w.WriteU32(binary.LittleEndian, maskB)
		w.WriteU32(binary.LittleEndian, maskA)
		return
	}

	w.WriteU32(binary.LittleEndian, ddpfFourCC)
	w.WriteBytes(fourCC[:])
	w.WriteZeros(5 * 4) // bit count and masks unused with fourCC
}
