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

// Packed TEX layout constants.
const (
	texHeaderSize = 32 // magic + version + format + width + height + mip count + reserved
	texVersion    = 1
)

// TexMagic identifies the packed texture container ("TEXR").
var TexMagic = []byte{'T', 'E', 'X', 'R'}

// DecodeTEX parses a packed texture file into an Image. Every mip level
// is validated against the size formula; trailing bytes after the last
// level reject the file.
func DecodeTEX(data []byte) (*Image, error) {
	if len(data) < texHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d header bytes", ErrInvalidHeader, len(data), texHeaderSize)
	}

	cur := binio.NewCursor(data)
	magic, err := cur.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic, TexMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidHeader)
	}

	version, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != texVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidHeader, version)
	}

	format, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read format: %w", err)
	}

	width, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read width: %w", err)
	}

	height, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read height: %w", err)
	}

	mipCount, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read mip count: %w", err)
	}

	if err := cur.Skip(8); err != nil {
		return nil, fmt.Errorf("skip reserved: %w", err)
	}

	img := &Image{
		Width:    width,
		Height:   height,
		MipCount: mipCount,
		Format:   PixelFormat(format),
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

// EncodeTEX serializes an Image into packed texture form. Level bytes
// are written as-is after validation.
func EncodeTEX(img *Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrInvalidHeader)
	}
	if err := img.validate(); err != nil {
		return nil, err
	}

	total := texHeaderSize
	for _, level := range img.Levels {
		total += len(level)
	}

	w := binio.NewWriter(total)
	w.WriteBytes(TexMagic)
	w.WriteU32(binary.LittleEndian, texVersion)
	w.WriteU32(binary.LittleEndian, uint32(img.Format))
	w.WriteU32(binary.LittleEndian, img.Width)
	w.WriteU32(binary.LittleEndian, img.Height)
	w.WriteU32(binary.LittleEndian, img.MipCount)
	w.WriteZeros(8)
	for _, level := range img.Levels {
		w.WriteBytes(level)
	}

	return w.Bytes(), nil
}

// readLevels slices each mip payload off the cursor, largest level first.
func readLevels(cur *binio.Cursor, img *Image) ([][]byte, error) {
	if img.MipCount == 0 || img.MipCount > maxMipLevels(img.Width, img.Height) {
		return nil, fmt.Errorf("%w: mip count %d for %dx%d", ErrInvalidHeader, img.MipCount, img.Width, img.Height)
	}

	levels := make([][]byte, 0, img.MipCount)
	for i := 0; i < int(img.MipCount); i++ {
		w, h := levelDims(img.Width, img.Height, i)
		size, err := LevelSize(img.Format, w, h)
		if err != nil {
			return nil, err
		}
		if cur.Remaining() < size {
			return nil, fmt.Errorf("%w: level %d needs %d bytes, %d remain",
				ErrMipDataSize, i, size, cur.Remaining())
		}

		level, err := cur.ReadBytes(size)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}

		levels = append(levels, level)
	}

	return levels, nil
}
