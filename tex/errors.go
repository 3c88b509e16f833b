// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package tex

import "errors"

var (
	// ErrInvalidHeader is returned when magic, version or structural
	// header fields do not describe a decodable texture.
	ErrInvalidHeader = errors.New("tex: invalid header")

	// ErrUnsupportedPixelFormat is returned when a packed format id or a
	// DDS pixel-format block maps to no known format. Formats are never
	// guessed.
	ErrUnsupportedPixelFormat = errors.New("tex: unsupported pixel format")

	// ErrMipDataSize is returned when a mip level's payload length does
	// not match the length implied by format and dimensions.
	ErrMipDataSize = errors.New("tex: mip level size mismatch")

	// ErrUnsupportedConversion is returned by ConvertFile when the
	// source and destination extensions name no known direction.
	ErrUnsupportedConversion = errors.New("tex: unsupported conversion")
)
