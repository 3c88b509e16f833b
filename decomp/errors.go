// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package decomp

import "errors"

// Sentinel errors for decompression. Use errors.Is in callers.
var (
	// ErrUnsupportedScheme means the scheme tag has no registered decompressor.
	// Callers must pass the stored bytes through and flag the entry,
	// never drop it.
	ErrUnsupportedScheme = errors.New("unsupported compression scheme")
	// ErrSizeMismatch means decompression succeeded but produced a byte count
	// different from the directory table's uncompressed size.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
	// ErrCorruptData means the compressed stream itself is malformed.
	ErrCorruptData = errors.New("corrupt compressed data")
)
