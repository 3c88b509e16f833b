// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package archive

import "errors"

// Sentinel errors for archive parsing and extraction. Use errors.Is in callers.
var (
	// ErrInvalidHeader means the container is missing or has a bad header.
	ErrInvalidHeader = errors.New("invalid archive: missing or bad header")
	// ErrEntryBounds means an entry's payload range passes the end of the file.
	ErrEntryBounds = errors.New("entry payload out of file bounds")
	// ErrDuplicatePath means two directory entries resolve to the same path.
	// Policy: the archive is rejected rather than silently overwritten.
	ErrDuplicatePath = errors.New("duplicate path in directory")
	// ErrNilReader means the reader is nil or was constructed without a source.
	ErrNilReader = errors.New("reader is nil")
	// ErrClosed means the reader was already closed.
	ErrClosed = errors.New("reader already closed")
	// ErrInvalidExtractPath means an output path is unusable even after rewrite.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrInvalidIncludeRules means one or more extraction include rules are invalid.
	ErrInvalidIncludeRules = errors.New("invalid include rules")
	// ErrNameTableOffset means a directory record points outside the string table.
	ErrNameTableOffset = errors.New("name offset outside string table")
)
