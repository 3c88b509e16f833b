// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package decomp maps per-entry compression scheme tags to decompressor
// implementations. The scheme table is fixed at construction time so the
// supported set is explicit and testable; unknown tags are reported with
// a distinguished error instead of being guessed at.
package decomp

import "fmt"

// Scheme is a per-entry compression scheme tag from a directory table.
type Scheme uint32

// Known scheme tags. SchemeDeflateBlocks keeps the id the archive format
// stores on disk for its zlib block streams.
const (
	// SchemeNone marks uncompressed payload.
	SchemeNone Scheme = 0
	// SchemeMiniPack marks MiniPack LZSS-variant payload (dsPack entries).
	SchemeMiniPack Scheme = 1
	// SchemeLZSS marks classic LZSS payload.
	SchemeLZSS Scheme = 3
	// SchemeLZ4 marks LZ4 frame payload.
	SchemeLZ4 Scheme = 4
	// SchemeDeflateBlocks marks the block-based raw deflate stream.
	SchemeDeflateBlocks Scheme = 9
)

// String returns a short stable name for the scheme tag.
func (s Scheme) String() string {
	switch s {
	case SchemeNone:
		return "none"
	case SchemeMiniPack:
		return "minipack"
	case SchemeLZSS:
		return "lzss"
	case SchemeLZ4:
		return "lz4"
	case SchemeDeflateBlocks:
		return "deflate-blocks"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// Func decompresses src into exactly expectedSize bytes.
type Func func(src []byte, expectedSize int) ([]byte, error)

// Dispatcher resolves scheme tags against a fixed decompressor table.
type Dispatcher struct {
	// table holds the construction-time scheme set.
	table map[Scheme]Func
}

// NewDispatcher builds a dispatcher over an explicit scheme table.
// The table is copied; SchemeNone never needs a table entry.
func NewDispatcher(table map[Scheme]Func) *Dispatcher {
	copied := make(map[Scheme]Func, len(table))
	for scheme, fn := range table {
		if fn == nil {
			continue
		}

		copied[scheme] = fn
	}

	return &Dispatcher{table: copied}
}

// Default returns a dispatcher with every scheme this engine implements.
func Default() *Dispatcher {
	return NewDispatcher(map[Scheme]Func{
		SchemeMiniPack:      MiniPack,
		SchemeLZSS:          LZSS,
		SchemeLZ4:           LZ4,
		SchemeDeflateBlocks: DeflateBlocks,
	})
}

// Supported reports whether the scheme can be decompressed by this dispatcher.
func (d *Dispatcher) Supported(scheme Scheme) bool {
	if scheme == SchemeNone {
		return true
	}

	_, ok := d.table[scheme]
	return ok
}

// Decompress resolves scheme and decodes src into exactly expectedSize bytes.
// SchemeNone passes src through unchanged; an unregistered scheme returns
// ErrUnsupportedScheme; a successful decode of the wrong length returns
// ErrSizeMismatch and the output is never truncated or padded to fit.
func (d *Dispatcher) Decompress(scheme Scheme, src []byte, expectedSize int) ([]byte, error) {
	if expectedSize < 0 {
		return nil, fmt.Errorf("%w: negative expected size %d", ErrCorruptData, expectedSize)
	}

	if scheme == SchemeNone {
		if len(src) != expectedSize {
			return nil, fmt.Errorf("%w: stored %d bytes, directory says %d", ErrSizeMismatch, len(src), expectedSize)
		}

		return src, nil
	}

	fn, ok := d.table[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	out, err := fn(src, expectedSize)
	if err != nil {
		return nil, fmt.Errorf("scheme %s: %w", scheme, err)
	}

	if len(out) != expectedSize {
		return nil, fmt.Errorf("%w: scheme %s produced %d bytes, directory says %d",
			ErrSizeMismatch, scheme, len(out), expectedSize)
	}

	return out, nil
}
