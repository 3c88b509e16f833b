// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package archive holds the shared in-memory directory model for the
// container formats, the path-safety pipeline that keeps hostile entry
// names inside the output root, and the extraction flow every parser
// delegates to.
package archive

import (
	"encoding/binary"
	"fmt"
	"path"
	"strings"

	"github.com/nomadwithoutahome/lithtools/decomp"
)

// Endianness is the byte order a container's directory was parsed under.
type Endianness uint8

// Directory byte orders.
const (
	// LittleEndian marks a little-endian directory table.
	LittleEndian Endianness = iota
	// BigEndian marks a big-endian directory table.
	BigEndian
)

// Order returns the matching encoding/binary byte order.
func (e Endianness) Order() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// String returns a short stable name for the byte order.
func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}

	return "little"
}

// FormatKind names a container format variant.
type FormatKind string

// Container format kinds.
const (
	// FormatArch is the simple-indexed archive (.arch00/.arch01).
	FormatArch FormatKind = "arch"
	// FormatBundle is the segmented-indexed bundle (.bndl).
	FormatBundle FormatKind = "bndl"
	// FormatDSPack is the compressed dual-endian pack (.dspack).
	FormatDSPack FormatKind = "dspack"
)

// Entry describes one logical file recorded in a container directory.
type Entry struct {
	// Path is the safe slash-separated relative path inside the archive.
	Path string `json:"path"`
	// SourcePath is the path exactly as recorded in the directory, before
	// any safety rewrite. Duplicate detection runs on this form so that a
	// rewritten hostile path colliding with a legitimate one does not read
	// as a directory-level duplicate.
	SourcePath string `json:"source_path,omitempty"`
	// Offset is the absolute byte offset of the stored payload.
	Offset uint64 `json:"offset"`
	// StoredSize is the on-disk payload size in bytes.
	StoredSize uint64 `json:"stored_size"`
	// UncompressedSize equals StoredSize for uncompressed entries.
	UncompressedSize uint64 `json:"uncompressed_size"`
	// Scheme is the per-entry compression scheme tag.
	Scheme decomp.Scheme `json:"scheme,omitempty"`
	// PathRewritten reports whether the stored path contained hostile or
	// unusable components that were rewritten into safe relative form.
	PathRewritten bool `json:"path_rewritten,omitempty"`
}

// IsCompressed reports whether the entry payload needs decompression.
func (e *Entry) IsCompressed() bool {
	return e.Scheme != decomp.SchemeNone
}

// Directory is the parsed directory table of one container file.
type Directory struct {
	// Entries are kept in directory order for deterministic behavior.
	Entries []Entry `json:"entries"`
	// Endianness is the byte order the directory was parsed under.
	Endianness Endianness `json:"endianness"`
	// Kind names the container format variant.
	Kind FormatKind `json:"kind"`
	// AmbiguousEndianness reports that both byte-order interpretations were
	// plausible and the little-endian default was selected.
	AmbiguousEndianness bool `json:"ambiguous_endianness,omitempty"`
}

// EntryCount returns the number of directory entries.
func (d *Directory) EntryCount() int {
	if d == nil {
		return 0
	}

	return len(d.Entries)
}

// ExtensionStats returns per-extension file counts for analysis views.
func (d *Directory) ExtensionStats() map[string]int {
	stats := make(map[string]int)
	for i := range d.Entries {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(d.Entries[i].Path), "."))
		if ext == "" {
			continue
		}

		stats[ext]++
	}

	return stats
}

// Validate checks directory invariants against the source file size:
// every payload range stays inside the file, uncompressed entries carry
// matching sizes, and no two entries share a stored path
// (case-insensitive). Paths that collide only after safety rewriting are
// not duplicates here; extraction resolves those with numeric suffixes.
func (d *Directory) Validate(totalSize int64) error {
	seen := make(map[string]struct{}, len(d.Entries))
	for i := range d.Entries {
		e := &d.Entries[i]

		end := e.Offset + e.StoredSize
		if end < e.Offset || end > uint64(totalSize) {
			return fmt.Errorf("%w: entry %s range [%d, %d) in file of %d bytes",
				ErrEntryBounds, e.Path, e.Offset, end, totalSize)
		}

		if e.Scheme == decomp.SchemeNone && e.UncompressedSize != e.StoredSize {
			return fmt.Errorf("%w: uncompressed entry %s declares %d of %d bytes",
				ErrInvalidHeader, e.Path, e.UncompressedSize, e.StoredSize)
		}

		src := e.SourcePath
		if src == "" {
			src = e.Path
		}

		// separators unified, structure kept: "../a" must stay distinct from "a"
		key := strings.ToLower(strings.ReplaceAll(src, `\`, "/"))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, src)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// ValidateStoredTotal checks that the sum of stored payload sizes plus
// the given structural overhead fits the source file. Formats that store
// payloads verbatim and never share ranges use this to reject directories
// whose entries overlap.
func (d *Directory) ValidateStoredTotal(totalSize, overhead int64) error {
	total := uint64(overhead)
	for i := range d.Entries {
		e := &d.Entries[i]

		next := total + e.StoredSize
		if next < total || next > uint64(totalSize) {
			return fmt.Errorf("%w: stored payloads plus %d structure bytes exceed file of %d bytes at entry %s",
				ErrEntryBounds, overhead, totalSize, e.Path)
		}
		total = next
	}

	return nil
}
