// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package bndl parses the segmented-indexed bundle format (.bndl): the
// header declares named segments, each segment owns a sub-directory of
// entries relative to its base offset, and all names live in one pooled
// string table addressed by byte offset.
package bndl

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/nomadwithoutahome/lithtools/archive"
	"github.com/nomadwithoutahome/lithtools/binio"
	"github.com/nomadwithoutahome/lithtools/decomp"
)

// On-disk layout constants.
const (
	headerSize      = 24 // magic + version + segment count + table offset/size + reserved
	segmentSize     = 16 // name offset + base offset + entry count + directory offset
	entryRecordSize = 12 // name offset + relative offset + size
	maxNameLen      = 512
)

// Magic identifies the container ("BNDL").
var Magic = []byte{'B', 'N', 'D', 'L'}

// Segment is one named region of the bundle with its own sub-directory.
type Segment struct {
	// Name is the segment name from the pooled string table.
	Name string `json:"name"`
	// BaseOffset is the absolute payload base for the segment's entries.
	BaseOffset uint32 `json:"base_offset"`
	// EntryCount is the number of entries in the segment sub-directory.
	EntryCount uint32 `json:"entry_count"`
	// DirOffset is the absolute offset of the segment sub-directory.
	DirOffset uint32 `json:"dir_offset"`
}

// Reader provides read-only access to a parsed bundle.
type Reader struct {
	// ra is the underlying random-access source for payload reads.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// dir is the parsed directory model.
	dir *archive.Directory
	// segments are kept in header order.
	segments []Segment
	// size is total source size in bytes.
	size int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// Open opens a bundle by path and parses its directory.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	r, err := NewReaderFromReaderAt(f, fi.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r.file = f
	return r, nil
}

// NewReaderFromReaderAt parses a bundle from an existing ReaderAt and known size.
func NewReaderFromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	dir, segments, err := parse(ra, size)
	if err != nil {
		return nil, err
	}

	return &Reader{ra: ra, size: size, dir: dir, segments: segments}, nil
}

// Directory returns the parsed directory model.
func (r *Reader) Directory() *archive.Directory {
	if r == nil {
		return nil
	}

	return r.dir
}

// Segments returns parsed segments in header order.
func (r *Reader) Segments() []Segment {
	if r == nil {
		return nil
	}

	out := make([]Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

// Extract writes all directory entries to dstDir.
func (r *Reader) Extract(ctx context.Context, dstDir string, opts archive.ExtractOptions) ([]archive.EntryReport, error) {
	if r == nil || r.ra == nil {
		return nil, archive.ErrNilReader
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, archive.ErrClosed
	}

	return archive.Extract(ctx, r.ra, r.dir, decomp.Default(), dstDir, opts)
}

// Close closes the underlying file if the reader owns one.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}

	return nil
}

// Parse reads and validates the bundle directory from a random-access source.
func Parse(ra io.ReaderAt, size int64) (*archive.Directory, error) {
	dir, _, err := parse(ra, size)
	return dir, err
}

// parse decodes header, segment table, string table and sub-directories.
func parse(ra io.ReaderAt, size int64) (*archive.Directory, []Segment, error) {
	if ra == nil {
		return nil, nil, archive.ErrNilReader
	}
	if size < headerSize {
		return nil, nil, fmt.Errorf("%w: short header", archive.ErrInvalidHeader)
	}

	header := make([]byte, headerSize)
	if _, err := ra.ReadAt(header, 0); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	cur := binio.NewCursor(header)
	magic, err := cur.ReadBytes(4)
	if err != nil {
		return nil, nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic, Magic) {
		return nil, nil, fmt.Errorf("%w: bad magic", archive.ErrInvalidHeader)
	}

	// version is declared but no revision changes the layout yet
	if _, err := cur.ReadU32(binary.LittleEndian); err != nil {
		return nil, nil, fmt.Errorf("read version: %w", err)
	}

	segmentCount, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("read segment count: %w", err)
	}

	nameTableOffset, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("read name table offset: %w", err)
	}

	nameTableSize, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, nil, fmt.Errorf("read name table size: %w", err)
	}

	if int64(nameTableOffset)+int64(nameTableSize) > size {
		return nil, nil, fmt.Errorf("%w: string table [%d, %d) in file of %d bytes",
			archive.ErrInvalidHeader, nameTableOffset, int64(nameTableOffset)+int64(nameTableSize), size)
	}

	segTableLen := int64(segmentCount) * segmentSize
	if headerSize+segTableLen > size {
		return nil, nil, fmt.Errorf("%w: segment table passes end of file", archive.ErrInvalidHeader)
	}

	nameTable := make([]byte, nameTableSize)
	if _, err := ra.ReadAt(nameTable, int64(nameTableOffset)); err != nil {
		return nil, nil, fmt.Errorf("read string table: %w", err)
	}

	segTable := make([]byte, segTableLen)
	if _, err := ra.ReadAt(segTable, headerSize); err != nil {
		return nil, nil, fmt.Errorf("read segment table: %w", err)
	}

	segments, err := parseSegments(segTable, int(segmentCount), nameTable, size)
	if err != nil {
		return nil, nil, err
	}

	entries, err := parseSegmentEntries(ra, segments, nameTable)
	if err != nil {
		return nil, nil, err
	}

	dir := &archive.Directory{
		Entries:    entries,
		Endianness: archive.LittleEndian,
		Kind:       archive.FormatBundle,
	}
	if err := dir.Validate(size); err != nil {
		return nil, nil, err
	}

	overhead := int64(headerSize) + segTableLen + int64(nameTableSize)
	for i := range segments {
		overhead += int64(segments[i].EntryCount) * entryRecordSize
	}
	if err := dir.ValidateStoredTotal(size, overhead); err != nil {
		return nil, nil, err
	}

	return dir, segments, nil
}

// parseSegments decodes the segment table and validates sub-directory bounds.
func parseSegments(segTable []byte, segmentCount int, nameTable []byte, size int64) ([]Segment, error) {
	cur := binio.NewCursor(segTable)
	segments := make([]Segment, 0, segmentCount)

	for i := 0; i < segmentCount; i++ {
		nameOffset, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("segment %d name offset: %w", i, err)
		}

		baseOffset, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("segment %d base offset: %w", i, err)
		}

		entryCount, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("segment %d entry count: %w", i, err)
		}

		dirOffset, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("segment %d directory offset: %w", i, err)
		}

		if int64(dirOffset)+int64(entryCount)*entryRecordSize > size {
			return nil, fmt.Errorf("%w: segment %d sub-directory passes end of file", archive.ErrInvalidHeader, i)
		}

		name, err := lookupName(nameTable, nameOffset)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}

		segments = append(segments, Segment{
			Name:       name,
			BaseOffset: baseOffset,
			EntryCount: entryCount,
			DirOffset:  dirOffset,
		})
	}

	return segments, nil
}

// parseSegmentEntries decodes each segment's sub-directory into flat entries.
func parseSegmentEntries(ra io.ReaderAt, segments []Segment, nameTable []byte) ([]archive.Entry, error) {
	var entries []archive.Entry
	for si := range segments {
		seg := &segments[si]
		if seg.EntryCount == 0 {
			continue
		}

		table := make([]byte, int64(seg.EntryCount)*entryRecordSize)
		if _, err := ra.ReadAt(table, int64(seg.DirOffset)); err != nil {
			return nil, fmt.Errorf("read segment %s sub-directory: %w", seg.Name, err)
		}

		cur := binio.NewCursor(table)
		for i := uint32(0); i < seg.EntryCount; i++ {
			nameOffset, err := cur.ReadU32(binary.LittleEndian)
			if err != nil {
				return nil, fmt.Errorf("segment %s entry %d name offset: %w", seg.Name, i, err)
			}

			relOffset, err := cur.ReadU32(binary.LittleEndian)
			if err != nil {
				return nil, fmt.Errorf("segment %s entry %d offset: %w", seg.Name, i, err)
			}

			dataSize, err := cur.ReadU32(binary.LittleEndian)
			if err != nil {
				return nil, fmt.Errorf("segment %s entry %d size: %w", seg.Name, i, err)
			}

			name, err := lookupName(nameTable, nameOffset)
			if err != nil {
				return nil, fmt.Errorf("segment %s entry %d: %w", seg.Name, i, err)
			}

			safePath, rewritten := archive.SafeRelativePath(seg.Name + "/" + name)
			entries = append(entries, archive.Entry{
				Path:             safePath,
				SourcePath:       seg.Name + "/" + name,
				Offset:           uint64(seg.BaseOffset) + uint64(relOffset),
				StoredSize:       uint64(dataSize),
				UncompressedSize: uint64(dataSize),
				Scheme:           decomp.SchemeNone,
				PathRewritten:    rewritten,
			})
		}
	}

	return entries, nil
}

// lookupName resolves a NUL-terminated string by byte offset in the pooled table.
func lookupName(nameTable []byte, offset uint32) (string, error) {
	if int64(offset) >= int64(len(nameTable)) {
		return "", fmt.Errorf("%w: offset %d, table %d bytes", archive.ErrNameTableOffset, offset, len(nameTable))
	}

	cur := binio.NewCursor(nameTable)
	if err := cur.SeekTo(int64(offset)); err != nil {
		return "", fmt.Errorf("%w: offset %d", archive.ErrNameTableOffset, offset)
	}

	name, err := cur.ReadString(maxNameLen)
	if err != nil {
		return "", fmt.Errorf("string table at %d: %w", offset, err)
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty name at offset %d", archive.ErrInvalidHeader, offset)
	}

	return name, nil
}
