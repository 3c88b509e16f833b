// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package dspack parses the compressed dual-endian pack format (.dspack).
// The byte order of the header fields is not declared by any flag and must
// be inferred from directory plausibility; each directory record carries a
// per-entry compression scheme tag resolved through the decompression
// dispatcher at extraction time.
package dspack

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
	headerSize = 24 // magic + version + entry count + dir offset + name table offset/size
	recordSize = 20 // name offset + data offset + stored size + raw size + scheme
	maxNameLen = 512
)

// Magic identifies the container ("DSPK"); it is compared as raw bytes and
// carries no byte-order information.
var Magic = []byte{'D', 'S', 'P', 'K'}

// header holds decoded header fields under one byte-order interpretation.
type header struct {
	version         uint32
	entryCount      uint32
	dirOffset       uint32
	nameTableOffset uint32
	nameTableSize   uint32
}

// Options configures pack reading.
type Options struct {
	// Dispatcher resolves per-entry compression schemes during extraction.
	// Nil means the default scheme table.
	Dispatcher *decomp.Dispatcher
}

// Reader provides read-only access to a parsed pack.
type Reader struct {
	// ra is the underlying random-access source for payload reads.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// dir is the parsed directory model.
	dir *archive.Directory
	// disp resolves compression schemes during extraction.
	disp *decomp.Dispatcher
	// size is total source size in bytes.
	size int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// Open opens a pack by path and parses its directory.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, Options{})
}

// OpenWithOptions opens a pack by path using explicit options.
func OpenWithOptions(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pack: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	r, err := NewReaderFromReaderAtWithOptions(f, fi.Size(), opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r.file = f
	return r, nil
}

// NewReaderFromReaderAt parses a pack from an existing ReaderAt and known size.
func NewReaderFromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	return NewReaderFromReaderAtWithOptions(ra, size, Options{})
}

// NewReaderFromReaderAtWithOptions parses a pack using explicit options.
func NewReaderFromReaderAtWithOptions(ra io.ReaderAt, size int64, opts Options) (*Reader, error) {
	dir, err := Parse(ra, size)
	if err != nil {
		return nil, err
	}

	disp := opts.Dispatcher
	if disp == nil {
		disp = decomp.Default()
	}

	return &Reader{ra: ra, size: size, dir: dir, disp: disp}, nil
}

// Directory returns the parsed directory model without extracting.
func (r *Reader) Directory() *archive.Directory {
	if r == nil {
		return nil
	}

	return r.dir
}

// Extract writes all directory entries to dstDir. Entries with an
// unrecognized scheme tag are written verbatim and flagged in their
// report rather than treated as extraction failures.
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

	return archive.Extract(ctx, r.ra, r.dir, r.disp, dstDir, opts)
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

// Parse reads and validates the pack directory from a random-access source.
// Byte order is inferred; when both interpretations are plausible the
// little-endian default is selected and the directory is flagged ambiguous.
func Parse(ra io.ReaderAt, size int64) (*archive.Directory, error) {
	if ra == nil {
		return nil, archive.ErrNilReader
	}
	if size < headerSize {
		return nil, fmt.Errorf("%w: short header", archive.ErrInvalidHeader)
	}

	raw := make([]byte, headerSize)
	if _, err := ra.ReadAt(raw, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(raw[:4], Magic) {
		return nil, fmt.Errorf("%w: bad magic", archive.ErrInvalidHeader)
	}

	order, hdr, ambiguous, err := inferByteOrder(ra, raw, size)
	if err != nil {
		return nil, err
	}

	nameTable := make([]byte, hdr.nameTableSize)
	if _, err := ra.ReadAt(nameTable, int64(hdr.nameTableOffset)); err != nil {
		return nil, fmt.Errorf("read string table: %w", err)
	}

	table := make([]byte, int64(hdr.entryCount)*recordSize)
	if _, err := ra.ReadAt(table, int64(hdr.dirOffset)); err != nil {
		return nil, fmt.Errorf("read directory table: %w", err)
	}

	entries, err := parseRecords(table, int(hdr.entryCount), nameTable, order.Order())
	if err != nil {
		return nil, err
	}

	dir := &archive.Directory{
		Entries:             entries,
		Endianness:          order,
		Kind:                archive.FormatDSPack,
		AmbiguousEndianness: ambiguous,
	}
	if err := dir.Validate(size); err != nil {
		return nil, err
	}

	return dir, nil
}

// inferByteOrder evaluates both byte-order interpretations of the header.
// An interpretation is plausible when the directory table fits the file
// and the first record's data offset is non-zero and in bounds. Both
// plausible selects little-endian and reports the ambiguity; neither
// plausible rejects the file. The decision is a pure function of the
// bytes, so repeated calls always agree.
func inferByteOrder(ra io.ReaderAt, raw []byte, size int64) (archive.Endianness, header, bool, error) {
	littleHdr, littleOK := plausibleHeader(ra, raw, size, binary.LittleEndian)
	bigHdr, bigOK := plausibleHeader(ra, raw, size, binary.BigEndian)

	switch {
	case littleOK && bigOK:
		return archive.LittleEndian, littleHdr, true, nil
	case littleOK:
		return archive.LittleEndian, littleHdr, false, nil
	case bigOK:
		return archive.BigEndian, bigHdr, false, nil
	default:
		return archive.LittleEndian, header{}, false,
			fmt.Errorf("%w: no plausible byte order", archive.ErrInvalidHeader)
	}
}

// plausibleHeader decodes the header under one byte order and checks
// directory and first-entry plausibility.
func plausibleHeader(ra io.ReaderAt, raw []byte, size int64, order binary.ByteOrder) (header, bool) {
	hdr := header{
		version:         order.Uint32(raw[4:8]),
		entryCount:      order.Uint32(raw[8:12]),
		dirOffset:       order.Uint32(raw[12:16]),
		nameTableOffset: order.Uint32(raw[16:20]),
		nameTableSize:   order.Uint32(raw[20:24]),
	}

	if hdr.entryCount == 0 {
		return hdr, false
	}

	tableLen := int64(hdr.entryCount) * recordSize
	if int64(hdr.dirOffset) < headerSize || int64(hdr.dirOffset)+tableLen > size {
		return hdr, false
	}
	if int64(hdr.nameTableOffset)+int64(hdr.nameTableSize) > size {
		return hdr, false
	}

	var first [recordSize]byte
	if _, err := ra.ReadAt(first[:], int64(hdr.dirOffset)); err != nil {
		return hdr, false
	}

	dataOffset := order.Uint32(first[4:8])
	storedSize := order.Uint32(first[8:12])
	if dataOffset == 0 || int64(dataOffset)+int64(storedSize) > size {
		return hdr, false
	}

	return hdr, true
}

// parseRecords decodes directory records under the selected byte order.
func parseRecords(table []byte, entryCount int, nameTable []byte, order binary.ByteOrder) ([]archive.Entry, error) {
	cur := binio.NewCursor(table)
	entries := make([]archive.Entry, 0, entryCount)

	for i := 0; i < entryCount; i++ {
		nameOffset, err := cur.ReadU32(order)
		if err != nil {
			return nil, fmt.Errorf("record %d name offset: %w", i, err)
		}

		dataOffset, err := cur.ReadU32(order)
		if err != nil {
			return nil, fmt.Errorf("record %d data offset: %w", i, err)
		}

		storedSize, err := cur.ReadU32(order)
		if err != nil {
			return nil, fmt.Errorf("record %d stored size: %w", i, err)
		}

		rawSize, err := cur.ReadU32(order)
		if err != nil {
			return nil, fmt.Errorf("record %d raw size: %w", i, err)
		}

		scheme, err := cur.ReadU32(order)
		if err != nil {
			return nil, fmt.Errorf("record %d scheme: %w", i, err)
		}

		name, err := lookupName(nameTable, nameOffset)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}

		uncompressed := uint64(rawSize)
		if decomp.Scheme(scheme) == decomp.SchemeNone && rawSize == 0 {
			uncompressed = uint64(storedSize)
		}

		safePath, rewritten := archive.SafeRelativePath(name)
		entries = append(entries, archive.Entry{
			Path:             safePath,
			SourcePath:       name,
			Offset:           uint64(dataOffset),
			StoredSize:       uint64(storedSize),
			UncompressedSize: uncompressed,
			Scheme:           decomp.Scheme(scheme),
			PathRewritten:    rewritten,
		})
	}

	return entries, nil
}

// lookupName resolves a NUL-terminated string by byte offset in the name table.
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
