// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package arch parses the simple-indexed archive format (.arch00/.arch01):
// a fixed header, then a flat directory of fixed-size records with inline
// path bytes. Payloads are stored uncompressed and the whole container is
// little-endian.
package arch

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
	headerSize  = 16 // magic + version + entry count + directory offset
	recordSize  = 64 // 48 path bytes + offset + size + reserved
	nameLen     = 48 // fixed NUL-padded path field
	versionMax  = 1  // .arch00 stores 0, .arch01 stores 1
)

// Magic identifies the container ("ARCH").
var Magic = []byte{'A', 'R', 'C', 'H'}

// Reader provides read-only access to a parsed archive.
type Reader struct {
	// ra is the underlying random-access source for payload reads.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// dir is the parsed directory model.
	dir *archive.Directory
	// size is total source size in bytes.
	size int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// Open opens an archive by path and parses its directory.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
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

// NewReaderFromReaderAt parses an archive from an existing ReaderAt and known size.
func NewReaderFromReaderAt(ra io.ReaderAt, size int64) (*Reader, error) {
	dir, err := Parse(ra, size)
	if err != nil {
		return nil, err
	}

	return &Reader{ra: ra, size: size, dir: dir}, nil
}

// Directory returns the parsed directory model.
func (r *Reader) Directory() *archive.Directory {
	if r == nil {
		return nil
	}

	return r.dir
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

// Parse reads and validates the archive directory from a random-access source.
// No partial directory is returned on failure.
func Parse(ra io.ReaderAt, size int64) (*archive.Directory, error) {
	if ra == nil {
		return nil, archive.ErrNilReader
	}
	if size < headerSize {
		return nil, fmt.Errorf("%w: short header", archive.ErrInvalidHeader)
	}

	header := make([]byte, headerSize)
	if _, err := ra.ReadAt(header, 0); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cur := binio.NewCursor(header)
	magic, err := cur.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if !bytes.Equal(magic, Magic) {
		return nil, fmt.Errorf("%w: bad magic", archive.ErrInvalidHeader)
	}

	version, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version > versionMax {
		return nil, fmt.Errorf("%w: unsupported version %d", archive.ErrInvalidHeader, version)
	}

	entryCount, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}

	dirOffset, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read directory offset: %w", err)
	}

	tableLen := int64(entryCount) * recordSize
	if int64(dirOffset) < headerSize || int64(dirOffset)+tableLen > size {
		return nil, fmt.Errorf("%w: directory table [%d, %d) in file of %d bytes",
			archive.ErrInvalidHeader, dirOffset, int64(dirOffset)+tableLen, size)
	}

	table := make([]byte, tableLen)
	if _, err := ra.ReadAt(table, int64(dirOffset)); err != nil {
		return nil, fmt.Errorf("read directory table: %w", err)
	}

	entries, err := parseRecords(table, int(entryCount))
	if err != nil {
		return nil, err
	}

	dir := &archive.Directory{
		Entries:    entries,
		Endianness: archive.LittleEndian,
		Kind:       archive.FormatArch,
	}
	if err := dir.Validate(size); err != nil {
		return nil, err
	}
	if err := dir.ValidateStoredTotal(size, headerSize+tableLen); err != nil {
		return nil, err
	}

	return dir, nil
}

// parseRecords decodes fixed-size directory records from the table region.
func parseRecords(table []byte, entryCount int) ([]archive.Entry, error) {
	cur := binio.NewCursor(table)
	entries := make([]archive.Entry, 0, entryCount)

	for i := 0; i < entryCount; i++ {
		nameField, err := cur.ReadBytes(nameLen)
		if err != nil {
			return nil, fmt.Errorf("record %d path: %w", i, err)
		}

		rawName := nameField
		if idx := bytes.IndexByte(nameField, 0); idx >= 0 {
			rawName = nameField[:idx]
		}
		if len(rawName) == 0 {
			return nil, fmt.Errorf("%w: record %d has empty path", archive.ErrInvalidHeader, i)
		}

		offset, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("record %d offset: %w", i, err)
		}

		dataSize, err := cur.ReadU32(binary.LittleEndian)
		if err != nil {
			return nil, fmt.Errorf("record %d size: %w", i, err)
		}

		if err := cur.Skip(8); err != nil {
			return nil, fmt.Errorf("record %d reserved: %w", i, err)
		}

		safePath, rewritten := archive.SafeRelativePath(string(rawName))
		entries = append(entries, archive.Entry{
			Path:             safePath,
			SourcePath:       string(rawName),
			Offset:           uint64(offset),
			StoredSize:       uint64(dataSize),
			UncompressedSize: uint64(dataSize),
			Scheme:           decomp.SchemeNone,
			PathRewritten:    rewritten,
		})
	}

	return entries, nil
}
