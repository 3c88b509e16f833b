// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package arch

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/pathrules"

	"github.com/nomadwithoutahome/lithtools/archive"
)

// fixtureEntry describes one entry for buildArchive.
type fixtureEntry struct {
	name string
	data []byte
}

// buildArchive assembles a valid archive image: header, payloads, then
// the directory table at the end.
func buildArchive(t *testing.T, version uint32, entries []fixtureEntry) []byte {
	t.Helper()

	payloadBase := uint32(headerSize)
	offsets := make([]uint32, len(entries))
	var payloads bytes.Buffer
	for i, e := range entries {
		offsets[i] = payloadBase + uint32(payloads.Len())
		payloads.Write(e.data)
	}

	dirOffset := payloadBase + uint32(payloads.Len())

	var buf bytes.Buffer
	buf.Write(Magic)
	_ = binary.Write(&buf, binary.LittleEndian, version)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))
	_ = binary.Write(&buf, binary.LittleEndian, dirOffset)
	buf.Write(payloads.Bytes())

	for i, e := range entries {
		var name [nameLen]byte
		copy(name[:], e.name)
		buf.Write(name[:])
		_ = binary.Write(&buf, binary.LittleEndian, offsets[i])
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(e.data)))
		buf.Write(make([]byte, 8))
	}

	return buf.Bytes()
}

func writeFixture(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.arch01")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestOpenAndDirectory(t *testing.T) {
	t.Parallel()

	image := buildArchive(t, 1, []fixtureEntry{
		{name: "scripts/init.lua", data: []byte("print('hi')")},
		{name: `textures\wall.dds`, data: []byte{1, 2, 3, 4}},
	})

	r, err := Open(writeFixture(t, image))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	dir := r.Directory()
	if dir.Kind != archive.FormatArch {
		t.Fatalf("Kind=%s", dir.Kind)
	}
	if dir.EntryCount() != 2 {
		t.Fatalf("EntryCount=%d, want 2", dir.EntryCount())
	}
	if dir.Entries[0].Path != "scripts/init.lua" {
		t.Fatalf("entry 0 path=%q", dir.Entries[0].Path)
	}
	if dir.Entries[1].Path != "textures/wall.dds" {
		t.Fatalf("entry 1 path=%q (backslashes not normalized)", dir.Entries[1].Path)
	}
	if dir.Entries[0].IsCompressed() {
		t.Fatal("arch entries must be uncompressed")
	}
}

func TestOpenRejectsBadImages(t *testing.T) {
	t.Parallel()

	valid := buildArchive(t, 0, []fixtureEntry{{name: "a.bin", data: []byte("abcd")}})

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()

		image := append([]byte{}, valid...)
		copy(image, "JUNK")
		if _, err := NewReaderFromReaderAt(bytes.NewReader(image), int64(len(image))); !errors.Is(err, archive.ErrInvalidHeader) {
			t.Fatalf("err=%v, want ErrInvalidHeader", err)
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		t.Parallel()

		image := append([]byte{}, valid...)
		binary.LittleEndian.PutUint32(image[4:], 9)
		if _, err := NewReaderFromReaderAt(bytes.NewReader(image), int64(len(image))); !errors.Is(err, archive.ErrInvalidHeader) {
			t.Fatalf("err=%v, want ErrInvalidHeader", err)
		}
	})

	t.Run("directory past end", func(t *testing.T) {
		t.Parallel()

		image := append([]byte{}, valid...)
		binary.LittleEndian.PutUint32(image[12:], uint32(len(image)))
		if _, err := NewReaderFromReaderAt(bytes.NewReader(image), int64(len(image))); !errors.Is(err, archive.ErrInvalidHeader) {
			t.Fatalf("err=%v, want ErrInvalidHeader", err)
		}
	})

	t.Run("entry past end", func(t *testing.T) {
		t.Parallel()

		image := buildArchive(t, 0, []fixtureEntry{{name: "a.bin", data: []byte("abcd")}})
		// directory record offset field sits after the 48-byte name
		dirOffset := binary.LittleEndian.Uint32(image[12:])
		binary.LittleEndian.PutUint32(image[dirOffset+nameLen+4:], uint32(len(image)))
		if _, err := NewReaderFromReaderAt(bytes.NewReader(image), int64(len(image))); !errors.Is(err, archive.ErrEntryBounds) {
			t.Fatalf("err=%v, want ErrEntryBounds", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()

		if _, err := NewReaderFromReaderAt(bytes.NewReader(valid[:8]), 8); !errors.Is(err, archive.ErrInvalidHeader) {
			t.Fatalf("err=%v, want ErrInvalidHeader", err)
		}
	})
}

func TestOpenRejectsOverlappingEntries(t *testing.T) {
	t.Parallel()

	// three records claim the same 64-byte payload region; each range is
	// individually in bounds but the stored bytes cannot all fit the file
	payload := bytes.Repeat([]byte{0xCD}, 64)

	var buf bytes.Buffer
	buf.Write(Magic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(headerSize+len(payload)))
	buf.Write(payload)

	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		var field [nameLen]byte
		copy(field[:], name)
		buf.Write(field[:])
		_ = binary.Write(&buf, binary.LittleEndian, uint32(headerSize))
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
		buf.Write(make([]byte, 8))
	}

	image := buf.Bytes()
	if _, err := NewReaderFromReaderAt(bytes.NewReader(image), int64(len(image))); !errors.Is(err, archive.ErrEntryBounds) {
		t.Fatalf("err=%v, want ErrEntryBounds for overlapping payloads", err)
	}
}

func TestExtractWritesAllEntries(t *testing.T) {
	t.Parallel()

	image := buildArchive(t, 1, []fixtureEntry{
		{name: "a/one.txt", data: []byte("first payload")},
		{name: "a/two.txt", data: []byte("second")},
		{name: "b/three.bin", data: bytes.Repeat([]byte{0xAB}, 300)},
	})

	r, err := Open(writeFixture(t, image))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	dst := t.TempDir()
	reports, err := r.Extract(context.Background(), dst, archive.ExtractOptions{Checksum: true})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("len(reports)=%d, want 3", len(reports))
	}

	for i, want := range [][]byte{[]byte("first payload"), []byte("second"), bytes.Repeat([]byte{0xAB}, 300)} {
		rep := reports[i]
		if rep.Failed() {
			t.Fatalf("report %d failed: %v", i, rep.Err)
		}
		if rep.Written != int64(len(want)) {
			t.Fatalf("report %d written=%d, want %d", i, rep.Written, len(want))
		}
		if rep.Checksum != xxhash.Sum64(want) {
			t.Fatalf("report %d checksum mismatch", i)
		}

		got, err := os.ReadFile(rep.OutputPath)
		if err != nil {
			t.Fatalf("read output %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("output %d content mismatch", i)
		}
	}
}

func TestExtractIncludeRules(t *testing.T) {
	t.Parallel()

	image := buildArchive(t, 1, []fixtureEntry{
		{name: "keep/one.txt", data: []byte("keep me")},
		{name: "drop/two.txt", data: []byte("drop me")},
	})

	r, err := Open(writeFixture(t, image))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	dst := t.TempDir()
	reports, err := r.Extract(context.Background(), dst, archive.ExtractOptions{
		Include: []pathrules.Rule{
			{Action: pathrules.ActionInclude, Pattern: "keep/**"},
		},
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("len(reports)=%d, want 1", len(reports))
	}
	if reports[0].Path != "keep/one.txt" {
		t.Fatalf("kept %q", reports[0].Path)
	}

	if _, err := os.Stat(filepath.Join(dst, "drop", "two.txt")); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("excluded entry was written")
	}
}

func TestExtractRewritesHostilePaths(t *testing.T) {
	t.Parallel()

	image := buildArchive(t, 1, []fixtureEntry{
		{name: "../../evil.txt", data: []byte("contained")},
	})

	r, err := Open(writeFixture(t, image))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	if !r.Directory().Entries[0].PathRewritten {
		t.Fatal("hostile path not marked rewritten")
	}

	dst := t.TempDir()
	reports, err := r.Extract(context.Background(), dst, archive.ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("len(reports)=%d, want 1", len(reports))
	}
	if reports[0].Flag != archive.FlagPathRewritten {
		t.Fatalf("flag=%q, want path_rewritten", reports[0].Flag)
	}

	want := filepath.Join(dst, "evil.txt")
	if reports[0].OutputPath != want {
		t.Fatalf("output=%q, want %q (inside the root)", reports[0].OutputPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("stat rewritten output: %v", err)
	}
}

func TestExtractDeduplicatesRewrittenCollisions(t *testing.T) {
	t.Parallel()

	// the hostile path rewrites to "evil.txt" and collides with the
	// legitimate entry; parsing must keep all three entries and extraction
	// resolves the collision with a numeric suffix
	image := buildArchive(t, 1, []fixtureEntry{
		{name: "evil.txt", data: []byte("legit")},
		{name: "../evil.txt", data: []byte("hostile")},
		{name: "other.txt", data: []byte("untouched")},
	})

	r, err := Open(writeFixture(t, image))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Directory().EntryCount() != 3 {
		t.Fatalf("EntryCount=%d, want 3", r.Directory().EntryCount())
	}

	dst := t.TempDir()
	reports, err := r.Extract(context.Background(), dst, archive.ExtractOptions{})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("len(reports)=%d, want 3", len(reports))
	}
	for i := range reports {
		if reports[i].Failed() {
			t.Fatalf("report %d failed: %v", i, reports[i].Err)
		}
	}

	if reports[1].Flag != archive.FlagPathRewritten {
		t.Fatalf("flag=%q, want path_rewritten", reports[1].Flag)
	}
	if want := filepath.Join(dst, "evil~2.txt"); reports[1].OutputPath != want {
		t.Fatalf("output=%q, want %q", reports[1].OutputPath, want)
	}

	for _, check := range []struct {
		file string
		body string
	}{
		{"evil.txt", "legit"},
		{"evil~2.txt", "hostile"},
		{"other.txt", "untouched"},
	} {
		got, err := os.ReadFile(filepath.Join(dst, check.file))
		if err != nil {
			t.Fatalf("read %s: %v", check.file, err)
		}
		if string(got) != check.body {
			t.Fatalf("%s=%q, want %q", check.file, got, check.body)
		}
	}
}

func TestExtractCancellation(t *testing.T) {
	t.Parallel()

	image := buildArchive(t, 1, []fixtureEntry{
		{name: "one.bin", data: []byte("x")},
		{name: "two.bin", data: []byte("y")},
	})

	r, err := Open(writeFixture(t, image))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := r.Extract(ctx, t.TempDir(), archive.ExtractOptions{MaxWorkers: 1}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Extract canceled = %v, want context.Canceled", err)
	}
}
