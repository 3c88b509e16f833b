// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package lithtools

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nomadwithoutahome/lithtools/tex"
)

// buildArchImage assembles a minimal simple-indexed archive with the
// given entries.
func buildArchImage(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	const headerSize = 16
	const nameLen = 48

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	// map order is random; fix it for stable offsets
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}

	var payloads bytes.Buffer
	offsets := make([]uint32, len(names))
	for i, name := range names {
		offsets[i] = headerSize + uint32(payloads.Len())
		payloads.Write(entries[name])
	}

	var buf bytes.Buffer
	buf.WriteString("ARCH")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(names)))
	_ = binary.Write(&buf, binary.LittleEndian, headerSize+uint32(payloads.Len()))
	buf.Write(payloads.Bytes())

	for i, name := range names {
		var field [nameLen]byte
		copy(field[:], name)
		buf.Write(field[:])
		_ = binary.Write(&buf, binary.LittleEndian, offsets[i])
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(entries[name])))
		buf.Write(make([]byte, 8))
	}

	return buf.Bytes()
}

// buildTexImage assembles a minimal valid packed texture.
func buildTexImage(t *testing.T) []byte {
	t.Helper()

	size, err := tex.LevelSize(tex.FormatDXT1, 8, 8)
	if err != nil {
		t.Fatal(err)
	}

	img := &tex.Image{
		Width: 8, Height: 8, MipCount: 1,
		Format: tex.FormatDXT1,
		Levels: [][]byte{make([]byte, size)},
	}

	data, err := tex.EncodeTEX(img)
	if err != nil {
		t.Fatal(err)
	}

	return data
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestDetect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	testCases := []struct {
		name string
		data []byte
		want Kind
	}{
		{name: "a.arch00", data: nil, want: KindArch},
		{name: "b.arch01", data: nil, want: KindArch},
		{name: "c.BNDL", data: nil, want: KindBundle},
		{name: "d.dspack", data: nil, want: KindDSPack},
		{name: "e.tex", data: nil, want: KindTex},
		{name: "f.dds", data: nil, want: KindDDS},
		{name: "g.snd", data: nil, want: KindSnd},
		{name: "noext-arch", data: []byte("ARCH\x00\x00\x00\x00"), want: KindArch},
		{name: "noext-dds", data: []byte("DDS \x7c\x00\x00\x00"), want: KindDDS},
		{name: "noext-junk", data: []byte("garbage bytes"), want: KindUnknown},
	}

	for _, tc := range testCases {
		path := writeFile(t, filepath.Join(dir, tc.name), tc.data)
		if got := Detect(path); got != tc.want {
			t.Errorf("Detect(%s)=%s, want %s", tc.name, got, tc.want)
		}
	}

	// sound banks have no magic: version word 2 plus full header size
	sndLike := make([]byte, 300)
	binary.LittleEndian.PutUint32(sndLike, 2)
	path := writeFile(t, filepath.Join(dir, "noext-snd"), sndLike)
	if got := Detect(path); got != KindSnd {
		t.Errorf("Detect(noext-snd)=%s, want snd", got)
	}

	if got := Detect(filepath.Join(dir, "missing.bin")); got != KindUnknown {
		t.Errorf("Detect(missing)=%s, want unknown", got)
	}
}

func TestCollectInputs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(root, "b.tex"), nil)
	writeFile(t, filepath.Join(root, "sub", "a.arch00"), nil)
	writeFile(t, filepath.Join(root, "readme.txt"), nil)

	inputs, err := CollectInputs(root)
	if err != nil {
		t.Fatalf("CollectInputs: %v", err)
	}

	want := []string{
		filepath.Join(root, "b.tex"),
		filepath.Join(root, "sub", "a.arch00"),
	}
	if len(inputs) != len(want) {
		t.Fatalf("inputs=%v, want %v", inputs, want)
	}
	for i := range want {
		if inputs[i] != want[i] {
			t.Fatalf("inputs[%d]=%q, want %q", i, inputs[i], want[i])
		}
	}
}

func TestRunBatchMixedInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archPath := writeFile(t, filepath.Join(dir, "world.arch00"), buildArchImage(t, map[string][]byte{
		"maps/one.bin": []byte("map one"),
		"maps/two.bin": []byte("map two"),
	}))
	brokenPath := writeFile(t, filepath.Join(dir, "broken.arch00"), nil)
	texPath := writeFile(t, filepath.Join(dir, "stone.tex"), buildTexImage(t))

	outRoot := t.TempDir()
	var callbacks int
	results := RunBatch(context.Background(), []string{archPath, brokenPath, texPath}, outRoot, Options{
		OnFileDone: func(ConversionResult) { callbacks++ },
	})

	if len(results) != 3 {
		t.Fatalf("len(results)=%d, want 3", len(results))
	}
	if callbacks != 3 {
		t.Fatalf("callbacks=%d, want 3", callbacks)
	}

	if results[0].Outcome.Status != StatusExtracted {
		t.Fatalf("archive outcome=%s err=%v", results[0].Outcome.Status, results[0].Outcome.Err)
	}
	if results[0].Outcome.FileCount != 2 || results[0].Outcome.FlaggedCount != 0 {
		t.Fatalf("archive counts = %d files, %d flagged", results[0].Outcome.FileCount, results[0].Outcome.FlaggedCount)
	}

	if results[1].Outcome.Status != StatusFailed {
		t.Fatalf("broken outcome=%s, want failed", results[1].Outcome.Status)
	}
	if results[1].Outcome.Err == nil {
		t.Fatal("broken outcome carries no error")
	}

	if results[2].Outcome.Status != StatusConverted {
		t.Fatalf("texture outcome=%s err=%v", results[2].Outcome.Status, results[2].Outcome.Err)
	}

	got, err := os.ReadFile(filepath.Join(outRoot, "world", "maps", "one.bin"))
	if err != nil {
		t.Fatalf("read extracted entry: %v", err)
	}
	if string(got) != "map one" {
		t.Fatalf("extracted content=%q", got)
	}

	if _, err := os.Stat(filepath.Join(outRoot, "stone.dds")); err != nil {
		t.Fatalf("stat converted texture: %v", err)
	}
}

func TestRunBatchSkipsUnknown(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	junk := writeFile(t, filepath.Join(dir, "notes.txt"), []byte("hello"))

	results := RunBatch(context.Background(), []string{junk}, t.TempDir(), Options{})
	if results[0].Outcome.Status != StatusSkipped {
		t.Fatalf("outcome=%s, want skipped", results[0].Outcome.Status)
	}
	if results[0].Outcome.Reason == "" {
		t.Fatal("skip carries no reason")
	}
}

func TestRunBatchDeleteSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	goodPath := writeFile(t, filepath.Join(dir, "good.tex"), buildTexImage(t))
	badPath := writeFile(t, filepath.Join(dir, "bad.tex"), []byte("not a texture"))

	results := RunBatch(context.Background(), []string{goodPath, badPath}, t.TempDir(), Options{DeleteSource: true})

	if results[0].Outcome.Status != StatusConverted {
		t.Fatalf("good outcome=%s err=%v", results[0].Outcome.Status, results[0].Outcome.Err)
	}
	if results[0].DeleteErr != nil {
		t.Fatalf("DeleteErr=%v", results[0].DeleteErr)
	}
	if _, err := os.Stat(goodPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("converted source was not deleted")
	}

	if results[1].Outcome.Status != StatusFailed {
		t.Fatalf("bad outcome=%s, want failed", results[1].Outcome.Status)
	}
	if _, err := os.Stat(badPath); err != nil {
		t.Fatal("failed source must be kept")
	}
}

func TestRunBatchHonorsCancellation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inputs := []string{
		writeFile(t, filepath.Join(dir, "one.tex"), buildTexImage(t)),
		writeFile(t, filepath.Join(dir, "two.tex"), buildTexImage(t)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := RunBatch(ctx, inputs, t.TempDir(), Options{})
	for i, res := range results {
		if res.Outcome.Status != StatusSkipped {
			t.Fatalf("result %d status=%s, want skipped", i, res.Outcome.Status)
		}
	}
}

func TestRunBatchParallelKeepsInputOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var inputs []string
	for _, name := range []string{"a.tex", "b.tex", "c.tex", "d.tex"} {
		inputs = append(inputs, writeFile(t, filepath.Join(dir, name), buildTexImage(t)))
	}

	results := RunBatch(context.Background(), inputs, t.TempDir(), Options{MaxWorkers: 3})
	if len(results) != len(inputs) {
		t.Fatalf("len(results)=%d", len(results))
	}
	for i, res := range results {
		if res.SourcePath != inputs[i] {
			t.Fatalf("result %d source=%q, want %q", i, res.SourcePath, inputs[i])
		}
		if res.Outcome.Status != StatusConverted {
			t.Fatalf("result %d status=%s err=%v", i, res.Outcome.Status, res.Outcome.Err)
		}
	}
}

func TestInspect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	archPath := writeFile(t, filepath.Join(dir, "world.arch01"), buildArchImage(t, map[string][]byte{
		"a.dds": []byte("ddsdata"),
		"b.dds": []byte("more"),
		"c.wav": []byte("pcm"),
	}))

	d, err := Inspect(archPath)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if d.EntryCount() != 3 {
		t.Fatalf("EntryCount=%d, want 3", d.EntryCount())
	}

	stats := d.ExtensionStats()
	if stats["dds"] != 2 || stats["wav"] != 1 {
		t.Fatalf("ExtensionStats=%v", stats)
	}

	texPath := writeFile(t, filepath.Join(dir, "x.tex"), buildTexImage(t))
	if _, err := Inspect(texPath); !errors.Is(err, ErrNotAContainer) {
		t.Fatalf("Inspect(tex)=%v, want ErrNotAContainer", err)
	}

	junkPath := writeFile(t, filepath.Join(dir, "junk.bin"), []byte("zzz"))
	if _, err := Inspect(junkPath); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("Inspect(junk)=%v, want ErrUnknownFormat", err)
	}
}
