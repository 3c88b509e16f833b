// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package tex

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// buildImage returns a valid Image with deterministic level payloads.
func buildImage(t *testing.T, format PixelFormat, width, height, mips uint32) *Image {
	t.Helper()

	img := &Image{Width: width, Height: height, MipCount: mips, Format: format}
	for i := 0; i < int(mips); i++ {
		w, h := levelDims(width, height, i)
		size, err := LevelSize(format, w, h)
		if err != nil {
			t.Fatalf("LevelSize: %v", err)
		}

		level := make([]byte, size)
		for j := range level {
			level[j] = byte(i*31 + j)
		}

		img.Levels = append(img.Levels, level)
	}

	return img
}

func TestLevelSize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		format PixelFormat
		w, h   uint32
		want   int
	}{
		{format: FormatDXT1, w: 64, h: 64, want: 2048},
		{format: FormatDXT5, w: 64, h: 64, want: 4096},
		{format: FormatDXT1, w: 1, h: 1, want: 8},   // clamps to one block
		{format: FormatDXT5, w: 2, h: 2, want: 16},  // partial block rounds up
		{format: FormatBC5, w: 16, h: 8, want: 128},
		{format: FormatRGBA8, w: 16, h: 16, want: 1024},
		{format: FormatRGBA8, w: 1, h: 1, want: 4},
	}

	for _, tc := range testCases {
		got, err := LevelSize(tc.format, tc.w, tc.h)
		if err != nil {
			t.Fatalf("LevelSize(%s, %dx%d): %v", tc.format, tc.w, tc.h, err)
		}
		if got != tc.want {
			t.Errorf("LevelSize(%s, %dx%d)=%d, want %d", tc.format, tc.w, tc.h, got, tc.want)
		}
	}

	if _, err := LevelSize(PixelFormat(99), 4, 4); !errors.Is(err, ErrUnsupportedPixelFormat) {
		t.Fatalf("unknown format = %v, want ErrUnsupportedPixelFormat", err)
	}
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	t.Parallel()

	for _, format := range []PixelFormat{FormatDXT1, FormatDXT3, FormatDXT5, FormatBC5, FormatRGBA8} {
		t.Run(format.String(), func(t *testing.T) {
			t.Parallel()

			img := buildImage(t, format, 32, 16, 4)
			texBytes, err := EncodeTEX(img)
			if err != nil {
				t.Fatalf("EncodeTEX: %v", err)
			}

			decoded, err := DecodeTEX(texBytes)
			if err != nil {
				t.Fatalf("DecodeTEX: %v", err)
			}

			ddsBytes, err := EncodeDDS(decoded)
			if err != nil {
				t.Fatalf("EncodeDDS: %v", err)
			}

			back, err := DecodeDDS(ddsBytes)
			if err != nil {
				t.Fatalf("DecodeDDS: %v", err)
			}

			again, err := EncodeTEX(back)
			if err != nil {
				t.Fatalf("EncodeTEX round trip: %v", err)
			}
			if !bytes.Equal(texBytes, again) {
				t.Fatal("tex -> dds -> tex round trip is not byte-identical")
			}
		})
	}
}

func TestDecodeTEXRejectsBadInput(t *testing.T) {
	t.Parallel()

	valid, err := EncodeTEX(buildImage(t, FormatDXT1, 16, 16, 2))
	if err != nil {
		t.Fatalf("EncodeTEX: %v", err)
	}

	t.Run("bad magic", func(t *testing.T) {
		t.Parallel()

		data := append([]byte{}, valid...)
		copy(data, "WHAT")
		if _, err := DecodeTEX(data); !errors.Is(err, ErrInvalidHeader) {
			t.Fatalf("err=%v, want ErrInvalidHeader", err)
		}
	})

	t.Run("unknown format id", func(t *testing.T) {
		t.Parallel()

		data := append([]byte{}, valid...)
		data[8] = 0xEE // format field
		if _, err := DecodeTEX(data); !errors.Is(err, ErrUnsupportedPixelFormat) {
			t.Fatalf("err=%v, want ErrUnsupportedPixelFormat", err)
		}
	})

	t.Run("truncated level", func(t *testing.T) {
		t.Parallel()

		if _, err := DecodeTEX(valid[:len(valid)-4]); !errors.Is(err, ErrMipDataSize) {
			t.Fatalf("err=%v, want ErrMipDataSize", err)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		t.Parallel()

		data := append(append([]byte{}, valid...), 0x00)
		if _, err := DecodeTEX(data); !errors.Is(err, ErrMipDataSize) {
			t.Fatalf("err=%v, want ErrMipDataSize", err)
		}
	})

	t.Run("short header", func(t *testing.T) {
		t.Parallel()

		if _, err := DecodeTEX(valid[:10]); !errors.Is(err, ErrInvalidHeader) {
			t.Fatalf("err=%v, want ErrInvalidHeader", err)
		}
	})

	t.Run("mip chain past 1x1", func(t *testing.T) {
		t.Parallel()

		// 16x16 reaches 1x1 at level 5
		data := append([]byte{}, valid...)
		data[20] = 6 // mip count field
		if _, err := DecodeTEX(data); !errors.Is(err, ErrInvalidHeader) {
			t.Fatalf("err=%v, want ErrInvalidHeader", err)
		}
	})
}

func TestMaxMipLevels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		w, h, want uint32
	}{
		{w: 1, h: 1, want: 1},
		{w: 16, h: 16, want: 5},
		{w: 3, h: 2, want: 2},
		{w: 16, h: 64, want: 7},
		{w: 65536, h: 1, want: 17},
	}

	for _, tc := range testCases {
		if got := maxMipLevels(tc.w, tc.h); got != tc.want {
			t.Errorf("maxMipLevels(%d, %d)=%d, want %d", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestDecodeTEXAcceptsFullMipChain(t *testing.T) {
	t.Parallel()

	texBytes, err := EncodeTEX(buildImage(t, FormatRGBA8, 16, 16, 5))
	if err != nil {
		t.Fatalf("EncodeTEX: %v", err)
	}

	img, err := DecodeTEX(texBytes)
	if err != nil {
		t.Fatalf("DecodeTEX: %v", err)
	}
	if img.MipCount != 5 || len(img.Levels[4]) != 4 {
		t.Fatalf("MipCount=%d, last level %d bytes", img.MipCount, len(img.Levels[4]))
	}
}

func TestDecodeDDSRejectsUnknownFourCC(t *testing.T) {
	t.Parallel()

	ddsBytes, err := EncodeDDS(buildImage(t, FormatDXT5, 8, 8, 1))
	if err != nil {
		t.Fatalf("EncodeDDS: %v", err)
	}

	// fourCC lives at offset 84 inside the pixel-format block
	copy(ddsBytes[84:], "DX10")
	if _, err := DecodeDDS(ddsBytes); !errors.Is(err, ErrUnsupportedPixelFormat) {
		t.Fatalf("err=%v, want ErrUnsupportedPixelFormat", err)
	}
}

func TestEncodeRejectsWrongLevelSize(t *testing.T) {
	t.Parallel()

	img := buildImage(t, FormatDXT1, 16, 16, 1)
	img.Levels[0] = img.Levels[0][:len(img.Levels[0])-1]

	if _, err := EncodeTEX(img); !errors.Is(err, ErrMipDataSize) {
		t.Fatalf("EncodeTEX = %v, want ErrMipDataSize", err)
	}
	if _, err := EncodeDDS(img); !errors.Is(err, ErrMipDataSize) {
		t.Fatalf("EncodeDDS = %v, want ErrMipDataSize", err)
	}
}

func TestConvertFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	img := buildImage(t, FormatDXT5, 16, 16, 3)
	texBytes, err := EncodeTEX(img)
	if err != nil {
		t.Fatalf("EncodeTEX: %v", err)
	}

	srcPath := filepath.Join(dir, "stone.tex")
	if err := os.WriteFile(srcPath, texBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	ddsPath := filepath.Join(dir, "out", "stone.dds")
	if err := ConvertFile(srcPath, ddsPath); err != nil {
		t.Fatalf("ConvertFile tex->dds: %v", err)
	}

	backPath := filepath.Join(dir, "back", "stone.tex")
	if err := ConvertFile(ddsPath, backPath); err != nil {
		t.Fatalf("ConvertFile dds->tex: %v", err)
	}

	back, err := os.ReadFile(backPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, texBytes) {
		t.Fatal("file round trip is not byte-identical")
	}

	if err := ConvertFile(srcPath, filepath.Join(dir, "bad.png")); !errors.Is(err, ErrUnsupportedConversion) {
		t.Fatalf("unknown direction = %v, want ErrUnsupportedConversion", err)
	}
}
