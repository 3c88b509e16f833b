// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package snd

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nomadwithoutahome/lithtools/binio"
)

// WAV layout constants. Each track is demuxed to a single channel.
const (
	wavHeaderSize = 44
	wavChannels   = 1
	wavFormatPCM  = 1
)

// EncodeWAV serializes one track as a RIFF/WAVE PCM file using the
// bank-wide sample rate and bit depth.
func EncodeWAV(set *TrackSet, index int) ([]byte, error) {
	if set == nil || index < 0 || index >= len(set.Tracks) {
		return nil, fmt.Errorf("%w: track index %d", ErrInvalidHeader, index)
	}
	if set.BitsPerSample != 8 && set.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedSampleSize, set.BitsPerSample)
	}

	data := set.Tracks[index].Data
	blockAlign := uint16(wavChannels) * set.BitsPerSample / 8
	byteRate := set.SampleRate * uint32(blockAlign)

	w := binio.NewWriter(wavHeaderSize + len(data))
	w.WriteBytes([]byte("RIFF"))
	w.WriteU32(binary.LittleEndian, uint32(36+len(data)))
	w.WriteBytes([]byte("WAVE"))

	w.WriteBytes([]byte("fmt "))
	w.WriteU32(binary.LittleEndian, 16)
	w.WriteU16(binary.LittleEndian, wavFormatPCM)
	w.WriteU16(binary.LittleEndian, wavChannels)
	w.WriteU32(binary.LittleEndian, set.SampleRate)
	w.WriteU32(binary.LittleEndian, byteRate)
	w.WriteU16(binary.LittleEndian, blockAlign)
	w.WriteU16(binary.LittleEndian, set.BitsPerSample)

	w.WriteBytes([]byte("data"))
	w.WriteU32(binary.LittleEndian, uint32(len(data)))
	w.WriteBytes(data)

	return w.Bytes(), nil
}

// ConvertFile demuxes one sound bank into per-track WAV files under
// outputRoot. Tracks are written as <stem>/<stem>_<n>.wav with n
// starting at 1. Returns the written paths in track order; every output
// is synced before the function returns.
func ConvertFile(srcPath, outputRoot string) ([]string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	set, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(srcPath), err)
	}

	stem := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	dir := filepath.Join(outputRoot, stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(set.Tracks))
	for i := range set.Tracks {
		out, err := EncodeWAV(set, i)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%d.wav", stem, i+1))
		if err := writeSynced(path, out); err != nil {
			return nil, err
		}

		paths = append(paths, path)
	}

	return paths, nil
}

// writeSynced writes out to path and syncs before close so a following
// source delete is safe.
func writeSynced(path string, out []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if _, err := f.Write(out); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync output: %w", err)
	}

	return f.Close()
}
