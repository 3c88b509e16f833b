// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package snd demuxes multi-track sound banks (.snd) into one PCM WAV
// file per track. Sample bytes are copied verbatim; no resampling or
// depth conversion happens.
package snd

import (
	"encoding/binary"
	"fmt"

	"github.com/nomadwithoutahome/lithtools/binio"
)

// Container layout constants.
const (
	headerSize      = 284 // 6 u32 fields + 65-word reserved table
	chunkHeaderSize = 40
	interChunkPad   = 24 // skipped bytes between a track's samples and the next chunk
	bankVersion     = 2
)

// Track is one demuxed audio stream.
type Track struct {
	// ChannelCount is the channel count declared by the track chunk.
	// Output always demuxes to a single channel.
	ChannelCount uint16 `json:"channel_count"`
	// Data holds the raw PCM sample bytes.
	Data []byte `json:"-"`
}

// TrackSet is a fully decoded sound bank. SampleRate and BitsPerSample
// are shared by every track.
type TrackSet struct {
	// SampleRate in Hz, common to all tracks.
	SampleRate uint32 `json:"sample_rate"`
	// BitsPerSample is 8 or 16, common to all tracks.
	BitsPerSample uint16 `json:"bits_per_sample"`
	// Tracks in container order.
	Tracks []Track `json:"tracks"`
}

// Decode parses a sound bank into its tracks. Every track chunk is
// bounds-checked; a truncated chunk rejects the whole bank since later
// chunk positions depend on earlier sizes.
func Decode(data []byte) (*TrackSet, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d header bytes", ErrInvalidHeader, len(data), headerSize)
	}

	cur := binio.NewCursor(data)
	version, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if version != bankVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidHeader, version)
	}

	trackCount, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read track count: %w", err)
	}
	if trackCount == 0 {
		return nil, fmt.Errorf("%w: zero tracks", ErrInvalidHeader)
	}

	// entry and info offsets are unused by demuxing; the base offset
	// locates the first chunk
	if err := cur.Skip(8); err != nil {
		return nil, fmt.Errorf("skip chunk offsets: %w", err)
	}

	chunkBaseOffset, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("read chunk base offset: %w", err)
	}
	if int64(chunkBaseOffset) < headerSize || int64(chunkBaseOffset) > int64(len(data)) {
		return nil, fmt.Errorf("%w: chunk base offset %d in file of %d bytes",
			ErrInvalidHeader, chunkBaseOffset, len(data))
	}

	if err := cur.SeekTo(int64(chunkBaseOffset)); err != nil {
		return nil, fmt.Errorf("seek chunk base: %w", err)
	}

	set := &TrackSet{Tracks: make([]Track, 0, trackCount)}
	for i := 0; i < int(trackCount); i++ {
		if err := decodeTrack(cur, set, i); err != nil {
			return nil, err
		}
	}

	return set, nil
}

// decodeTrack parses one chunk header and its sample payload, then
// skips the inter-chunk pad.
func decodeTrack(cur *binio.Cursor, set *TrackSet, index int) error {
	if cur.Remaining() < chunkHeaderSize {
		return fmt.Errorf("%w: track %d chunk header", ErrTruncated, index)
	}

	// totalSize, soundType, chunkSize, waveHeaderSize, dataOffset are
	// redundant with the fixed chunk layout
	if err := cur.Skip(20); err != nil {
		return fmt.Errorf("track %d chunk header: %w", index, err)
	}

	dataSize, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("track %d data size: %w", index, err)
	}

	// formatTag unused; PCM is the only observed encoding
	if _, err := cur.ReadU16(binary.LittleEndian); err != nil {
		return fmt.Errorf("track %d format tag: %w", index, err)
	}

	channelCount, err := cur.ReadU16(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("track %d channel count: %w", index, err)
	}

	sampleRate, err := cur.ReadU32(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("track %d sample rate: %w", index, err)
	}

	// byteRate and blockAlign are derived fields
	if err := cur.Skip(6); err != nil {
		return fmt.Errorf("track %d wave header: %w", index, err)
	}

	bitsPerSample, err := cur.ReadU16(binary.LittleEndian)
	if err != nil {
		return fmt.Errorf("track %d bit depth: %w", index, err)
	}
	if bitsPerSample != 8 && bitsPerSample != 16 {
		return fmt.Errorf("%w: track %d declares %d bits", ErrUnsupportedSampleSize, index, bitsPerSample)
	}
	if sampleRate == 0 {
		return fmt.Errorf("%w: track %d declares zero sample rate", ErrInvalidHeader, index)
	}

	if index == 0 {
		set.SampleRate = sampleRate
		set.BitsPerSample = bitsPerSample
	} else if sampleRate != set.SampleRate || bitsPerSample != set.BitsPerSample {
		return fmt.Errorf("%w: track %d is %d Hz %d-bit, bank is %d Hz %d-bit",
			ErrInconsistentTracks, index, sampleRate, bitsPerSample, set.SampleRate, set.BitsPerSample)
	}

	if cur.Remaining() < int(dataSize) {
		return fmt.Errorf("%w: track %d needs %d sample bytes, %d remain",
			ErrTruncated, index, dataSize, cur.Remaining())
	}

	samples, err := cur.ReadBytes(int(dataSize))
	if err != nil {
		return fmt.Errorf("track %d samples: %w", index, err)
	}

	// trailing pad is absent after the final chunk in some banks
	if cur.Remaining() >= interChunkPad {
		if err := cur.Skip(interChunkPad); err != nil {
			return fmt.Errorf("track %d pad: %w", index, err)
		}
	}

	set.Tracks = append(set.Tracks, Track{ChannelCount: channelCount, Data: samples})
	return nil
}
