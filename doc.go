// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

// Package lithtools extracts and converts game asset containers.
//
// Three archive formats are parsed and extracted (simple-indexed
// .arch00/.arch01, segmented-indexed .bndl, compressed dual-endian
// .dspack), packed textures convert to and from DDS, and multi-track
// sound banks demux to one WAV per track. The root package detects
// formats, inspects container directories without extracting, and
// drives batch runs over mixed inputs where one bad file never stops
// the rest.
//
// Format parsing lives in archive/arch, archive/bndl and
// archive/dspack over the shared model in archive; compression schemes
// are pluggable through decomp; codecs live in tex and snd.
package lithtools
