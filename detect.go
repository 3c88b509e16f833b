// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package lithtools

import (
	"encoding/binary"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind identifies one supported input format.
type Kind uint8

// Supported input kinds.
const (
	// KindUnknown means no extension or magic matched.
	KindUnknown Kind = iota
	// KindArch is the simple-indexed archive (.arch00/.arch01).
	KindArch
	// KindBundle is the segmented-indexed bundle (.bndl).
	KindBundle
	// KindDSPack is the compressed dual-endian pack (.dspack).
	KindDSPack
	// KindTex is the packed texture (.tex).
	KindTex
	// KindDDS is a DDS texture (.dds).
	KindDDS
	// KindSnd is the multi-track sound bank (.snd).
	KindSnd
)

// String returns a short stable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindArch:
		return "arch"
	case KindBundle:
		return "bndl"
	case KindDSPack:
		return "dspack"
	case KindTex:
		return "tex"
	case KindDDS:
		return "dds"
	case KindSnd:
		return "snd"
	default:
		return "unknown"
	}
}

// extensionKinds maps lowercase file extensions to their kind.
var extensionKinds = map[string]Kind{
	".arch00": KindArch,
	".arch01": KindArch,
	".bndl":   KindBundle,
	".dspack": KindDSPack,
	".tex":    KindTex,
	".dds":    KindDDS,
	".snd":    KindSnd,
}

// sndProbeMinSize is the minimum file size for the content probe to
// accept the extensionless sound-bank heuristic.
const sndProbeMinSize = 284

// KindForExtension maps a path's extension to a kind without touching
// the file.
func KindForExtension(path string) Kind {
	return extensionKinds[strings.ToLower(filepath.Ext(path))]
}

// Detect identifies a file's format by extension, falling back to a
// content probe of the leading bytes when the extension is unknown.
// Unreadable or unrecognizable files report KindUnknown; Detect never
// fails hard.
func Detect(path string) Kind {
	if kind := KindForExtension(path); kind != KindUnknown {
		return kind
	}

	f, err := os.Open(path)
	if err != nil {
		return KindUnknown
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return KindUnknown
	}

	var head [4]byte
	if _, err := io.ReadFull(f, head[:]); err != nil {
		return KindUnknown
	}

	return probeKind(head, fi.Size())
}

// probeKind matches the leading four bytes against known magics. Sound
// banks carry no magic; a version word of 2 in a file large enough for
// the bank header is accepted.
func probeKind(head [4]byte, size int64) Kind {
	switch string(head[:]) {
	case "ARCH":
		return KindArch
	case "BNDL":
		return KindBundle
	case "DSPK":
		return KindDSPack
	case "TEXR":
		return KindTex
	case "DDS ":
		return KindDDS
	}

	if binary.LittleEndian.Uint32(head[:]) == 2 && size >= sndProbeMinSize {
		return KindSnd
	}

	return KindUnknown
}

// CollectInputs walks root and returns every file whose extension maps
// to a known kind, in deterministic sorted order.
func CollectInputs(root string) ([]string, error) {
	var inputs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if KindForExtension(path) != KindUnknown {
			inputs = append(inputs, path)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(inputs)
	return inputs, nil
}
