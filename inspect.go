// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package lithtools

import (
	"fmt"
	"os"

	"github.com/nomadwithoutahome/lithtools/archive"
	"github.com/nomadwithoutahome/lithtools/archive/arch"
	"github.com/nomadwithoutahome/lithtools/archive/bndl"
	"github.com/nomadwithoutahome/lithtools/archive/dspack"
)

// Inspect parses a container file's directory without extracting
// anything. Textures and sound banks have no directory and return
// ErrNotAContainer.
func Inspect(path string) (*archive.Directory, error) {
	kind := Detect(path)
	switch kind {
	case KindArch, KindBundle, KindDSPack:
	case KindTex, KindDDS, KindSnd:
		return nil, fmt.Errorf("%w: %s", ErrNotAContainer, kind)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	switch kind {
	case KindArch:
		return arch.Parse(f, fi.Size())
	case KindBundle:
		return bndl.Parse(f, fi.Size())
	default:
		return dspack.Parse(f, fi.Size())
	}
}
