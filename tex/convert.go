// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package tex

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConvertFile converts one texture file, inferring the direction from
// the source and destination extensions (.tex -> .dds or .dds -> .tex).
// The output is fully written and synced before the function returns.
func ConvertFile(srcPath, dstPath string) error {
	srcExt := strings.ToLower(filepath.Ext(srcPath))
	dstExt := strings.ToLower(filepath.Ext(dstPath))

	var convert func([]byte) ([]byte, error)
	switch {
	case srcExt == ".tex" && dstExt == ".dds":
		convert = texToDDS
	case srcExt == ".dds" && dstExt == ".tex":
		convert = ddsToTEX
	default:
		return fmt.Errorf("%w: %s -> %s", ErrUnsupportedConversion, srcExt, dstExt)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	out, err := convert(data)
	if err != nil {
		return fmt.Errorf("convert %s: %w", filepath.Base(srcPath), err)
	}

	return writeSynced(dstPath, out)
}

// texToDDS rewraps a packed texture as DDS.
func texToDDS(data []byte) ([]byte, error) {
	img, err := DecodeTEX(data)
	if err != nil {
		return nil, err
	}

	return EncodeDDS(img)
}

// ddsToTEX rewraps a DDS file as packed texture.
func ddsToTEX(data []byte) ([]byte, error) {
	img, err := DecodeDDS(data)
	if err != nil {
		return nil, err
	}

	return EncodeTEX(img)
}

// writeSynced writes out to path, creating parent directories, and
// syncs before close so a following source delete is safe.
func writeSynced(path string, out []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

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
