// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package lithtools

import "errors"

var (
	// ErrUnknownFormat is returned when neither extension nor content
	// probe identifies a supported format.
	ErrUnknownFormat = errors.New("lithtools: unknown format")

	// ErrNotAContainer is returned by Inspect for formats that have no
	// directory to list (textures, sound banks).
	ErrNotAContainer = errors.New("lithtools: not a container format")
)
