// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package snd

import "errors"

var (
	// ErrInvalidHeader is returned when magic version, counts or offsets
	// do not describe a decodable sound bank.
	ErrInvalidHeader = errors.New("snd: invalid header")

	// ErrTruncated is returned when a track chunk or its sample data
	// passes the end of the file.
	ErrTruncated = errors.New("snd: truncated track data")

	// ErrUnsupportedSampleSize is returned for bit depths other than
	// 8 or 16.
	ErrUnsupportedSampleSize = errors.New("snd: unsupported sample size")

	// ErrInconsistentTracks is returned when tracks disagree on sample
	// rate or bit depth. The container carries no per-track rate, so a
	// disagreement means a corrupt bank.
	ErrInconsistentTracks = errors.New("snd: inconsistent track parameters")
)
