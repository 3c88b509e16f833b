// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package archive

import (
	"fmt"
	"hash/fnv"
	"path"
	"strconv"
	"strings"
	"unicode"
)

const (
	// maxSafeSegmentLen limits one path segment to common filesystem-safe length.
	maxSafeSegmentLen = 240
	// maxEntryPathLen bounds raw directory path length before rewrite.
	maxEntryPathLen = 4096
)

// reservedDeviceNames contains case-insensitive reserved DOS/Windows device names.
var reservedDeviceNames = map[string]struct{}{
	"aux": {}, "con": {}, "nul": {}, "prn": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// NormalizePath converts an archive-internal path to normalized slash-separated form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizePath(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, `\`, "/")
	raw = strings.TrimPrefix(raw, "./")
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// SafeRelativePath rewrites one stored directory path into a form that is
// guaranteed to stay under the output root. Absolute prefixes, drive
// letters and parent-directory segments are removed, unsafe characters
// replaced, and reserved device names defused. A single hostile path is
// corrected here instead of failing the whole archive. The second return
// reports whether any hostile or unusable component was rewritten.
func SafeRelativePath(raw string) (string, bool) {
	rewritten := false

	trimmed := strings.TrimSpace(raw)
	if trimmed != raw {
		rewritten = true
	}
	if len(trimmed) > maxEntryPathLen {
		trimmed = trimmed[:maxEntryPathLen]
		rewritten = true
	}
	if strings.ContainsRune(trimmed, 0) {
		trimmed = strings.ReplaceAll(trimmed, "\x00", "_")
		rewritten = true
	}

	slashed := strings.ReplaceAll(trimmed, `\`, "/")
	if hasDrivePrefix(slashed) {
		slashed = slashed[3:]
		rewritten = true
	}
	if strings.HasPrefix(slashed, "/") {
		slashed = strings.TrimLeft(slashed, "/")
		rewritten = true
	}

	parts := strings.Split(slashed, "/")
	safe := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			rewritten = true
			continue
		}

		segment, changed := safeSegment(part)
		if changed {
			rewritten = true
		}

		safe = append(safe, segment)
	}

	if len(safe) == 0 {
		return "_", true
	}

	return strings.Join(safe, "/"), rewritten
}

// safeSegment rewrites one path segment for broad filesystem compatibility.
func safeSegment(segment string) (string, bool) {
	var b strings.Builder
	b.Grow(len(segment))

	changed := false
	for _, r := range segment {
		if unicode.IsControl(r) || r == '\uFFFD' || strings.ContainsRune(`<>:"|?*`, r) {
			b.WriteRune('_')
			changed = true
			continue
		}

		b.WriteRune(r)
	}

	out := strings.TrimRight(b.String(), ". ")
	if out != b.String() {
		changed = true
	}
	if out == "" {
		return "_", true
	}

	if isReservedDeviceName(out) {
		out = "_" + out
		changed = true
	}

	if len(out) > maxSafeSegmentLen {
		out = shortenSegmentDeterministic(out, maxSafeSegmentLen)
		changed = true
	}

	return out, changed
}

// hasDrivePrefix reports whether path starts with a drive-root prefix like C:/.
func hasDrivePrefix(p string) bool {
	if len(p) < 3 {
		return false
	}

	c := p[0]
	isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	return isAlpha && p[1] == ':' && p[2] == '/'
}

// isReservedDeviceName reports whether name matches a reserved device identifier.
func isReservedDeviceName(name string) bool {
	candidate := strings.ToLower(name)
	if dot := strings.IndexByte(candidate, '.'); dot >= 0 {
		candidate = candidate[:dot]
	}

	_, ok := reservedDeviceNames[candidate]
	return ok
}

// makePathUnique resolves collisions by adding a deterministic numeric suffix.
func makePathUnique(pathValue string, used map[string]struct{}, nextSuffix map[string]int) (string, error) {
	key := strings.ToLower(pathValue)
	if _, exists := used[key]; !exists {
		used[key] = struct{}{}
		return pathValue, nil
	}

	dir := path.Dir(pathValue)
	name := path.Base(pathValue)
	startIdx := 2
	if savedIdx, exists := nextSuffix[key]; exists && savedIdx > startIdx {
		startIdx = savedIdx
	}

	for idx := startIdx; idx < 1000000; idx++ {
		candidateName := withNumericSuffix(name, idx)
		candidate := candidateName
		if dir != "." {
			candidate = dir + "/" + candidateName
		}

		candidateKey := strings.ToLower(candidate)
		if _, exists := used[candidateKey]; exists {
			continue
		}

		used[candidateKey] = struct{}{}
		nextSuffix[key] = idx + 1
		return candidate, nil
	}

	return "", ErrInvalidExtractPath
}

// withNumericSuffix appends "~N" before the extension and preserves max segment length.
func withNumericSuffix(name string, n int) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	suffix := "~" + strconv.Itoa(n)
	allowedBaseLen := max(maxSafeSegmentLen-len(ext)-len(suffix), 1)
	if len(base) > allowedBaseLen {
		base = shortenSegmentDeterministic(base, allowedBaseLen)
	}

	return base + suffix + ext
}

// shortenSegmentDeterministic shortens a long segment while preserving a
// deterministic identity suffix.
func shortenSegmentDeterministic(value string, maxLen int) string {
	if len(value) <= maxLen {
		return value
	}
	if maxLen <= 10 {
		return value[:maxLen]
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	hashPart := fmt.Sprintf("~%08x", h.Sum32())
	prefixLen := max(maxLen-len(hashPart), 1)

	return value[:prefixLen] + hashPart
}
