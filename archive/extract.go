// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/pathrules"

	"github.com/nomadwithoutahome/lithtools/decomp"
)

// extractCopyBufferSize defines the per-worker buffer for streamed payload copy.
const extractCopyBufferSize = 64 * 1024

// EntryFlag marks a non-fatal per-entry condition recorded during extraction.
type EntryFlag string

// Per-entry extraction flags.
const (
	// FlagNone means the entry extracted cleanly.
	FlagNone EntryFlag = ""
	// FlagUnsupportedScheme means the scheme tag is unknown; the stored bytes
	// were written to disk verbatim.
	FlagUnsupportedScheme EntryFlag = "unsupported_compression"
	// FlagSizeMismatch means decompression produced the wrong byte count;
	// the entry failed and no output was written.
	FlagSizeMismatch EntryFlag = "size_mismatch"
	// FlagDecodeFailed means the compressed stream was malformed;
	// the entry failed and no output was written.
	FlagDecodeFailed EntryFlag = "decode_failed"
	// FlagPathRewritten means the stored path was hostile and was rewritten.
	FlagPathRewritten EntryFlag = "path_rewritten"
	// FlagWriteError means the output file could not be written.
	FlagWriteError EntryFlag = "write_error"
)

// EntryReport records the outcome of one entry during extraction.
type EntryReport struct {
	// Path is the safe relative path of the entry.
	Path string `json:"path"`
	// OutputPath is the absolute path written, empty when the entry failed.
	OutputPath string `json:"output_path,omitempty"`
	// Written is the number of payload bytes written to disk.
	Written int64 `json:"written"`
	// Scheme is the entry's compression scheme tag.
	Scheme decomp.Scheme `json:"scheme,omitempty"`
	// Flag records a non-fatal condition for this entry.
	Flag EntryFlag `json:"flag,omitempty"`
	// Checksum is the XXH64 digest of the written bytes when requested.
	Checksum uint64 `json:"checksum,omitempty"`
	// Err holds the entry-scoped error for failed entries.
	Err error `json:"-"`
}

// Failed reports whether the entry produced no output.
func (r *EntryReport) Failed() bool {
	return r.Flag == FlagSizeMismatch || r.Flag == FlagDecodeFailed || r.Flag == FlagWriteError
}

// ExtractOptions configures shared extraction behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry report is finalized.
	OnEntryDone func(report EntryReport) `json:"-"`
	// Include defines ordered path rules for entry selection; nil means all.
	Include []pathrules.Rule `json:"include,omitempty"`
	// MatcherOptions control include rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero"`
	// MaxWorkers is the number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty"`
	// Checksum enables XXH64 digests of written payload bytes.
	Checksum bool `json:"checksum,omitempty"`
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = runtime.GOMAXPROCS(0)
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}

	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.MatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.MatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// extractWorkItem stores one selected entry with prepared output paths.
type extractWorkItem struct {
	relPath string
	relDir  string
	entry   Entry
	index   int
}

// Extract writes selected directory entries from ra to dstDir and returns
// one report per selected entry in directory order. Entry-scoped failures
// (unknown scheme, size mismatch, write error) are recorded in reports and
// never abort the remaining entries; only setup failures return an error.
func Extract(
	ctx context.Context,
	ra io.ReaderAt,
	dir *Directory,
	disp *decomp.Dispatcher,
	dstDir string,
	opts ExtractOptions,
) ([]EntryReport, error) {
	if ra == nil || dir == nil {
		return nil, ErrNilReader
	}

	opts.applyDefaults()
	if disp == nil {
		disp = decomp.Default()
	}

	matcher, err := compileIncludeMatcher(opts.Include, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	workItems, err := prepareWorkItems(dir.Entries, matcher)
	if err != nil {
		return nil, err
	}
	if len(workItems) == 0 {
		return nil, nil
	}

	if err := prepareExtractDirs(dstRootAbs, workItems); err != nil {
		return nil, err
	}

	reports := make([]EntryReport, len(workItems))
	taskCh := make(chan extractWorkItem, len(workItems))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < opts.MaxWorkers; w++ {
		wg.Go(func() {
			copyBuf := make([]byte, extractCopyBufferSize)
			for task := range taskCh {
				reports[task.index] = extractOneEntry(ctx, ra, disp, dstRootAbs, task, copyBuf, opts.Checksum)
				if opts.OnEntryDone != nil {
					opts.OnEntryDone(reports[task.index])
				}
			}
		})
	}

	var ctxErr error
	for _, task := range workItems {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
		case taskCh <- task:
			continue
		}
		break
	}

	close(taskCh)
	wg.Wait()

	if ctxErr != nil {
		return reports, ctxErr
	}

	return reports, nil
}

// compileIncludeMatcher compiles entry selection rules; nil when no rules given.
func compileIncludeMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*pathrules.Matcher, error) {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := NormalizePath(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}
	if len(normalized) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(normalized, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidIncludeRules, err)
	}

	return matcher, nil
}

// prepareWorkItems selects entries and prepares collision-free output paths.
func prepareWorkItems(entries []Entry, matcher *pathrules.Matcher) ([]extractWorkItem, error) {
	workItems := make([]extractWorkItem, 0, len(entries))
	used := make(map[string]struct{}, len(entries))
	nextSuffix := make(map[string]int, len(entries))

	index := 0
	for _, entry := range entries {
		if strings.TrimSpace(entry.Path) == "" {
			continue
		}
		if matcher != nil && !matcher.Included(entry.Path, false) {
			continue
		}

		uniquePath, err := makePathUnique(entry.Path, used, nextSuffix)
		if err != nil {
			return nil, fmt.Errorf("prepare output path %s: %w", entry.Path, err)
		}

		relPath := filepath.FromSlash(uniquePath)
		relDir := filepath.Dir(relPath)
		if relDir == "." {
			relDir = ""
		}

		workItems = append(workItems, extractWorkItem{
			entry:   entry,
			relPath: relPath,
			relDir:  relDir,
			index:   index,
		})
		index++
	}

	return workItems, nil
}

// prepareExtractDirs creates all unique parent directories needed by work items.
func prepareExtractDirs(dstRootAbs string, workItems []extractWorkItem) error {
	seen := make(map[string]struct{}, len(workItems))
	for _, task := range workItems {
		if task.relDir == "" {
			continue
		}

		dirPath := filepath.Join(dstRootAbs, task.relDir)
		key := strings.ToLower(dirPath)
		if _, exists := seen[key]; exists {
			continue
		}

		seen[key] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}

// extractOneEntry resolves one entry's payload and writes it under the root.
func extractOneEntry(
	ctx context.Context,
	ra io.ReaderAt,
	disp *decomp.Dispatcher,
	dstRootAbs string,
	task extractWorkItem,
	copyBuf []byte,
	checksum bool,
) EntryReport {
	report := EntryReport{
		Path:   task.entry.Path,
		Scheme: task.entry.Scheme,
	}
	if task.entry.PathRewritten {
		report.Flag = FlagPathRewritten
	}

	select {
	case <-ctx.Done():
		report.Flag = FlagWriteError
		report.Err = ctx.Err()
		return report
	default:
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)

	if !task.entry.IsCompressed() {
		written, sum, err := streamStoredPayload(ra, &task.entry, outPath, copyBuf, checksum)
		if err != nil {
			report.Flag = FlagWriteError
			report.Err = fmt.Errorf("write %s: %w", task.entry.Path, err)
			return report
		}

		report.OutputPath = outPath
		report.Written = written
		report.Checksum = sum
		return report
	}

	payload, flag, err := resolveCompressedPayload(ra, disp, &task.entry)
	if err != nil {
		report.Flag = flag
		report.Err = err
		return report
	}
	if flag != FlagNone {
		report.Flag = flag
	}

	written, sum, err := writePayloadFile(outPath, payload, checksum)
	if err != nil {
		report.Flag = FlagWriteError
		report.Err = fmt.Errorf("write %s: %w", task.entry.Path, err)
		return report
	}

	report.OutputPath = outPath
	report.Written = written
	report.Checksum = sum
	return report
}

// resolveCompressedPayload reads stored bytes and runs the dispatcher.
// Unknown schemes return the stored bytes verbatim with the unsupported
// flag so batch runs stay productive against unrecognized schemes.
func resolveCompressedPayload(ra io.ReaderAt, disp *decomp.Dispatcher, entry *Entry) ([]byte, EntryFlag, error) {
	stored, err := readStoredPayload(ra, entry)
	if err != nil {
		return nil, FlagDecodeFailed, err
	}

	expected, err := checkedUint64ToInt(entry.UncompressedSize)
	if err != nil {
		return nil, FlagDecodeFailed, fmt.Errorf("entry %s: %w", entry.Path, err)
	}

	payload, err := disp.Decompress(entry.Scheme, stored, expected)
	switch {
	case err == nil:
		return payload, FlagNone, nil
	case errors.Is(err, decomp.ErrUnsupportedScheme):
		return stored, FlagUnsupportedScheme, nil
	case errors.Is(err, decomp.ErrSizeMismatch):
		return nil, FlagSizeMismatch, fmt.Errorf("entry %s: %w", entry.Path, err)
	default:
		return nil, FlagDecodeFailed, fmt.Errorf("entry %s: %w", entry.Path, err)
	}
}

// readStoredPayload reads the entry's stored byte range into memory.
func readStoredPayload(ra io.ReaderAt, entry *Entry) ([]byte, error) {
	size, err := checkedUint64ToInt(entry.StoredSize)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry.Path, err)
	}

	stored := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(ra, int64(entry.Offset), int64(size)), stored); err != nil {
		return nil, fmt.Errorf("read entry %s: %w", entry.Path, err)
	}

	return stored, nil
}

// streamStoredPayload copies an uncompressed entry to disk without buffering it whole.
func streamStoredPayload(ra io.ReaderAt, entry *Entry, outPath string, copyBuf []byte, checksum bool) (int64, uint64, error) {
	size, err := checkedUint64ToInt(entry.StoredSize)
	if err != nil {
		return 0, 0, err
	}

	file, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, 0, err
	}

	var dst io.Writer = file
	var digest *xxhash.Digest
	if checksum {
		digest = xxhash.New()
		dst = io.MultiWriter(file, digest)
	}

	src := io.NewSectionReader(ra, int64(entry.Offset), int64(size))
	written, copyErr := io.CopyBuffer(dst, src, copyBuf)
	if copyErr == nil {
		copyErr = file.Sync()
	}

	closeErr := file.Close()
	if copyErr != nil {
		return written, 0, copyErr
	}
	if closeErr != nil {
		return written, 0, closeErr
	}

	var sum uint64
	if digest != nil {
		sum = digest.Sum64()
	}

	return written, sum, nil
}

// writePayloadFile writes a resolved payload buffer with flush-before-close.
func writePayloadFile(outPath string, payload []byte, checksum bool) (int64, uint64, error) {
	file, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, 0, err
	}

	n, writeErr := file.Write(payload)
	if writeErr == nil {
		writeErr = file.Sync()
	}

	closeErr := file.Close()
	if writeErr != nil {
		return int64(n), 0, writeErr
	}
	if closeErr != nil {
		return int64(n), 0, closeErr
	}

	var sum uint64
	if checksum {
		sum = xxhash.Sum64(payload)
	}

	return int64(n), sum, nil
}

// checkedUint64ToInt converts uint64 to int with platform-safe overflow check.
func checkedUint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, fmt.Errorf("%w: size %d overflows int", ErrEntryBounds, v)
	}

	return int(v), nil
}
