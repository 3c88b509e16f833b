// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Nomadwithoutahome
// Source: github.com/nomadwithoutahome/lithtools

package lithtools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/woozymasta/pathrules"

	"github.com/nomadwithoutahome/lithtools/archive"
	"github.com/nomadwithoutahome/lithtools/archive/arch"
	"github.com/nomadwithoutahome/lithtools/archive/bndl"
	"github.com/nomadwithoutahome/lithtools/archive/dspack"
	"github.com/nomadwithoutahome/lithtools/snd"
	"github.com/nomadwithoutahome/lithtools/tex"
)

// Status classifies one batch input's outcome.
type Status uint8

// Outcome statuses.
const (
	// StatusFailed means the file could not be processed at all.
	StatusFailed Status = iota
	// StatusExtracted means a container was extracted.
	StatusExtracted
	// StatusConverted means a texture or sound bank was converted.
	StatusConverted
	// StatusSkipped means the file was not processed.
	StatusSkipped
)

// String returns a short stable name for the status.
func (s Status) String() string {
	switch s {
	case StatusExtracted:
		return "extracted"
	case StatusConverted:
		return "converted"
	case StatusSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Outcome is the result of processing one input file. The Status tag
// selects which fields carry data.
type Outcome struct {
	// Status classifies the outcome.
	Status Status `json:"status"`
	// Kind is the detected input format.
	Kind Kind `json:"kind"`
	// Reports holds per-entry extraction reports (StatusExtracted).
	Reports []archive.EntryReport `json:"reports,omitempty"`
	// FileCount is the number of output files written (StatusExtracted).
	FileCount int `json:"file_count,omitempty"`
	// FlaggedCount is the number of entries with a non-empty flag
	// (StatusExtracted).
	FlaggedCount int `json:"flagged_count,omitempty"`
	// Outputs lists written output paths (StatusConverted).
	Outputs []string `json:"outputs,omitempty"`
	// Reason explains a skip (StatusSkipped).
	Reason string `json:"reason,omitempty"`
	// Err is the file-scoped failure (StatusFailed).
	Err error `json:"-"`
}

// ConversionResult pairs one batch input with its outcome.
type ConversionResult struct {
	// SourcePath is the input file as given to RunBatch.
	SourcePath string `json:"source_path"`
	// Outcome is the processing result for the input.
	Outcome Outcome `json:"outcome"`
	// DeleteErr records a failed source delete when DeleteSource is set.
	DeleteErr error `json:"-"`
}

// Options configures a batch run.
type Options struct {
	// OnFileDone is called after each input's result is finalized.
	OnFileDone func(result ConversionResult) `json:"-"`
	// Include defines ordered path rules for container entry selection.
	Include []pathrules.Rule `json:"include,omitempty"`
	// MatcherOptions control include rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero"`
	// MaxWorkers is the number of files processed concurrently
	// (zero or one means sequential).
	MaxWorkers int `json:"max_workers,omitempty"`
	// Checksum enables XXH64 digests in extraction reports.
	Checksum bool `json:"checksum,omitempty"`
	// DeleteSource removes each input after its outputs are fully
	// written and synced. Inputs with any failed entry are kept.
	DeleteSource bool `json:"delete_source,omitempty"`
}

// applyDefaults fills zero-valued batch options with defaults.
func (opts *Options) applyDefaults() {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
}

// RunBatch processes inputs into outputRoot and returns one result per
// input, in input order. No error escapes the batch: file-scoped
// failures become StatusFailed results and entry-scoped issues stay
// inside extraction reports. Cancellation is honored between files;
// files not yet started report StatusSkipped.
func RunBatch(ctx context.Context, inputs []string, outputRoot string, opts Options) []ConversionResult {
	opts.applyDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]ConversionResult, len(inputs))
	if opts.MaxWorkers == 1 || len(inputs) <= 1 {
		for i, input := range inputs {
			results[i] = processInput(ctx, input, outputRoot, &opts)
			if opts.OnFileDone != nil {
				opts.OnFileDone(results[i])
			}
		}

		return results
	}

	type job struct {
		path  string
		index int
	}

	jobCh := make(chan job, len(inputs))
	for i, input := range inputs {
		jobCh <- job{path: input, index: i}
	}
	close(jobCh)

	var wg sync.WaitGroup
	for w := 0; w < opts.MaxWorkers; w++ {
		wg.Go(func() {
			for j := range jobCh {
				results[j.index] = processInput(ctx, j.path, outputRoot, &opts)
				if opts.OnFileDone != nil {
					opts.OnFileDone(results[j.index])
				}
			}
		})
	}
	wg.Wait()

	return results
}

// processInput runs one input through detection, dispatch and the
// optional source delete.
func processInput(ctx context.Context, input, outputRoot string, opts *Options) ConversionResult {
	result := ConversionResult{SourcePath: input}

	select {
	case <-ctx.Done():
		result.Outcome = Outcome{Status: StatusSkipped, Reason: "canceled"}
		return result
	default:
	}

	kind := Detect(input)
	handler, ok := handlers[kind]
	if !ok {
		result.Outcome = Outcome{Status: StatusSkipped, Kind: kind, Reason: "unknown format"}
		return result
	}

	result.Outcome = handler(ctx, input, outputRoot, opts)
	result.Outcome.Kind = kind

	if opts.DeleteSource && deletable(&result.Outcome) {
		result.DeleteErr = os.Remove(input)
	}

	return result
}

// deletable reports whether every output of the outcome was written, so
// removing the source loses nothing.
func deletable(outcome *Outcome) bool {
	switch outcome.Status {
	case StatusConverted:
		return true
	case StatusExtracted:
		for i := range outcome.Reports {
			if outcome.Reports[i].Failed() {
				return false
			}
		}

		return true
	default:
		return false
	}
}

// handler processes one detected input into outputRoot.
type handler func(ctx context.Context, input, outputRoot string, opts *Options) Outcome

// handlers routes each kind through one capability path.
var handlers = map[Kind]handler{
	KindArch:   extractArch,
	KindBundle: extractBundle,
	KindDSPack: extractDSPack,
	KindTex:    convertTexture,
	KindDDS:    convertTexture,
	KindSnd:    convertSoundBank,
}

// containerOpener abstracts the per-format reader constructors behind
// the shared extraction surface.
type containerOpener interface {
	Extract(ctx context.Context, dstDir string, opts archive.ExtractOptions) ([]archive.EntryReport, error)
	Close() error
}

func extractArch(ctx context.Context, input, outputRoot string, opts *Options) Outcome {
	r, err := arch.Open(input)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	return extractContainer(ctx, r, input, outputRoot, opts)
}

func extractBundle(ctx context.Context, input, outputRoot string, opts *Options) Outcome {
	r, err := bndl.Open(input)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	return extractContainer(ctx, r, input, outputRoot, opts)
}

func extractDSPack(ctx context.Context, input, outputRoot string, opts *Options) Outcome {
	r, err := dspack.Open(input)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	return extractContainer(ctx, r, input, outputRoot, opts)
}

// extractContainer runs the shared extraction into a per-archive
// subdirectory named after the input stem.
func extractContainer(ctx context.Context, r containerOpener, input, outputRoot string, opts *Options) Outcome {
	defer r.Close()

	dstDir := filepath.Join(outputRoot, inputStem(input))
	reports, err := r.Extract(ctx, dstDir, archive.ExtractOptions{
		Include:        opts.Include,
		MatcherOptions: opts.MatcherOptions,
		Checksum:       opts.Checksum,
	})
	if err != nil {
		return Outcome{Status: StatusFailed, Reports: reports, Err: err}
	}

	outcome := Outcome{Status: StatusExtracted, Reports: reports}
	for i := range reports {
		if reports[i].Flag != archive.FlagNone {
			outcome.FlaggedCount++
		}
		if !reports[i].Failed() {
			outcome.FileCount++
		}
	}

	return outcome
}

// convertTexture rewraps one texture next to its relative location
// under the output root, with the opposite extension.
func convertTexture(_ context.Context, input, outputRoot string, _ *Options) Outcome {
	dstExt := ".dds"
	if strings.EqualFold(filepath.Ext(input), ".dds") {
		dstExt = ".tex"
	}

	dstPath := filepath.Join(outputRoot, inputStem(input)+dstExt)
	if err := tex.ConvertFile(input, dstPath); err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	return Outcome{Status: StatusConverted, Outputs: []string{dstPath}}
}

// convertSoundBank demuxes one bank into per-track WAV files.
func convertSoundBank(_ context.Context, input, outputRoot string, _ *Options) Outcome {
	outputs, err := snd.ConvertFile(input, outputRoot)
	if err != nil {
		return Outcome{Status: StatusFailed, Err: err}
	}

	return Outcome{Status: StatusConverted, Outputs: outputs}
}

// inputStem returns the input's base name without its extension.
func inputStem(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Describe returns a one-line human summary of a result, usable from
// OnFileDone progress callbacks.
func Describe(result *ConversionResult) string {
	o := &result.Outcome
	switch o.Status {
	case StatusExtracted:
		return fmt.Sprintf("%s: extracted %d files (%d flagged)", result.SourcePath, o.FileCount, o.FlaggedCount)
	case StatusConverted:
		return fmt.Sprintf("%s: converted to %s", result.SourcePath, strings.Join(o.Outputs, ", "))
	case StatusSkipped:
		return fmt.Sprintf("%s: skipped (%s)", result.SourcePath, o.Reason)
	default:
		return fmt.Sprintf("%s: failed: %v", result.SourcePath, o.Err)
	}
}
