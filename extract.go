// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// extractWorkItem stores one selected entry with prepared output relative path.
type extractWorkItem struct {
	relPath string
	entry   ResourceEntry
}

// Extract writes selected resources to dstDir as "<kind>/0x<id>.<ext>".
// Bitmaps become PNG, sounds WAV, palettes text listings, other resources raw
// bytes; with Raw set every resource is written as stored. Extraction is
// parallelized by MaxWorkers and stops at the first error. OnEntryDone may be
// called from several goroutines.
func (b *Blob) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if b == nil {
		return ErrNilBlob
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	entries, err := b.Select(opts.Select, opts.MatcherOptions, opts.Raw)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("%w: resolve output dir: %w", ErrIO, err)
	}

	workItems := make([]extractWorkItem, 0, len(entries))
	dirs := make(map[Kind]struct{}, KindOther+1)
	for _, e := range entries {
		workItems = append(workItems, extractWorkItem{
			entry:   e,
			relPath: filepath.FromSlash(ResourceName(e, opts.Raw)),
		})
		dirs[e.Kind] = struct{}{}
	}

	for kind := range dirs {
		dirPath := filepath.Join(dstRootAbs, kind.String())
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("%w: create output directory %s: %w", ErrIO, dirPath, err)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, task := range workItems {
		if ctx.Err() != nil {
			break
		}

		eg.Go(func() error {
			return b.extractPreparedEntry(ctx, dstRootAbs, task, opts)
		})
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

// extractPreparedEntry writes one prepared work item to destination root.
func (b *Blob) extractPreparedEntry(ctx context.Context, dstRootAbs string, task extractWorkItem, opts ExtractOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)
	file, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, outPath, err)
	}

	writeErr := b.writeResource(file, task.entry, opts.Raw)
	closeErr := file.Close()
	if writeErr != nil {
		_ = os.Remove(outPath)
		return fmt.Errorf("extract %s: %w", task.entry, writeErr)
	}

	if closeErr != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, outPath, closeErr)
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(task.entry, outPath)
	}

	return nil
}

// writeResource renders one resource into file.
func (b *Blob) writeResource(file *os.File, e ResourceEntry, raw bool) error {
	if raw || e.Kind == KindOther {
		if _, err := file.Write(b.payload(e)); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}

		return nil
	}

	switch e.Kind {
	case KindBitmap:
		bm, err := b.DecodeBitmap(e.ID)
		if err != nil {
			return err
		}

		return bm.EncodePNG(file)
	case KindSound:
		a, err := b.DecodeAudio(e.ID)
		if err != nil {
			return err
		}

		return a.EncodeWAV(file)
	case KindPalette:
		p, err := b.DecodePalette(e.ID)
		if err != nil {
			return err
		}

		return p.WriteText(file)
	default:
		return fmt.Errorf("%w: %s kind %s", ErrKindMismatch, e, e.Kind)
	}
}
