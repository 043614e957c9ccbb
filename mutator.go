// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"bytes"
	"fmt"
)

// Replace stores payload as the new content of resource id and returns the
// resulting snapshot. The receiver is never modified.
//
// A payload that fits the current slot is written in place and the unused
// tail becomes free space. A larger payload moves to the lowest free range
// that holds it, or is appended to the end of the blob. Only the record of
// the replaced resource changes in the directory.
func (b *Blob) Replace(id uint16, payload []byte, opts ReplaceOptions) (*Blob, ReplaceResult, error) {
	if b == nil {
		return nil, ReplaceResult{}, ErrNilBlob
	}

	e, err := b.registry.resolve(id)
	if err != nil {
		return nil, ReplaceResult{}, err
	}

	format := e.Format
	if opts.Format != nil {
		format, err = reconcileFormat(e, opts.Format)
		if err != nil {
			return nil, ReplaceResult{}, err
		}
	}

	if uint64(len(payload)) >= maxBlobSize {
		return nil, ReplaceResult{}, fmt.Errorf("%w: %s payload of %d bytes", ErrPayloadTooLarge, e, len(payload))
	}

	if err := validatePayload(format, payload, b.header.RowAlign); err != nil {
		return nil, ReplaceResult{}, fmt.Errorf("%w: %s", err, e)
	}

	size := uint32(len(payload)) //nolint:gosec // checked above
	res := ReplaceResult{
		OldOffset: e.Offset,
		OldSize:   e.Size,
		NewSize:   size,
	}

	h := b.header
	var data []byte
	switch {
	case size <= e.Size:
		res.Placement = PlacementInPlace
		res.NewOffset = e.Offset
		data = bytes.Clone(b.data)
	default:
		if r, ok := b.FreeSpace().FirstFit(size); ok {
			res.Placement = PlacementFreeRange
			res.NewOffset = r.Offset
			data = bytes.Clone(b.data)
			break
		}

		grown := uint64(len(b.data)) + uint64(size)
		if grown >= maxBlobSize {
			return nil, ReplaceResult{}, fmt.Errorf("%w: %s append grows blob to %d bytes", ErrPayloadTooLarge, e, grown)
		}

		res.Placement = PlacementAppend
		res.NewOffset = uint32(len(b.data))
		data = make([]byte, len(b.data), grown)
		copy(data, b.data)
		data = data[:grown]
		h.Length = uint32(grown) //nolint:gosec // checked above
	}

	if opts.ZeroFill {
		if res.Placement == PlacementInPlace {
			clear(data[uint64(e.Offset)+uint64(size) : e.End()])
		} else {
			clear(data[e.Offset:e.End()])
		}
	}

	copy(data[res.NewOffset:], payload)

	e.Offset = res.NewOffset
	e.Size = size
	e.Format = format
	e.Aux = format.encode(h.Layout)
	putRecord(data, h, e)
	putLength(data, h)

	staged, err := b.reparse(data)
	if err != nil {
		return nil, ReplaceResult{}, err
	}

	return staged, res, nil
}

// reconcileFormat checks that next keeps the shape of the current format header.
// Dimensions, sample rate, and palette color count may change; bit depth,
// palette linkage, encoding, channels, and record format may not.
func reconcileFormat(e ResourceEntry, next FormatHeader) (FormatHeader, error) {
	if next.Kind() != e.Kind {
		return nil, fmt.Errorf("%w: %s is a %s resource, got %s header",
			ErrFormatMismatch, e, e.Kind, next.Kind())
	}

	switch cur := e.Format.(type) {
	case BitmapHeader:
		n, _ := next.(BitmapHeader)
		if n.BitsPerPixel != cur.BitsPerPixel {
			return nil, fmt.Errorf("%w: %s depth %d, got %d", ErrFormatMismatch, e, cur.BitsPerPixel, n.BitsPerPixel)
		}
		if n.EmbeddedPalette != cur.EmbeddedPalette || (!cur.EmbeddedPalette && n.PaletteID != cur.PaletteID) {
			return nil, fmt.Errorf("%w: %s palette linkage changed", ErrFormatMismatch, e)
		}

		n.Format = cur.Format
		n.PaletteID = cur.PaletteID
		return n, nil
	case SoundHeader:
		n, _ := next.(SoundHeader)
		if n.Encoding != cur.Encoding || n.BitsPerSample != cur.BitsPerSample || n.Channels != cur.Channels {
			return nil, fmt.Errorf("%w: %s sound %d/%d-bit/%dch, got %d/%d-bit/%dch", ErrFormatMismatch, e,
				cur.Encoding, cur.BitsPerSample, cur.Channels, n.Encoding, n.BitsPerSample, n.Channels)
		}
		if n.SampleRate == 0 {
			return nil, fmt.Errorf("%w: %s zero sample rate", ErrFormatMismatch, e)
		}

		return n, nil
	case PaletteHeader:
		n, _ := next.(PaletteHeader)
		if n.RecordFormat != cur.RecordFormat {
			return nil, fmt.Errorf("%w: %s palette record format %d, got %d",
				ErrFormatMismatch, e, cur.RecordFormat, n.RecordFormat)
		}

		return n, nil
	default:
		return next, nil
	}
}

// validatePayload checks that payload holds what format declares.
func validatePayload(format FormatHeader, payload []byte, rowAlign uint16) error {
	switch h := format.(type) {
	case BitmapHeader:
		if err := checkBitmapGeometry(h); err != nil {
			return fmt.Errorf("%w: %w", ErrFormatMismatch, err)
		}

		need := bitmapStride(h.Width, h.BitsPerPixel, rowAlign) * uint64(h.Height)
		if h.EmbeddedPalette {
			need += EmbeddedPaletteSize
		}
		if uint64(len(payload)) < need {
			return fmt.Errorf("%w: %dx%d@%dbpp bitmap needs %d bytes, got %d",
				ErrTruncatedPayload, h.Width, h.Height, h.BitsPerPixel, need, len(payload))
		}
	case SoundHeader:
		if h.Encoding != AudioEncodingPCM {
			return nil
		}
		if err := checkSoundHeader(h); err != nil {
			return err
		}

		frame := int(h.BitsPerSample/8) * int(h.Channels)
		if len(payload)%frame != 0 {
			return fmt.Errorf("%w: %d bytes, not a multiple of %d-byte frame", ErrTruncatedPayload, len(payload), frame)
		}
	case PaletteHeader:
		count := h.ColorCount()
		if count > maxPaletteColors {
			return fmt.Errorf("%w: %d colors, palette holds at most %d", ErrPayloadTooLarge, count, maxPaletteColors)
		}

		need := count * h.RecordFormat.width()
		if len(payload) < need {
			return fmt.Errorf("%w: %d colors need %d bytes, got %d", ErrTruncatedPayload, count, need, len(payload))
		}
	}

	return nil
}
