// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"fmt"
	"image/color"
)

// Color is one palette entry.
type Color struct {
	R uint8 `json:"r" yaml:"r"`
	G uint8 `json:"g" yaml:"g"`
	B uint8 `json:"b" yaml:"b"`
	A uint8 `json:"a" yaml:"a"`
}

// NRGBA converts to image/color non-premultiplied color.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// colorFrom converts any color to a palette entry.
func colorFrom(c color.Color) Color {
	n, _ := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B, A: n.A}
}

// DecodedPalette is an ordered color table.
type DecodedPalette struct {
	// Colors are palette entries in file order.
	Colors []Color `json:"colors" yaml:"colors"`
	// ID is the resource that stores the palette.
	ID uint16 `json:"id" yaml:"id"`
	// Embedded reports that the palette prefixes a bitmap payload.
	Embedded bool `json:"embedded,omitempty" yaml:"embedded,omitempty"`
}

// Len returns number of colors.
func (p *DecodedPalette) Len() int {
	if p == nil {
		return 0
	}

	return len(p.Colors)
}

// ColorPalette converts to image/color palette.
func (p *DecodedPalette) ColorPalette() color.Palette {
	if p == nil {
		return nil
	}

	out := make(color.Palette, len(p.Colors))
	for i, c := range p.Colors {
		out[i] = c.NRGBA()
	}

	return out
}

// DecodePalette decodes a palette resource. For bitmaps it returns
// the embedded palette or the palette resource the bitmap references.
func (b *Blob) DecodePalette(id uint16) (*DecodedPalette, error) {
	if b == nil {
		return nil, ErrNilBlob
	}

	e, err := b.registry.resolve(id)
	if err != nil {
		return nil, err
	}

	switch h := e.Format.(type) {
	case PaletteHeader:
		colors, err := decodePaletteBytes(b.payload(e), h.ColorCount(), h.RecordFormat)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, e)
		}

		return &DecodedPalette{ID: e.ID, Colors: colors}, nil
	case BitmapHeader:
		if h.EmbeddedPalette {
			return b.decodeEmbeddedPalette(e)
		}

		return b.resolvePalette(e, h.PaletteID)
	case SoundHeader, RawHeader:
		return nil, fmt.Errorf("%w: %s is a %s resource", ErrKindMismatch, e, e.Kind)
	default:
		return nil, fmt.Errorf("%w: %s has no format header", ErrCorruptEntry, e)
	}
}

// decodeEmbeddedPalette reads the 256 x BGRA prefix of a classic bitmap payload.
func (b *Blob) decodeEmbeddedPalette(e ResourceEntry) (*DecodedPalette, error) {
	colors, err := decodePaletteBytes(b.payload(e), EmbeddedPaletteColors, PaletteBGRA32)
	if err != nil {
		return nil, fmt.Errorf("%w: %s embedded palette", err, e)
	}

	return &DecodedPalette{ID: e.ID, Colors: colors, Embedded: true}, nil
}

// resolvePalette looks up a referenced palette through the registry of this snapshot.
func (b *Blob) resolvePalette(from ResourceEntry, paletteID uint16) (*DecodedPalette, error) {
	pe, ok := b.registry.Lookup(paletteID)
	if !ok {
		return nil, fmt.Errorf("%w: %s references palette 0x%04x", ErrMissingPalette, from, paletteID)
	}

	ph, ok := pe.Format.(PaletteHeader)
	if !ok {
		return nil, fmt.Errorf("%w: %s references %s which is a %s resource",
			ErrMissingPalette, from, pe, pe.Kind)
	}

	colors, err := decodePaletteBytes(b.payload(pe), ph.ColorCount(), ph.RecordFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %s palette for %s", err, pe, from)
	}

	return &DecodedPalette{ID: pe.ID, Colors: colors}, nil
}

// decodePaletteBytes reads count fixed-width color records.
func decodePaletteBytes(data []byte, count int, format PaletteRecordFormat) ([]Color, error) {
	width := format.width()
	if width == 0 {
		return nil, fmt.Errorf("%w: unknown palette record format %d", ErrCorruptEntry, format)
	}
	if count > maxPaletteColors {
		return nil, fmt.Errorf("%w: %d colors, palette holds at most %d", ErrPayloadTooLarge, count, maxPaletteColors)
	}

	need := count * width
	if len(data) < need {
		return nil, fmt.Errorf("%w: %d colors need %d bytes, have %d", ErrTruncatedPayload, count, need, len(data))
	}

	c := newCursor(data)
	colors := make([]Color, count)
	for i := range colors {
		rec, err := c.Read(width)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedPayload, err)
		}

		switch format {
		case PaletteRGB24:
			colors[i] = Color{R: rec[0], G: rec[1], B: rec[2], A: 0xFF}
		case PaletteBGRA32:
			colors[i] = Color{B: rec[0], G: rec[1], R: rec[2], A: rec[3]}
		}
	}

	return colors, nil
}

// EncodePalette renders colors as palette records; at most 256 colors.
func EncodePalette(colors []Color, format PaletteRecordFormat) ([]byte, error) {
	width := format.width()
	if width == 0 {
		return nil, fmt.Errorf("%w: unknown palette record format %d", ErrFormatMismatch, format)
	}
	if len(colors) > maxPaletteColors {
		return nil, fmt.Errorf("%w: %d colors, palette holds at most %d", ErrPayloadTooLarge, len(colors), maxPaletteColors)
	}

	out := make([]byte, 0, len(colors)*width)
	for _, c := range colors {
		switch format {
		case PaletteRGB24:
			out = append(out, c.R, c.G, c.B)
		case PaletteBGRA32:
			out = append(out, c.B, c.G, c.R, c.A)
		}
	}

	return out, nil
}
