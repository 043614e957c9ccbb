// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"fmt"
	"image"
)

// DecodedBitmap is a palette-indexed image with its resolved palette.
type DecodedBitmap struct {
	// Palette is embedded or referenced color table.
	Palette *DecodedPalette `json:"palette" yaml:"palette"`
	// Indices holds one palette index per pixel, row-major, without padding.
	Indices []uint8 `json:"-" yaml:"-"`
	// Width is image width in pixels.
	Width int `json:"width" yaml:"width"`
	// Height is image height in pixels.
	Height int `json:"height" yaml:"height"`
	// BitsPerPixel is stored index width: 4 or 8.
	BitsPerPixel int `json:"bits_per_pixel" yaml:"bits_per_pixel"`
	// ID is bitmap resource id.
	ID uint16 `json:"id" yaml:"id"`
	// PaletteID is referenced palette id, NoPalette for embedded palettes.
	PaletteID uint16 `json:"palette_id" yaml:"palette_id"`
}

// Image returns bitmap as *image.Paletted.
func (bm *DecodedBitmap) Image() *image.Paletted {
	if bm == nil {
		return nil
	}

	img := image.NewPaletted(image.Rect(0, 0, bm.Width, bm.Height), bm.Palette.ColorPalette())
	copy(img.Pix, bm.Indices)
	return img
}

// DecodeBitmap decodes bitmap resource rows and resolves its palette.
func (b *Blob) DecodeBitmap(id uint16) (*DecodedBitmap, error) {
	if b == nil {
		return nil, ErrNilBlob
	}

	e, err := b.registry.resolve(id)
	if err != nil {
		return nil, err
	}

	h, ok := e.Format.(BitmapHeader)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s resource, not a bitmap", ErrKindMismatch, e, e.Kind)
	}

	c := newCursor(b.payload(e))
	var pal *DecodedPalette
	if h.EmbeddedPalette {
		pal, err = b.decodeEmbeddedPalette(e)
		if err != nil {
			return nil, err
		}

		if err := c.Skip(EmbeddedPaletteSize); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTruncatedPayload, e, err)
		}
	} else {
		pal, err = b.resolvePalette(e, h.PaletteID)
		if err != nil {
			return nil, err
		}
	}

	stride := bitmapStride(h.Width, h.BitsPerPixel, b.header.RowAlign)
	need := stride * uint64(h.Height)
	if need > uint64(c.Remaining()) {
		return nil, fmt.Errorf("%w: %s %dx%d@%dbpp needs %d pixel bytes, have %d",
			ErrTruncatedPayload, e, h.Width, h.Height, h.BitsPerPixel, need, c.Remaining())
	}

	bm := &DecodedBitmap{
		ID:           e.ID,
		Width:        int(h.Width),
		Height:       int(h.Height),
		BitsPerPixel: int(h.BitsPerPixel),
		PaletteID:    h.PaletteID,
		Palette:      pal,
		Indices:      make([]uint8, int(h.Width)*int(h.Height)),
	}
	if h.EmbeddedPalette {
		bm.PaletteID = NoPalette
	}

	for y := 0; y < bm.Height; y++ {
		row, err := c.Read(int(stride))
		if err != nil {
			return nil, fmt.Errorf("%w: %s row %d: %w", ErrTruncatedPayload, e, y, err)
		}

		unpackRow(bm.Indices[y*bm.Width:(y+1)*bm.Width], row, bm.BitsPerPixel)
	}

	for i, idx := range bm.Indices {
		if int(idx) >= pal.Len() {
			return nil, fmt.Errorf("%w: %s pixel %d uses index %d of %d-color palette",
				ErrCorruptEntry, e, i, idx, pal.Len())
		}
	}

	return bm, nil
}

// EncodeBitmap renders bitmap payload bytes for header h in a blob with rowAlign.
// An embedded palette is written from pal; it must hold at most 256 colors.
func EncodeBitmap(h BitmapHeader, rowAlign uint16, pal *DecodedPalette, indices []uint8) ([]byte, error) {
	if h.BitsPerPixel != 4 && h.BitsPerPixel != 8 {
		return nil, fmt.Errorf("%w: bitmap depth %d", ErrFormatMismatch, h.BitsPerPixel)
	}
	if err := checkBitmapGeometry(h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormatMismatch, err)
	}

	pixels := uint64(h.Width) * uint64(h.Height)
	if uint64(len(indices)) != pixels {
		return nil, fmt.Errorf("%w: %d indices for %dx%d bitmap", ErrFormatMismatch, len(indices), h.Width, h.Height)
	}

	limit := 1 << h.BitsPerPixel
	for i, idx := range indices {
		if int(idx) >= limit {
			return nil, fmt.Errorf("%w: pixel %d index %d exceeds %d-bit depth", ErrFormatMismatch, i, idx, h.BitsPerPixel)
		}
	}

	stride := bitmapStride(h.Width, h.BitsPerPixel, rowAlign)
	size := stride * uint64(h.Height)
	if h.EmbeddedPalette {
		size += EmbeddedPaletteSize
	}
	if size >= maxBlobSize {
		return nil, fmt.Errorf("%w: bitmap payload of %d bytes", ErrPayloadTooLarge, size)
	}

	out := make([]byte, 0, size)
	if h.EmbeddedPalette {
		if pal.Len() > EmbeddedPaletteColors {
			return nil, fmt.Errorf("%w: %d colors, embedded palette holds %d",
				ErrPayloadTooLarge, pal.Len(), EmbeddedPaletteColors)
		}

		colors := make([]Color, EmbeddedPaletteColors)
		if pal != nil {
			copy(colors, pal.Colors)
		}

		raw, err := EncodePalette(colors, PaletteBGRA32)
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}

	width := int(h.Width)
	row := make([]byte, stride)
	for y := 0; y < int(h.Height); y++ {
		clear(row)
		packRow(row, indices[y*width:(y+1)*width], int(h.BitsPerPixel))
		out = append(out, row...)
	}

	return out, nil
}

// checkBitmapGeometry rejects bitmaps that have rows but no columns or columns but no rows.
func checkBitmapGeometry(h BitmapHeader) error {
	if (h.Width == 0) != (h.Height == 0) {
		return fmt.Errorf("degenerate %dx%d bitmap", h.Width, h.Height)
	}

	return nil
}

// bitmapStride returns bytes per stored row including alignment padding.
func bitmapStride(width uint32, bpp uint16, align uint16) uint64 {
	stride := (uint64(width)*uint64(bpp) + 7) / 8
	if align > 1 {
		a := uint64(align)
		stride = (stride + a - 1) / a * a
	}

	return stride
}

// unpackRow expands stored row bytes into one index per pixel.
// At 4bpp the high nibble holds the left pixel.
func unpackRow(dst []uint8, row []byte, bpp int) {
	if bpp == 8 {
		copy(dst, row)
		return
	}

	for x := range dst {
		v := row[x/2]
		if x%2 == 0 {
			dst[x] = v >> 4
		} else {
			dst[x] = v & 0x0F
		}
	}
}

// packRow is the inverse of unpackRow; row must be zeroed.
func packRow(row []byte, src []uint8, bpp int) {
	if bpp == 8 {
		copy(row, src)
		return
	}

	for x, idx := range src {
		if x%2 == 0 {
			row[x/2] |= idx << 4
		} else {
			row[x/2] |= idx & 0x0F
		}
	}
}
