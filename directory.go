// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"fmt"
	"math/bits"
	"os"
	"slices"
)

// Open reads blob file by path and parses header and directory.
func Open(path string) (*Blob, error) {
	return OpenWithOptions(path, OpenOptions{})
}

// OpenWithOptions reads blob file by path and parses header and directory using explicit options.
func OpenWithOptions(path string, opts OpenOptions) (*Blob, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}

	return parseBlob(data, opts.Offset)
}

// Parse parses blob from an in-memory buffer. The buffer is copied.
func Parse(data []byte) (*Blob, error) {
	return ParseWithOptions(data, OpenOptions{})
}

// ParseWithOptions parses blob from an in-memory buffer using explicit options. The buffer is copied.
func ParseWithOptions(data []byte, opts OpenOptions) (*Blob, error) {
	return parseBlob(bytes.Clone(data), opts.Offset)
}

// ListEntries reads blob file and returns directory entries only.
func ListEntries(path string) ([]ResourceEntry, error) {
	b, err := Open(path)
	if err != nil {
		return nil, err
	}

	return b.Entries(), nil
}

// parseBlob builds a snapshot over owned file bytes; blob starts at offset.
func parseBlob(file []byte, offset int64) (*Blob, error) {
	fc := newCursor(file)
	if err := fc.Seek(offset); err != nil {
		return nil, fmt.Errorf("blob offset: %w", err)
	}

	rest := file[offset:]
	header, err := parseHeader(rest)
	if err != nil {
		return nil, err
	}

	data := rest[:header.Length:header.Length]
	entries, err := parseDirectory(data, header)
	if err != nil {
		return nil, err
	}

	if err := validateEntries(entries, header, len(data)); err != nil {
		return nil, err
	}

	registry, err := newRegistry(entries)
	if err != nil {
		return nil, err
	}

	return &Blob{
		header:   header,
		prefix:   file[:offset:offset],
		data:     data,
		trailer:  rest[header.Length:],
		entries:  entries,
		registry: registry,
	}, nil
}

// parseHeader detects layout and reads fixed header fields.
func parseHeader(buf []byte) (Header, error) {
	if len(buf) < classicHeaderSize {
		return Header{}, fmt.Errorf("%w: short header (%d bytes)", ErrMalformedHeader, len(buf))
	}
	if uint64(len(buf)) >= maxBlobSize {
		return Header{}, fmt.Errorf("%w: blob exceeds 4 GiB", ErrMalformedHeader)
	}

	c := newCursor(buf)
	magic, err := c.Read(len(indexedMagic))
	if err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	if bytes.Equal(magic, indexedMagic[:]) {
		return parseIndexedHeader(c)
	}

	if err := c.Seek(0); err != nil {
		return Header{}, err
	}

	count, err := c.U32()
	if err != nil {
		return Header{}, fmt.Errorf("%w: %w", ErrMalformedHeader, err)
	}

	if uint64(count)*recordSize > uint64(c.Remaining()) {
		return Header{}, fmt.Errorf("%w: %d records need %d bytes, %d remain",
			ErrTruncatedDirectory, count, uint64(count)*recordSize, c.Remaining())
	}

	return Header{
		Layout:    LayoutClassic,
		RowAlign:  1,
		DirOffset: classicHeaderSize,
		Count:     count,
		Length:    uint32(len(buf)), //nolint:gosec // bounded by maxBlobSize check above
	}, nil
}

// parseIndexedHeader reads indexed header fields after the magic.
func parseIndexedHeader(c *cursor) (Header, error) {
	h := Header{Layout: LayoutIndexed}

	var fields [3]uint32
	version, err := c.U16()
	if err == nil {
		h.RowAlign, err = c.U16()
	}
	for i := 0; err == nil && i < 3; i++ {
		fields[i], err = c.U32()
	}
	if err != nil {
		return Header{}, fmt.Errorf("%w: short indexed header: %w", ErrMalformedHeader, err)
	}

	h.Version = version
	h.DirOffset, h.Count, h.Length = fields[0], fields[1], fields[2]

	if h.Version != indexedVersion {
		return Header{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedHeader, h.Version)
	}
	if h.RowAlign == 0 {
		h.RowAlign = 1
	}
	if bits.OnesCount16(h.RowAlign) != 1 {
		return Header{}, fmt.Errorf("%w: row alignment %d is not a power of two", ErrMalformedHeader, h.RowAlign)
	}
	if h.Length < indexedHeaderSize || int64(h.Length) > int64(c.Len()) {
		return Header{}, fmt.Errorf("%w: declared length %d, file holds %d", ErrMalformedHeader, h.Length, c.Len())
	}
	if h.DirOffset < indexedHeaderSize || h.DirOffset > h.Length {
		return Header{}, fmt.Errorf("%w: directory offset %d outside [%d, %d]",
			ErrMalformedHeader, h.DirOffset, indexedHeaderSize, h.Length)
	}
	if h.dirEnd() > uint64(h.Length) {
		return Header{}, fmt.Errorf("%w: %d records at %d exceed declared length %d",
			ErrTruncatedDirectory, h.Count, h.DirOffset, h.Length)
	}

	return h, nil
}

// parseDirectory reads all directory records sequentially.
func parseDirectory(data []byte, h Header) ([]ResourceEntry, error) {
	c := newCursor(data)
	if err := c.Seek(int64(h.DirOffset)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedDirectory, err)
	}

	base := uint64(h.offsetBase())
	entries := make([]ResourceEntry, 0, h.Count)
	for i := 0; i < int(h.Count); i++ {
		rec, err := c.Read(recordSize)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", ErrTruncatedDirectory, i, err)
		}

		e := ResourceEntry{
			Index: i,
			Type:  binary.LittleEndian.Uint16(rec[0:2]),
			ID:    binary.LittleEndian.Uint16(rec[2:4]),
			Size:  binary.LittleEndian.Uint32(rec[8:12]),
		}
		copy(e.Aux[:], rec[12:recordSize])
		e.Kind = kindFromType(e.Type)

		abs := base + uint64(binary.LittleEndian.Uint32(rec[4:8]))
		if abs >= maxBlobSize {
			return nil, fmt.Errorf("%w: %s offset overflows 4 GiB", ErrCorruptEntry, e)
		}
		e.Offset = uint32(abs)

		e.Format, err = parseFormatHeader(e.Kind, e.Aux, h.Layout)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCorruptEntry, e, err)
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// validateEntries enforces in-bounds, non-overlapping payload ranges.
func validateEntries(entries []ResourceEntry, h Header, dataLen int) error {
	reservedStart := uint64(0)
	reservedEnd := uint64(h.headerSize())
	dirStart, dirEnd := uint64(h.DirOffset), h.dirEnd()

	order := make([]int, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if e.End() > uint64(dataLen) {
			return fmt.Errorf("%w: %s payload [%d, %d) outside %d-byte blob",
				ErrCorruptEntry, e, e.Offset, e.End(), dataLen)
		}

		if e.Size == 0 {
			continue
		}

		if rangesOverlap(uint64(e.Offset), e.End(), reservedStart, reservedEnd) {
			return fmt.Errorf("%w: %s payload overlaps blob header", ErrCorruptEntry, e)
		}
		if rangesOverlap(uint64(e.Offset), e.End(), dirStart, dirEnd) {
			return fmt.Errorf("%w: %s payload overlaps directory", ErrCorruptEntry, e)
		}

		order = append(order, i)
	}

	slices.SortFunc(order, func(a, b int) int {
		return cmp.Compare(entries[a].Offset, entries[b].Offset)
	})

	for k := 1; k < len(order); k++ {
		prev, cur := entries[order[k-1]], entries[order[k]]
		if uint64(cur.Offset) < prev.End() {
			return fmt.Errorf("%w: %s overlaps %s", ErrCorruptEntry, cur, prev)
		}
	}

	return nil
}

// rangesOverlap reports whether [a0, a1) and [b0, b1) share at least one byte.
func rangesOverlap(a0, a1, b0, b1 uint64) bool {
	return a0 < b1 && b0 < a1
}

// parseFormatHeader builds the typed format view for one record.
func parseFormatHeader(kind Kind, aux [auxSize]byte, layout Layout) (FormatHeader, error) {
	w0 := binary.LittleEndian.Uint32(aux[0:4])
	w1 := binary.LittleEndian.Uint32(aux[4:8])
	w2 := binary.LittleEndian.Uint32(aux[8:12])

	switch kind {
	case KindBitmap:
		h := BitmapHeader{Format: w0, Width: w1, Height: w2}
		if err := checkBitmapGeometry(h); err != nil {
			return nil, err
		}

		if layout == LayoutClassic {
			h.BitsPerPixel = 8
			h.PaletteID = NoPalette
			h.EmbeddedPalette = true
			return h, nil
		}

		h.BitsPerPixel = uint16(w0 & 0xFFFF) //nolint:gosec // masked
		h.PaletteID = uint16(w0 >> 16)       //nolint:gosec // shifted
		h.EmbeddedPalette = h.PaletteID == NoPalette
		if h.BitsPerPixel != 4 && h.BitsPerPixel != 8 {
			return nil, fmt.Errorf("unsupported bitmap depth %d", h.BitsPerPixel)
		}

		return h, nil
	case KindSound:
		return SoundHeader{
			Encoding:      binary.LittleEndian.Uint16(aux[0:2]),
			BitsPerSample: binary.LittleEndian.Uint16(aux[2:4]),
			Channels:      w1,
			SampleRate:    w2,
		}, nil
	case KindPalette:
		h := PaletteHeader{Colors: w0, RecordFormat: PaletteRecordFormat(w1), Reserved: w2}
		if h.RecordFormat.width() == 0 {
			return nil, fmt.Errorf("unknown palette record format %d", w1)
		}

		return h, nil
	default:
		return RawHeader{Aux: aux}, nil
	}
}

// encode implements FormatHeader.
func (h BitmapHeader) encode(layout Layout) [auxSize]byte {
	word := h.Format
	if layout == LayoutIndexed {
		pid := h.PaletteID
		if h.EmbeddedPalette {
			pid = NoPalette
		}
		word = uint32(h.BitsPerPixel) | uint32(pid)<<16
	}

	var aux [auxSize]byte
	binary.LittleEndian.PutUint32(aux[0:4], word)
	binary.LittleEndian.PutUint32(aux[4:8], h.Width)
	binary.LittleEndian.PutUint32(aux[8:12], h.Height)
	return aux
}

// encode implements FormatHeader.
func (h SoundHeader) encode(Layout) [auxSize]byte {
	var aux [auxSize]byte
	binary.LittleEndian.PutUint16(aux[0:2], h.Encoding)
	binary.LittleEndian.PutUint16(aux[2:4], h.BitsPerSample)
	binary.LittleEndian.PutUint32(aux[4:8], h.Channels)
	binary.LittleEndian.PutUint32(aux[8:12], h.SampleRate)
	return aux
}

// encode implements FormatHeader.
func (h PaletteHeader) encode(Layout) [auxSize]byte {
	var aux [auxSize]byte
	binary.LittleEndian.PutUint32(aux[0:4], h.Colors)
	binary.LittleEndian.PutUint32(aux[4:8], uint32(h.RecordFormat))
	binary.LittleEndian.PutUint32(aux[8:12], h.Reserved)
	return aux
}

// encode implements FormatHeader.
func (h RawHeader) encode(Layout) [auxSize]byte {
	return h.Aux
}
