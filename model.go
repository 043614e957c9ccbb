// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	recordSize        = 24      // directory record size in bytes
	auxSize           = 12      // format header bytes inside a directory record
	classicHeaderSize = 4       // classic layout: entry count only
	indexedHeaderSize = 20      // indexed layout: magic, version, align, dir offset, count, length
	indexedVersion    = 1       // only supported indexed layout version
	maxPaletteColors  = 256     // palette index range of 8-bit pixels
	maxBlobSize       = 1 << 32 // offsets and sizes are uint32
)

// Embedded palette geometry used by classic bitmaps.
const (
	EmbeddedPaletteColors = 256
	EmbeddedPaletteSize   = EmbeddedPaletteColors * 4
)

// NoPalette is the indexed-layout palette id that marks an embedded palette.
const NoPalette uint16 = 0xFFFF

// indexedMagic starts every indexed-layout blob.
var indexedMagic = [4]byte{'D', 'R', 'C', 'B'}

// Resource type tags as stored in directory records.
const (
	TypeBitmap  uint16 = 0x0
	TypeSound   uint16 = 0x1
	TypePalette uint16 = 0x2
)

// Layout identifies the on-disk header flavor of a blob.
type Layout uint8

// Supported blob layouts.
const (
	// LayoutClassic is the firmware layout: entry count, records, data relative to directory end.
	LayoutClassic Layout = iota
	// LayoutIndexed carries magic, version, directory offset, and declared length.
	LayoutIndexed
)

// String returns layout name.
func (l Layout) String() string {
	switch l {
	case LayoutClassic:
		return "classic"
	case LayoutIndexed:
		return "indexed"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// Kind classifies a resource by its type tag.
type Kind uint8

// Resource kinds. The set is closed; unknown tags map to KindOther.
const (
	KindBitmap Kind = iota
	KindSound
	KindPalette
	KindOther
)

// String returns kind name used in listings and extract paths.
func (k Kind) String() string {
	switch k {
	case KindBitmap:
		return "bitmap"
	case KindSound:
		return "sound"
	case KindPalette:
		return "palette"
	default:
		return "other"
	}
}

// kindFromType maps a stored type tag to its kind.
func kindFromType(tag uint16) Kind {
	switch tag {
	case TypeBitmap:
		return KindBitmap
	case TypeSound:
		return KindSound
	case TypePalette:
		return KindPalette
	default:
		return KindOther
	}
}

// Header is parsed blob header metadata.
type Header struct {
	// Layout is detected header flavor.
	Layout Layout `json:"layout" yaml:"layout"`
	// Version is indexed layout version; zero for classic blobs.
	Version uint16 `json:"version,omitempty" yaml:"version,omitempty"`
	// RowAlign is bitmap row alignment in bytes; 1 means unpadded rows.
	RowAlign uint16 `json:"row_align" yaml:"row_align"`
	// DirOffset is absolute directory offset within the blob.
	DirOffset uint32 `json:"dir_offset" yaml:"dir_offset"`
	// Count is number of directory records.
	Count uint32 `json:"count" yaml:"count"`
	// Length is declared blob length (indexed) or blob data length (classic).
	Length uint32 `json:"length" yaml:"length"`
}

// headerSize returns fixed header size for the layout.
func (h Header) headerSize() uint32 {
	if h.Layout == LayoutIndexed {
		return indexedHeaderSize
	}

	return classicHeaderSize
}

// dirEnd returns absolute offset of the first byte after the directory.
func (h Header) dirEnd() uint64 {
	return uint64(h.DirOffset) + uint64(h.Count)*recordSize
}

// offsetBase returns the value stored offsets are relative to.
func (h Header) offsetBase() uint32 {
	if h.Layout == LayoutClassic {
		return uint32(h.dirEnd()) //nolint:gosec // directory end validated against blob size at parse
	}

	return 0
}

// FormatHeader is the typed view of a record's 12 format bytes.
// Implementations: BitmapHeader, SoundHeader, PaletteHeader, RawHeader.
type FormatHeader interface {
	// Kind returns resource kind described by this header.
	Kind() Kind
	// encode renders the header back into record format bytes.
	encode(layout Layout) [auxSize]byte
}

// BitmapHeader describes a palette-indexed bitmap.
type BitmapHeader struct {
	// Format is the raw first format word; opaque in classic blobs.
	Format uint32 `json:"format" yaml:"format"`
	// Width is bitmap width in pixels.
	Width uint32 `json:"width" yaml:"width"`
	// Height is bitmap height in pixels.
	Height uint32 `json:"height" yaml:"height"`
	// BitsPerPixel is index width: 4 or 8.
	BitsPerPixel uint16 `json:"bits_per_pixel" yaml:"bits_per_pixel"`
	// PaletteID references a palette resource when EmbeddedPalette is false.
	PaletteID uint16 `json:"palette_id" yaml:"palette_id"`
	// EmbeddedPalette reports that a 256 x BGRA palette prefixes the pixel rows.
	EmbeddedPalette bool `json:"embedded_palette" yaml:"embedded_palette"`
}

// SoundHeader describes an audio resource.
type SoundHeader struct {
	// Encoding is sample encoding tag; only AudioEncodingPCM is decodable.
	Encoding uint16 `json:"encoding" yaml:"encoding"`
	// BitsPerSample is 8 or 16 for PCM.
	BitsPerSample uint16 `json:"bits_per_sample" yaml:"bits_per_sample"`
	// Channels is interleaved channel count.
	Channels uint32 `json:"channels" yaml:"channels"`
	// SampleRate is frames per second.
	SampleRate uint32 `json:"sample_rate" yaml:"sample_rate"`
}

// AudioEncodingPCM marks uncompressed little-endian PCM.
const AudioEncodingPCM uint16 = 0

// PaletteRecordFormat is the byte layout of one palette color.
type PaletteRecordFormat uint32

// Palette record formats.
const (
	// PaletteRGB24 stores R, G, B per color.
	PaletteRGB24 PaletteRecordFormat = 0
	// PaletteBGRA32 stores B, G, R, A per color (embedded palette format).
	PaletteBGRA32 PaletteRecordFormat = 1
)

// width returns record width in bytes, zero for unknown formats.
func (f PaletteRecordFormat) width() int {
	switch f {
	case PaletteRGB24:
		return 3
	case PaletteBGRA32:
		return 4
	default:
		return 0
	}
}

// PaletteHeader describes a standalone palette resource.
type PaletteHeader struct {
	// Colors is stored color count; zero means 256.
	Colors uint32 `json:"colors" yaml:"colors"`
	// RecordFormat is the per-color byte layout.
	RecordFormat PaletteRecordFormat `json:"record_format" yaml:"record_format"`
	// Reserved is kept verbatim.
	Reserved uint32 `json:"reserved,omitempty" yaml:"reserved,omitempty"`
}

// ColorCount returns effective number of colors.
func (h PaletteHeader) ColorCount() int {
	if h.Colors == 0 {
		return maxPaletteColors
	}

	return int(h.Colors)
}

// RawHeader keeps format bytes of resources without a typed view.
type RawHeader struct {
	Aux [auxSize]byte `json:"aux" yaml:"aux"`
}

// Kind implements FormatHeader.
func (BitmapHeader) Kind() Kind { return KindBitmap }

// Kind implements FormatHeader.
func (SoundHeader) Kind() Kind { return KindSound }

// Kind implements FormatHeader.
func (PaletteHeader) Kind() Kind { return KindPalette }

// Kind implements FormatHeader.
func (RawHeader) Kind() Kind { return KindOther }

// ResourceEntry is one parsed directory record.
type ResourceEntry struct {
	// Format is typed view of Aux, parsed once at directory parse time.
	Format FormatHeader `json:"format" yaml:"format"`
	// Index is record position in the directory.
	Index int `json:"index" yaml:"index"`
	// Offset is absolute payload offset within the blob.
	Offset uint32 `json:"offset" yaml:"offset"`
	// Size is payload size in bytes.
	Size uint32 `json:"size" yaml:"size"`
	// Type is raw stored type tag.
	Type uint16 `json:"type" yaml:"type"`
	// ID is resource identifier.
	ID uint16 `json:"id" yaml:"id"`
	// Kind is classification of Type.
	Kind Kind `json:"kind" yaml:"kind"`
	// Aux is raw record format bytes.
	Aux [auxSize]byte `json:"-" yaml:"-"`
}

// End returns first byte after the payload.
func (e ResourceEntry) End() uint64 {
	return uint64(e.Offset) + uint64(e.Size)
}

// String identifies entry in errors and logs.
func (e ResourceEntry) String() string {
	return fmt.Sprintf("entry %d (id 0x%04x)", e.Index, e.ID)
}

// Placement tells where Replace stored the new payload.
type Placement string

// Replace placements.
const (
	// PlacementInPlace overwrote the original slot.
	PlacementInPlace Placement = "in_place"
	// PlacementFreeRange reused the first fitting free range.
	PlacementFreeRange Placement = "free_range"
	// PlacementAppend grew the blob.
	PlacementAppend Placement = "append"
)

// ReplaceResult describes one applied replacement.
type ReplaceResult struct {
	Placement Placement `json:"placement" yaml:"placement"`
	OldOffset uint32    `json:"old_offset" yaml:"old_offset"`
	NewOffset uint32    `json:"new_offset" yaml:"new_offset"`
	OldSize   uint32    `json:"old_size" yaml:"old_size"`
	NewSize   uint32    `json:"new_size" yaml:"new_size"`
}

// OpenOptions configures blob parsing.
type OpenOptions struct {
	// Offset is file position where the blob starts; leading bytes are kept verbatim.
	Offset int64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// ReplaceOptions configures one replacement.
type ReplaceOptions struct {
	// Format optionally replaces the resource format header; nil keeps the current one.
	Format FormatHeader `json:"-" yaml:"-"`
	// ZeroFill clears bytes released by the replacement.
	ZeroFill bool `json:"zero_fill,omitempty" yaml:"zero_fill,omitempty"`
}

// EditOptions configures file-based edit sessions.
type EditOptions struct {
	// Logger receives edit and commit events; nil disables logging.
	Logger *zerolog.Logger `json:"-" yaml:"-"`
	// Offset is file position where the blob starts.
	Offset int64 `json:"offset,omitempty" yaml:"offset,omitempty"`
	// BackupKeep controls how many backup generations are kept after successful commit.
	// 0 means remove backup, 1 keeps only `<blob>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
	// ZeroFill clears bytes released by replacements.
	ZeroFill bool `json:"zero_fill,omitempty" yaml:"zero_fill,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one resource is written to disk.
	OnEntryDone func(entry ResourceEntry, outputPath string) `json:"-" yaml:"-"`
	// Select is ordered include/exclude rules over resource names (e.g. "bitmap/*").
	// Empty rule set selects every resource.
	Select []pathrules.Rule `json:"select,omitempty" yaml:"select,omitempty"`
	// MatcherOptions control selection rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// Raw writes payload bytes as-is instead of PNG/WAV/text conversions.
	Raw bool `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// applyDefaults fills zero-valued edit options with defaults.
func (opts *EditOptions) applyDefaults() {
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}

	if opts.Offset < 0 {
		opts.Offset = 0
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
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
