package drc

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// fixtureEntry describes one resource of a generated test blob.
type fixtureEntry struct {
	payload []byte
	gap     int // unclaimed bytes written before payload
	aux     [auxSize]byte
	typ     uint16
	id      uint16
}

// buildClassicBlob writes count, records, and payloads with offsets relative to directory end.
func buildClassicBlob(entries ...fixtureEntry) []byte {
	dirEnd := classicHeaderSize + len(entries)*recordSize

	out := make([]byte, dirEnd)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(entries)))

	for i, e := range entries {
		out = append(out, bytes.Repeat([]byte{0xEE}, e.gap)...)
		rel := len(out) - dirEnd
		out = append(out, e.payload...)
		putFixtureRecord(out[classicHeaderSize+i*recordSize:], e, uint32(rel))
	}

	return out
}

// buildIndexedBlob writes indexed header, directory right after it, and payloads with absolute offsets.
func buildIndexedBlob(rowAlign uint16, entries ...fixtureEntry) []byte {
	dirEnd := indexedHeaderSize + len(entries)*recordSize

	out := make([]byte, dirEnd)
	copy(out[0:4], indexedMagic[:])
	binary.LittleEndian.PutUint16(out[4:6], indexedVersion)
	binary.LittleEndian.PutUint16(out[6:8], rowAlign)
	binary.LittleEndian.PutUint32(out[8:12], indexedHeaderSize)
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(entries)))

	for i, e := range entries {
		out = append(out, bytes.Repeat([]byte{0xEE}, e.gap)...)
		off := len(out)
		out = append(out, e.payload...)
		putFixtureRecord(out[indexedHeaderSize+i*recordSize:], e, uint32(off))
	}

	binary.LittleEndian.PutUint32(out[16:20], uint32(len(out)))
	return out
}

// putFixtureRecord writes one 24-byte directory record.
func putFixtureRecord(rec []byte, e fixtureEntry, offset uint32) {
	binary.LittleEndian.PutUint16(rec[0:2], e.typ)
	binary.LittleEndian.PutUint16(rec[2:4], e.id)
	binary.LittleEndian.PutUint32(rec[4:8], offset)
	binary.LittleEndian.PutUint32(rec[8:12], uint32(len(e.payload)))
	copy(rec[12:24], e.aux[:])
}

// auxWords packs three little-endian format words.
func auxWords(w0, w1, w2 uint32) [auxSize]byte {
	var aux [auxSize]byte
	binary.LittleEndian.PutUint32(aux[0:4], w0)
	binary.LittleEndian.PutUint32(aux[4:8], w1)
	binary.LittleEndian.PutUint32(aux[8:12], w2)
	return aux
}

// classicBitmap returns an embedded-palette 8bpp bitmap resource.
func classicBitmap(id uint16, w, h uint32, colors []Color, indices []byte) fixtureEntry {
	pal := make([]Color, EmbeddedPaletteColors)
	copy(pal, colors)
	raw, _ := EncodePalette(pal, PaletteBGRA32)

	payload := append(raw, indices...)
	return fixtureEntry{typ: TypeBitmap, id: id, aux: auxWords(0, w, h), payload: payload}
}

// indexedBitmap returns a bitmap that references palette pid.
func indexedBitmap(id uint16, bpp uint16, pid uint16, w, h uint32, rows []byte) fixtureEntry {
	return fixtureEntry{
		typ:     TypeBitmap,
		id:      id,
		aux:     auxWords(uint32(bpp)|uint32(pid)<<16, w, h),
		payload: rows,
	}
}

// paletteResource returns an RGB24 palette resource.
func paletteResource(id uint16, colors []Color) fixtureEntry {
	raw, _ := EncodePalette(colors, PaletteRGB24)
	return fixtureEntry{
		typ:     TypePalette,
		id:      id,
		aux:     auxWords(uint32(len(colors)), uint32(PaletteRGB24), 0),
		payload: raw,
	}
}

// soundResource returns a PCM sound resource.
func soundResource(id uint16, bits uint16, channels, rate uint32, payload []byte) fixtureEntry {
	var aux [auxSize]byte
	binary.LittleEndian.PutUint16(aux[0:2], AudioEncodingPCM)
	binary.LittleEndian.PutUint16(aux[2:4], bits)
	binary.LittleEndian.PutUint32(aux[4:8], channels)
	binary.LittleEndian.PutUint32(aux[8:12], rate)
	return fixtureEntry{typ: TypeSound, id: id, aux: aux, payload: payload}
}

// rawResource returns an untyped resource.
func rawResource(id uint16, size int, fill byte) fixtureEntry {
	return fixtureEntry{typ: 0x7, id: id, payload: bytes.Repeat([]byte{fill}, size)}
}

// grayRamp returns n gray colors from black.
func grayRamp(n int) []Color {
	out := make([]Color, n)
	for i := range out {
		v := uint8(i * 255 / max(n-1, 1))
		out[i] = Color{R: v, G: v, B: v, A: 0xFF}
	}

	return out
}

// sequence returns n bytes 0, 1, 2, ... modulo mod.
func sequence(n int, mod int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(i % mod)
	}

	return out
}

// mustParse parses data or fails the test.
func mustParse(t testing.TB, data []byte) *Blob {
	t.Helper()

	b, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	return b
}

// writeTempBlob writes data to a temp file and returns its path.
func writeTempBlob(t testing.TB, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "drc_resources.bin")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write blob: %v", err)
	}

	return path
}

// mixedIndexedBlob has a shared palette, a 4bpp and an 8bpp bitmap, a sound, and a raw resource.
func mixedIndexedBlob() []byte {
	return buildIndexedBlob(4,
		paletteResource(0x0010, grayRamp(16)),
		indexedBitmap(0x0001, 8, 0x0010, 3, 2, []byte{
			0, 1, 2, 0xAA,
			3, 4, 5, 0xAA,
		}),
		indexedBitmap(0x0002, 4, 0x0010, 3, 2, []byte{
			0x12, 0x30, 0x00, 0x00,
			0xFE, 0xD0, 0x00, 0x00,
		}),
		soundResource(0x0020, 16, 1, 8000, []byte{0x01, 0x00, 0xFF, 0xFF, 0x00, 0x80}),
		rawResource(0x0030, 16, 0x5A),
	)
}
