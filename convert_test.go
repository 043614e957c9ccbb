package drc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePNGDecodesBack(t *testing.T) {
	t.Parallel()

	b := mustParse(t, mixedIndexedBlob())
	bm, err := b.DecodeBitmap(0x0002)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, bm.EncodePNG(&buf))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	pal := bm.Palette.ColorPalette()
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			want := pal[bm.Indices[y*3+x]]
			assert.Equal(t, color.NRGBAModel.Convert(want), color.NRGBAModel.Convert(img.At(x, y)), "pixel %d,%d", x, y)
		}
	}
}

func TestWriteTextListsColors(t *testing.T) {
	t.Parallel()

	p := &DecodedPalette{Colors: []Color{
		{A: 0xFF},
		{R: 0x12, G: 0x34, B: 0x56, A: 0x78},
	}}

	var buf bytes.Buffer
	require.NoError(t, p.WriteText(&buf))
	assert.Equal(t, "0x00: #000000ff\n0x01: #12345678\n", buf.String())
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	b := mustParse(t, mixedIndexedBlob())
	a, err := b.DecodeAudio(0x0020)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sound.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, a.EncodeWAV(f))
	require.NoError(t, f.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = in.Close() }()

	payload, err := b.SoundPayloadFromWAV(0x0020, in)
	require.NoError(t, err)

	want, err := b.Payload(0x0020)
	require.NoError(t, err)
	assert.Equal(t, want, payload)
}

func TestSoundPayloadFromWAVConverts(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "stereo8.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	// 16 kHz unsigned 8-bit stereo; every frame mixes to 0x40 << 8.
	enc := wav.NewEncoder(f, 16000, 8, 2, wavFormatPCM)
	data := make([]int, 0, 16)
	for range 8 {
		data = append(data, 128+0x30, 128+0x50)
	}
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 16000},
		Data:           data,
		SourceBitDepth: 8,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = in.Close() }()

	b := mustParse(t, mixedIndexedBlob())
	payload, err := b.SoundPayloadFromWAV(0x0020, in)
	require.NoError(t, err)

	samples := make([]int16, 0, 4)
	for i := 0; i+1 < len(payload); i += 2 {
		samples = append(samples, int16(uint16(payload[i])|uint16(payload[i+1])<<8))
	}
	assert.Equal(t, []int16{0x4000, 0x4000, 0x4000, 0x4000}, samples)
}

func TestSoundPayloadFromWAVRejects(t *testing.T) {
	t.Parallel()

	b := mustParse(t, mixedIndexedBlob())

	_, err := b.SoundPayloadFromWAV(0x0020, bytes.NewReader([]byte("not a riff file at all")))
	require.ErrorIs(t, err, ErrFormatMismatch)

	_, err = b.SoundPayloadFromWAV(0x0001, bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrKindMismatch)

	_, err = b.SoundPayloadFromWAV(0x0999, bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrUnknownResourceID)
}

func TestBitmapPayloadFromImageExactPalette(t *testing.T) {
	t.Parallel()

	b := mustParse(t, buildClassicBlob(classicBitmap(1, 2, 2, grayRamp(2), []byte{0, 1, 1, 0})))

	red := color.NRGBA{R: 0xFF, A: 0xFF}
	green := color.NRGBA{G: 0xFF, A: 0xFF}
	blue := color.NRGBA{B: 0xFF, A: 0xFF}

	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, red)
	img.Set(1, 0, green)
	img.Set(0, 1, blue)
	img.Set(1, 1, red)

	payload, err := b.BitmapPayloadFromImage(1, img)
	require.NoError(t, err)
	require.Len(t, payload, EmbeddedPaletteSize+4)

	next, _, err := b.Replace(1, payload, ReplaceOptions{})
	require.NoError(t, err)

	bm, err := next.DecodeBitmap(1)
	require.NoError(t, err)
	assert.Equal(t, []uint8{0, 1, 2, 0}, bm.Indices)
	assert.Equal(t, Color{R: 0xFF, A: 0xFF}, bm.Palette.Colors[0])
	assert.Equal(t, Color{G: 0xFF, A: 0xFF}, bm.Palette.Colors[1])
	assert.Equal(t, Color{B: 0xFF, A: 0xFF}, bm.Palette.Colors[2])
}

func TestBitmapPayloadFromImageSharedPalette(t *testing.T) {
	t.Parallel()

	b := mustParse(t, mixedIndexedBlob())

	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.NRGBA{R: 0x88, G: 0x88, B: 0x88, A: 0xFF})
		}
	}

	payload, err := b.BitmapPayloadFromImage(0x0002, img)
	require.NoError(t, err)

	next, _, err := b.Replace(0x0002, payload, ReplaceOptions{})
	require.NoError(t, err)

	bm, err := next.DecodeBitmap(0x0002)
	require.NoError(t, err)
	assert.Equal(t, []uint8{8, 8, 8, 8, 8, 8}, bm.Indices)

	pal, err := next.DecodePalette(0x0010)
	require.NoError(t, err)
	assert.Len(t, pal.Colors, 16, "shared palette is left untouched")
}

func TestBitmapPayloadFromImageScales(t *testing.T) {
	t.Parallel()

	b := mustParse(t, mixedIndexedBlob())

	img := image.NewGray(image.Rect(0, 0, 30, 20))
	payload, err := b.BitmapPayloadFromImage(0x0001, img)
	require.NoError(t, err)

	// 3x2 at 8bpp with 4-byte row alignment.
	assert.Len(t, payload, 8)

	_, err = b.BitmapPayloadFromImage(0x0020, img)
	require.ErrorIs(t, err, ErrKindMismatch)

	_, err = b.BitmapPayloadFromImage(0x0001, nil)
	require.ErrorIs(t, err, ErrFormatMismatch)
}

func TestToInt16(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int16(0), toInt16(128, 8))
	assert.Equal(t, int16(-32768), toInt16(0, 8))
	assert.Equal(t, int16(-5), toInt16(-5, 16))
	assert.Equal(t, int16(0x7FFF), toInt16(0x7FFFFF, 24))
	assert.Equal(t, int16(-1), toInt16(-1, 32))
}

func TestRemixChannels(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int16{15, -20}, remixChannels([]int16{10, 20, -10, -30}, 2, 1))
	assert.Equal(t, []int16{5, 5, -7, -7}, remixChannels([]int16{5, -7}, 1, 2))
	assert.Equal(t, []int16{1, 2}, remixChannels([]int16{1, 2}, 2, 2))
}

func TestResampleLinear(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int16{0, 200}, resampleLinear([]int16{0, 100, 200, 300}, 1, 4, 2))
	assert.Equal(t, []int16{0, 50, 100, 100}, resampleLinear([]int16{0, 100}, 1, 2, 4))
	assert.Equal(t, []int16{1, 2, 3, 4}, resampleLinear([]int16{1, 2, 3, 4}, 2, 8000, 8000))
}
