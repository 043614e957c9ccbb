// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/png"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"golang.org/x/image/draw"
)

// wavFormatPCM is the RIFF WAVE format tag of integer PCM.
const wavFormatPCM = 1

// EncodePNG writes bitmap as paletted PNG.
func (bm *DecodedBitmap) EncodePNG(w io.Writer) error {
	if bm == nil {
		return ErrNilBlob
	}

	if err := png.Encode(w, bm.Image()); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	return nil
}

// EncodeWAV writes sound as 16-bit PCM WAV.
func (a *DecodedAudio) EncodeWAV(w io.WriteSeeker) error {
	if a == nil {
		return ErrNilBlob
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: a.Channels, SampleRate: a.SampleRate},
		Data:           make([]int, len(a.Samples)),
		SourceBitDepth: 16,
	}
	for i, s := range a.Samples {
		buf.Data[i] = int(s)
	}

	enc := wav.NewEncoder(w, a.SampleRate, 16, a.Channels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}

	return nil
}

// WriteText writes one "0xNN: #rrggbbaa" line per color.
func (p *DecodedPalette) WriteText(w io.Writer) error {
	if p == nil {
		return ErrNilBlob
	}

	for i, c := range p.Colors {
		if _, err := fmt.Fprintf(w, "0x%02x: #%02x%02x%02x%02x\n", i, c.R, c.G, c.B, c.A); err != nil {
			return fmt.Errorf("write palette: %w", err)
		}
	}

	return nil
}

// BitmapPayloadFromImage converts img into a payload for bitmap id.
// The image is scaled to the bitmap dimensions. Embedded palettes are
// rebuilt from the image colors when they fit the bit depth, otherwise the
// image is dithered. Bitmaps with a shared palette are dithered onto it.
func (b *Blob) BitmapPayloadFromImage(id uint16, img image.Image) ([]byte, error) {
	if b == nil {
		return nil, ErrNilBlob
	}
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrFormatMismatch)
	}

	e, err := b.registry.resolve(id)
	if err != nil {
		return nil, err
	}

	h, ok := e.Format.(BitmapHeader)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s resource, not a bitmap", ErrKindMismatch, e, e.Kind)
	}

	src := scaleImage(img, int(h.Width), int(h.Height))
	limit := 1 << h.BitsPerPixel

	var target color.Palette
	switch {
	case h.EmbeddedPalette:
		if exact, ok := exactPalette(src, limit); ok {
			target = exact
			break
		}

		target = palette.Plan9
		if limit < len(target) {
			cur, err := b.decodeEmbeddedPalette(e)
			if err != nil {
				return nil, err
			}
			target = cur.ColorPalette()[:limit]
		}
	default:
		shared, err := b.resolvePalette(e, h.PaletteID)
		if err != nil {
			return nil, err
		}

		target = shared.ColorPalette()
		if len(target) > limit {
			target = target[:limit]
		}
	}

	if len(target) == 0 {
		return nil, fmt.Errorf("%w: %s has an empty palette", ErrMissingPalette, e)
	}

	dst := image.NewPaletted(src.Bounds(), target)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), src, src.Bounds().Min)

	pal := &DecodedPalette{ID: e.ID, Embedded: h.EmbeddedPalette, Colors: make([]Color, len(target))}
	for i, c := range target {
		pal.Colors[i] = colorFrom(c)
	}

	payload, err := EncodeBitmap(h, b.header.RowAlign, pal, dst.Pix)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, e)
	}

	return payload, nil
}

// scaleImage returns img resized to w x h with Catmull-Rom resampling.
func scaleImage(img image.Image, w, h int) image.Image {
	if img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		return img
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// exactPalette collects distinct colors in scan order when at most limit exist.
func exactPalette(img image.Image, limit int) (color.Palette, bool) {
	seen := make(map[color.NRGBA]struct{}, limit)
	out := make(color.Palette, 0, limit)

	r := img.Bounds()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c, _ := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			if _, ok := seen[c]; ok {
				continue
			}
			if len(out) == limit {
				return nil, false
			}

			seen[c] = struct{}{}
			out = append(out, c)
		}
	}

	return out, true
}

// SoundPayloadFromWAV converts a WAV stream into a payload for sound id.
// Channels are mixed to the resource channel count, samples converted to
// its bit depth and linearly resampled to its sample rate.
func (b *Blob) SoundPayloadFromWAV(id uint16, r io.ReadSeeker) ([]byte, error) {
	if b == nil {
		return nil, ErrNilBlob
	}

	e, err := b.registry.resolve(id)
	if err != nil {
		return nil, err
	}

	h, ok := e.Format.(SoundHeader)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %s resource, not a sound", ErrKindMismatch, e, e.Kind)
	}
	if err := checkSoundHeader(h); err != nil {
		return nil, fmt.Errorf("%w: %s", err, e)
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrFormatMismatch)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedAudioEncoding, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decode wav: %w", ErrFormatMismatch, err)
	}

	channels := int(dec.NumChans)
	if channels == 0 || len(buf.Data)%channels != 0 {
		return nil, fmt.Errorf("%w: %d samples for %d channels", ErrTruncatedPayload, len(buf.Data), channels)
	}

	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = toInt16(v, int(dec.BitDepth))
	}

	samples = remixChannels(samples, channels, int(h.Channels))
	samples = resampleLinear(samples, int(h.Channels), int(dec.SampleRate), int(h.SampleRate))

	return EncodeAudio(h, samples)
}

// toInt16 scales one WAV sample of the given depth to signed 16-bit.
func toInt16(v int, depth int) int16 {
	switch {
	case depth <= 8:
		return int16((v - 128) << 8) //nolint:gosec // unsigned 8-bit WAV samples
	case depth <= 16:
		return int16(v) //nolint:gosec // already 16-bit
	default:
		return int16(v >> (depth - 16)) //nolint:gosec // keep high 16 bits
	}
}

// remixChannels averages source frames to mono and fans out to dst channels.
func remixChannels(samples []int16, src, dst int) []int16 {
	if src == dst {
		return samples
	}

	frames := len(samples) / src
	out := make([]int16, frames*dst)
	for f := 0; f < frames; f++ {
		var sum int
		for c := 0; c < src; c++ {
			sum += int(samples[f*src+c])
		}

		mono := int16(sum / src) //nolint:gosec // mean of int16 values
		for c := 0; c < dst; c++ {
			out[f*dst+c] = mono
		}
	}

	return out
}

// resampleLinear converts interleaved samples from one rate to another by linear interpolation.
func resampleLinear(samples []int16, channels, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}

	inFrames := len(samples) / channels
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	out := make([]int16, outFrames*channels)

	step := float64(from) / float64(to)
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * step
		i := int(pos)
		frac := pos - float64(i)
		j := min(i+1, inFrames-1)

		for c := 0; c < channels; c++ {
			a := float64(samples[i*channels+c])
			b := float64(samples[j*channels+c])
			out[f*channels+c] = int16(a + (b-a)*frac)
		}
	}

	return out
}
