// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"fmt"
	"time"
)

// DecodedAudio is PCM sound widened to signed 16-bit samples.
type DecodedAudio struct {
	// Samples are interleaved frames; 8-bit sources are scaled to 16-bit range.
	Samples []int16 `json:"-" yaml:"-"`
	// SampleRate is frames per second.
	SampleRate int `json:"sample_rate" yaml:"sample_rate"`
	// Channels is interleaved channel count.
	Channels int `json:"channels" yaml:"channels"`
	// BitsPerSample is stored sample width: 8 or 16.
	BitsPerSample int `json:"bits_per_sample" yaml:"bits_per_sample"`
	// ID is sound resource id.
	ID uint16 `json:"id" yaml:"id"`
}

// Frames returns number of sample frames.
func (a *DecodedAudio) Frames() int {
	if a == nil || a.Channels == 0 {
		return 0
	}

	return len(a.Samples) / a.Channels
}

// Duration returns playback length.
func (a *DecodedAudio) Duration() time.Duration {
	if a == nil || a.SampleRate == 0 {
		return 0
	}

	return time.Duration(a.Frames()) * time.Second / time.Duration(a.SampleRate)
}

// DecodeAudio decodes a PCM sound resource.
func (b *Blob) DecodeAudio(id uint16) (*DecodedAudio, error) {
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

	payload := b.payload(e)
	sampleBytes := int(h.BitsPerSample / 8)
	frame := sampleBytes * int(h.Channels)
	if len(payload)%frame != 0 {
		return nil, fmt.Errorf("%w: %s has %d bytes, not a multiple of %d-byte frame",
			ErrTruncatedPayload, e, len(payload), frame)
	}

	a := &DecodedAudio{
		ID:            e.ID,
		SampleRate:    int(h.SampleRate),
		Channels:      int(h.Channels),
		BitsPerSample: int(h.BitsPerSample),
		Samples:       make([]int16, len(payload)/sampleBytes),
	}

	c := newCursor(payload)
	for i := range a.Samples {
		if sampleBytes == 1 {
			v, err := c.U8()
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrTruncatedPayload, e, err)
			}
			a.Samples[i] = int16(int(v)-128) << 8 //nolint:gosec // range -128..127

			continue
		}

		v, err := c.U16()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTruncatedPayload, e, err)
		}
		a.Samples[i] = int16(v) //nolint:gosec // two's complement reinterpretation
	}

	return a, nil
}

// EncodeAudio renders interleaved 16-bit samples as PCM payload for header h.
// 8-bit targets keep the high byte of every sample.
func EncodeAudio(h SoundHeader, samples []int16) ([]byte, error) {
	if err := checkSoundHeader(h); err != nil {
		return nil, err
	}

	if len(samples)%int(h.Channels) != 0 {
		return nil, fmt.Errorf("%w: %d samples for %d channels", ErrFormatMismatch, len(samples), h.Channels)
	}

	sampleBytes := int(h.BitsPerSample / 8)
	size := uint64(len(samples)) * uint64(sampleBytes)
	if size >= maxBlobSize {
		return nil, fmt.Errorf("%w: sound payload of %d bytes", ErrPayloadTooLarge, size)
	}

	out := make([]byte, 0, size)
	for _, s := range samples {
		if sampleBytes == 1 {
			out = append(out, uint8((s>>8)+128)) //nolint:gosec // shifted into 0..255

			continue
		}

		out = append(out, byte(s), byte(uint16(s)>>8)) //nolint:gosec // little-endian split
	}

	return out, nil
}

// checkSoundHeader rejects headers the PCM codec cannot handle.
func checkSoundHeader(h SoundHeader) error {
	if h.Encoding != AudioEncodingPCM {
		return fmt.Errorf("%w: encoding %d", ErrUnsupportedAudioEncoding, h.Encoding)
	}
	if h.BitsPerSample != 8 && h.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d-bit PCM", ErrUnsupportedAudioEncoding, h.BitsPerSample)
	}
	if h.Channels == 0 || h.Channels > 0xFF {
		return fmt.Errorf("%w: %d channels", ErrCorruptEntry, h.Channels)
	}
	if h.SampleRate == 0 {
		return fmt.Errorf("%w: zero sample rate", ErrCorruptEntry)
	}

	return nil
}
