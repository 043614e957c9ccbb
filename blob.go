// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"bytes"
	"fmt"
	"io"
)

// Blob is an immutable snapshot of a parsed DRC resource blob.
// Mutations return a new Blob; a snapshot is safe for concurrent readers.
type Blob struct {
	// registry indexes entries of this snapshot only.
	registry *Registry
	// prefix holds file bytes before the blob start offset.
	prefix []byte
	// data holds blob bytes from header to declared end.
	data []byte
	// trailer holds file bytes after the declared blob length.
	trailer []byte
	// entries are directory records in stored order.
	entries []ResourceEntry
	// header is parsed fixed header.
	header Header
}

// Header returns parsed header metadata.
func (b *Blob) Header() Header {
	if b == nil {
		return Header{}
	}

	return b.header
}

// Entries returns a copy of directory entries in stored order.
func (b *Blob) Entries() []ResourceEntry {
	if b == nil {
		return nil
	}

	entries := make([]ResourceEntry, len(b.entries))
	copy(entries, b.entries)
	return entries
}

// Registry returns the resource index of this snapshot.
func (b *Blob) Registry() *Registry {
	if b == nil {
		return nil
	}

	return b.registry
}

// Len returns blob length in bytes, excluding prefix and trailer.
func (b *Blob) Len() int {
	if b == nil {
		return 0
	}

	return len(b.data)
}

// Offset returns file position of the blob start.
func (b *Blob) Offset() int64 {
	if b == nil {
		return 0
	}

	return int64(len(b.prefix))
}

// Payload returns a copy of the resource payload bytes.
func (b *Blob) Payload(id uint16) ([]byte, error) {
	if b == nil {
		return nil, ErrNilBlob
	}

	e, err := b.registry.resolve(id)
	if err != nil {
		return nil, err
	}

	return bytes.Clone(b.payload(e)), nil
}

// payload returns the resource bytes aliasing the snapshot buffer.
func (b *Blob) payload(e ResourceEntry) []byte {
	return b.data[e.Offset:e.End():e.End()]
}

// Bytes returns full file content: prefix, blob, trailer.
func (b *Blob) Bytes() []byte {
	if b == nil {
		return nil
	}

	out := make([]byte, 0, len(b.prefix)+len(b.data)+len(b.trailer))
	out = append(out, b.prefix...)
	out = append(out, b.data...)
	out = append(out, b.trailer...)
	return out
}

// WriteTo writes full file content to w.
func (b *Blob) WriteTo(w io.Writer) (int64, error) {
	if b == nil {
		return 0, ErrNilBlob
	}

	var total int64
	for _, part := range [][]byte{b.prefix, b.data, b.trailer} {
		n, err := w.Write(part)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("write blob: %w", err)
		}
	}

	return total, nil
}
