// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// lockSuffix names the sibling lock file that guards Save.
const lockSuffix = ".lock"

// encodeHeader renders fixed header bytes for h.
func encodeHeader(h Header) []byte {
	if h.Layout == LayoutClassic {
		out := make([]byte, classicHeaderSize)
		binary.LittleEndian.PutUint32(out, h.Count)
		return out
	}

	out := make([]byte, indexedHeaderSize)
	copy(out[0:4], indexedMagic[:])
	binary.LittleEndian.PutUint16(out[4:6], h.Version)
	binary.LittleEndian.PutUint16(out[6:8], h.RowAlign)
	binary.LittleEndian.PutUint32(out[8:12], h.DirOffset)
	binary.LittleEndian.PutUint32(out[12:16], h.Count)
	binary.LittleEndian.PutUint32(out[16:20], h.Length)
	return out
}

// putRecord writes directory record of e into data at its directory slot.
func putRecord(data []byte, h Header, e ResourceEntry) {
	pos := uint64(h.DirOffset) + uint64(e.Index)*recordSize
	rec := data[pos : pos+recordSize]

	binary.LittleEndian.PutUint16(rec[0:2], e.Type)
	binary.LittleEndian.PutUint16(rec[2:4], e.ID)
	binary.LittleEndian.PutUint32(rec[4:8], e.Offset-h.offsetBase())
	binary.LittleEndian.PutUint32(rec[8:12], e.Size)
	copy(rec[12:recordSize], e.Aux[:])
}

// putLength updates declared length of an indexed header in place.
func putLength(data []byte, h Header) {
	if h.Layout != LayoutIndexed {
		return
	}

	binary.LittleEndian.PutUint32(data[16:20], h.Length)
}

// reparse builds a snapshot from staged blob bytes, keeping prefix and trailer of b.
func (b *Blob) reparse(data []byte) (*Blob, error) {
	file := make([]byte, 0, len(b.prefix)+len(data)+len(b.trailer))
	file = append(file, b.prefix...)
	file = append(file, data...)
	file = append(file, b.trailer...)

	staged, err := parseBlob(file, int64(len(b.prefix)))
	if err != nil {
		return nil, fmt.Errorf("staged blob rejected: %w", err)
	}

	return staged, nil
}

// Compact rewrites payloads back-to-back in directory order and drops all free space.
// Indexed blobs get the directory right after the header.
func (b *Blob) Compact() (*Blob, error) {
	if b == nil {
		return nil, ErrNilBlob
	}

	h := b.header
	h.DirOffset = h.headerSize()

	total := h.dirEnd()
	for _, e := range b.entries {
		total += uint64(e.Size)
	}
	if total >= maxBlobSize {
		return nil, fmt.Errorf("%w: compacted blob of %d bytes", ErrPayloadTooLarge, total)
	}
	h.Length = uint32(total) //nolint:gosec // checked above

	data := make([]byte, h.dirEnd(), total)
	copy(data, encodeHeader(h))

	for _, e := range b.entries {
		payload := b.payload(e)
		e.Offset = uint32(len(data)) //nolint:gosec // bounded by total
		data = append(data, payload...)
		putRecord(data, h, e)
	}

	return b.reparse(data)
}

// Save writes full blob file content to path atomically: temp file, fsync, rename.
// A sibling lock file refuses concurrent writers; failures wrap ErrIO.
func Save(b *Blob, path string) error {
	if b == nil {
		return ErrNilBlob
	}
	if path == "" {
		return ErrInvalidPath
	}

	unlock, err := lockFile(path)
	if err != nil {
		return err
	}
	defer unlock()

	mode, err := fileMode(path)
	if err != nil {
		return err
	}

	return writeFileAtomic(b, path, mode)
}

// lockFile takes the sibling lock of path without blocking.
// The lock file stays on disk so every writer locks the same inode.
func lockFile(path string) (func(), error) {
	lock := flock.New(path + lockSuffix)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: lock %s: %w", ErrIO, path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	return func() {
		_ = lock.Unlock()
	}, nil
}

// fileMode returns permission bits of path, or 0600 when it does not exist.
func fileMode(path string) (fs.FileMode, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0o600, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}

	return info.Mode().Perm(), nil
}

// writeFileAtomic writes blob into a uuid-suffixed sibling and renames it over path.
func writeFileAtomic(b *Blob, path string, mode fs.FileMode) error {
	tmpPath := filepath.Join(filepath.Dir(path),
		fmt.Sprintf(".%s.%s", filepath.Base(path), uuid.New().String()[:8]))

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, tmpPath, err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
		_ = removeIfExists(tmpPath)
	}()

	if _, err := b.WriteTo(f); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", ErrIO, tmpPath, err)
	}

	if err := f.Close(); err != nil {
		f = nil
		return fmt.Errorf("%w: close %s: %w", ErrIO, tmpPath, err)
	}
	f = nil

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: rename %s to %s: %w", ErrIO, tmpPath, path, err)
	}

	return nil
}
