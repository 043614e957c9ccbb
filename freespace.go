// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"cmp"
	"slices"

	"github.com/tidwall/btree"
)

// FreeRange is a byte range inside the blob that no header, directory, or payload claims.
type FreeRange struct {
	Offset uint32 `json:"offset" yaml:"offset"`
	Size   uint32 `json:"size" yaml:"size"`
}

// End returns first byte after the range.
func (r FreeRange) End() uint64 {
	return uint64(r.Offset) + uint64(r.Size)
}

// FreeSpaceMap is an ordered set of free ranges of one snapshot.
// It is derived from the directory and never stored in the blob.
type FreeSpaceMap struct {
	tree  *btree.BTreeG[FreeRange]
	total uint64
}

// span is one claimed byte range.
type span struct {
	start, end uint64
}

// newFreeSpaceMap returns gaps of [0, length) not covered by claimed spans.
func newFreeSpaceMap(claimed []span, length uint64) *FreeSpaceMap {
	m := &FreeSpaceMap{
		tree: btree.NewBTreeGOptions(func(a, b FreeRange) bool {
			return a.Offset < b.Offset
		}, btree.Options{NoLocks: true}),
	}

	slices.SortFunc(claimed, func(a, b span) int {
		return cmp.Compare(a.start, b.start)
	})

	var pos uint64
	for _, s := range claimed {
		if s.start > pos {
			m.add(pos, min(s.start, length))
		}
		pos = max(pos, s.end)
	}

	if pos < length {
		m.add(pos, length)
	}

	return m
}

// add records [start, end) when non-empty.
func (m *FreeSpaceMap) add(start, end uint64) {
	if end <= start {
		return
	}

	m.tree.Set(FreeRange{Offset: uint32(start), Size: uint32(end - start)}) //nolint:gosec // blob bounded by 4 GiB
	m.total += end - start
}

// Len returns number of free ranges.
func (m *FreeSpaceMap) Len() int {
	if m == nil {
		return 0
	}

	return m.tree.Len()
}

// Total returns sum of free bytes.
func (m *FreeSpaceMap) Total() uint64 {
	if m == nil {
		return 0
	}

	return m.total
}

// Ranges returns free ranges by ascending offset.
func (m *FreeSpaceMap) Ranges() []FreeRange {
	if m == nil {
		return nil
	}

	return m.tree.Items()
}

// FirstFit returns the lowest-offset range of at least size bytes.
func (m *FreeSpaceMap) FirstFit(size uint32) (FreeRange, bool) {
	if m == nil {
		return FreeRange{}, false
	}

	var found FreeRange
	var ok bool
	m.tree.Scan(func(r FreeRange) bool {
		if r.Size >= size {
			found, ok = r, true
			return false
		}

		return true
	})

	return found, ok
}

// FreeSpace returns free ranges of the blob: bytes between header,
// directory, and payloads. Bytes released by Replace show up here.
func (b *Blob) FreeSpace() *FreeSpaceMap {
	if b == nil {
		return nil
	}

	claimed := make([]span, 0, len(b.entries)+2)
	claimed = append(claimed,
		span{start: 0, end: uint64(b.header.headerSize())},
		span{start: uint64(b.header.DirOffset), end: b.header.dirEnd()},
	)

	for _, e := range b.entries {
		if e.Size == 0 {
			continue
		}

		claimed = append(claimed, span{start: uint64(e.Offset), end: e.End()})
	}

	return newFreeSpaceMap(claimed, uint64(len(b.data)))
}
