// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
)

// Registry is a read-only index over the entries of one Blob snapshot.
// A mutation produces a new snapshot with a new Registry.
type Registry struct {
	byID     map[uint16]int
	entries  []ResourceEntry
	byOffset []int
	byKind   [KindOther + 1][]int
}

// newRegistry indexes entries and rejects duplicate ids.
func newRegistry(entries []ResourceEntry) (*Registry, error) {
	r := &Registry{
		entries:  entries,
		byID:     make(map[uint16]int, len(entries)),
		byOffset: make([]int, 0, len(entries)),
	}

	for i := range entries {
		e := entries[i]
		if prev, exists := r.byID[e.ID]; exists {
			return nil, fmt.Errorf("%w: id 0x%04x used by entries %d and %d",
				ErrDuplicateResourceID, e.ID, entries[prev].Index, e.Index)
		}

		r.byID[e.ID] = i
		r.byKind[e.Kind] = append(r.byKind[e.Kind], i)
		if e.Size > 0 {
			r.byOffset = append(r.byOffset, i)
		}
	}

	slices.SortFunc(r.byOffset, func(a, b int) int {
		return cmp.Compare(entries[a].Offset, entries[b].Offset)
	})

	return r, nil
}

// Len returns number of indexed entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}

	return len(r.entries)
}

// Lookup returns entry by resource id.
func (r *Registry) Lookup(id uint16) (ResourceEntry, bool) {
	if r == nil {
		return ResourceEntry{}, false
	}

	idx, ok := r.byID[id]
	if !ok {
		return ResourceEntry{}, false
	}

	return r.entries[idx], true
}

// LookupOffset returns the entry whose payload contains blob offset off.
func (r *Registry) LookupOffset(off uint32) (ResourceEntry, bool) {
	if r == nil {
		return ResourceEntry{}, false
	}

	// first entry starting after off; the candidate is the one before it
	n := sort.Search(len(r.byOffset), func(i int) bool {
		return r.entries[r.byOffset[i]].Offset > off
	})
	if n == 0 {
		return ResourceEntry{}, false
	}

	e := r.entries[r.byOffset[n-1]]
	if uint64(off) >= e.End() {
		return ResourceEntry{}, false
	}

	return e, true
}

// ByKind returns entries of one kind in directory order.
func (r *Registry) ByKind(kind Kind) []ResourceEntry {
	if r == nil || kind > KindOther {
		return nil
	}

	idx := r.byKind[kind]
	out := make([]ResourceEntry, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.entries[i])
	}

	return out
}

// Entries returns a copy of all entries in directory order.
func (r *Registry) Entries() []ResourceEntry {
	if r == nil {
		return nil
	}

	return slices.Clone(r.entries)
}

// resolve returns entry by id or ErrUnknownResourceID.
func (r *Registry) resolve(id uint16) (ResourceEntry, error) {
	e, ok := r.Lookup(id)
	if !ok {
		return ResourceEntry{}, fmt.Errorf("%w: 0x%04x", ErrUnknownResourceID, id)
	}

	return e, nil
}
