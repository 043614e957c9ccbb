// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

/*
Package drc provides parse, decode, replace, extract, and save operations for
DRC resource blobs: a header, a directory of fixed-size records, and a data
region holding bitmaps, palettes, sounds, and other resources.

Two header layouts are detected automatically:
  - classic: entry count, records, payloads addressed relative to directory end;
  - indexed: "DRCB" magic, version, row alignment, directory offset, count,
    and declared length, payloads addressed from blob start.

A parsed Blob is an immutable snapshot. Every mutation returns a new Blob,
so decoders may run in parallel on one snapshot while an editor prepares
the next one.

# Reading

Open a blob and list or decode resources:

	b, err := drc.Open("drc_resources.bin")
	if err != nil {
	    return err
	}
	for _, e := range b.Entries() {
	    fmt.Println(e.ID, e.Kind, e.Size)
	}
	bm, err := b.DecodeBitmap(0x0001)
	if err != nil {
	    return err
	}
	_ = bm.Image()

When the blob is embedded in a larger file, pass its start offset:

	b, err := drc.OpenWithOptions("firmware.bin", drc.OpenOptions{Offset: 0x1000})

Bitmaps resolve their palette through the registry of the same snapshot,
never through cached offsets:

	pal, err := b.DecodePalette(0x0001) // embedded or referenced palette
	snd, err := b.DecodeAudio(0x0002)

# Replacing

Replace returns a new snapshot and where the payload went:

	next, res, err := b.Replace(0x0002, pcm, drc.ReplaceOptions{})
	if err != nil {
	    return err // b is unchanged
	}
	_ = res.Placement // in_place, free_range, or append
	if err := drc.Save(next, "drc_resources.bin"); err != nil {
	    return err
	}

A smaller payload is written in place and leaves free space behind. A larger
one moves to the first free range that holds it or is appended to the blob.
Compact removes all free space by rewriting payloads back-to-back.

# Editing files

Editor keeps the current snapshot, converts PNG and WAV input, and commits
with backup rotation:

	editor, err := drc.OpenEditor("drc_resources.bin", drc.EditOptions{BackupKeep: 1})
	if err != nil {
	    return err
	}
	if _, err := editor.ReplaceBitmapImage(0x0001, img); err != nil {
	    return err
	}
	if _, err := editor.Commit(ctx); err != nil {
	    return err
	}

# Extracting

Extract converted resources with github.com/woozymasta/pathrules selection:

	err := b.Extract(ctx, "out/", drc.ExtractOptions{
	    Select: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "bitmap/*"},
	    },
	    MaxWorkers: 4,
	})
*/
package drc
