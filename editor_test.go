package drc

import (
	"bytes"
	"context"
	"os"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorCommitWithoutBackup(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	ed, err := OpenEditor(path, EditOptions{})
	require.NoError(t, err)
	assert.Equal(t, path, ed.Path())
	assert.False(t, ed.Dirty())

	res, err := ed.Replace(0x0030, bytes.Repeat([]byte{1}, 40), nil)
	require.NoError(t, err)
	assert.Equal(t, PlacementAppend, res.Placement)
	assert.True(t, ed.Dirty())

	commit, err := ed.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, commit.Path)
	assert.Empty(t, commit.BackupPath)
	assert.Equal(t, 1, commit.Edits)
	assert.Equal(t, ed.Snapshot().Len(), commit.Length)
	assert.False(t, ed.Dirty())

	_, err = os.Stat(path + ".bak")
	assert.ErrorIs(t, err, os.ErrNotExist)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ed.Snapshot().Bytes(), data)
}

func TestEditorCommitRotatesBackups(t *testing.T) {
	t.Parallel()

	original := mixedIndexedBlob()
	path := writeTempBlob(t, original)
	ed, err := OpenEditor(path, EditOptions{BackupKeep: 2})
	require.NoError(t, err)

	_, err = ed.Replace(0x0030, bytes.Repeat([]byte{1}, 16), nil)
	require.NoError(t, err)
	first, err := ed.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path+".bak", first.BackupPath)
	firstBytes := ed.Snapshot().Bytes()

	_, err = ed.Replace(0x0030, bytes.Repeat([]byte{2}, 16), nil)
	require.NoError(t, err)
	_, err = ed.Commit(context.Background())
	require.NoError(t, err)

	bak, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, firstBytes, bak)

	bak1, err := os.ReadFile(path + ".bak.1")
	require.NoError(t, err)
	assert.Equal(t, original, bak1)
}

func TestEditorSnapshotsStayValid(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	ed, err := OpenEditor(path, EditOptions{ZeroFill: true})
	require.NoError(t, err)

	before := ed.Snapshot()
	beforeBytes := before.Bytes()

	_, err = ed.Replace(0x0020, make([]byte, 2), nil)
	require.NoError(t, err)
	_, err = ed.Replace(0x0010, bytes.Repeat([]byte{0x10}, 96), PaletteHeader{Colors: 32, RecordFormat: PaletteRGB24})
	require.NoError(t, err)

	assert.Equal(t, beforeBytes, before.Bytes())

	a, err := before.DecodeAudio(0x0020)
	require.NoError(t, err)
	assert.Len(t, a.Samples, 3)

	after, err := ed.Snapshot().DecodeAudio(0x0020)
	require.NoError(t, err)
	assert.Equal(t, []int16{0}, after.Samples)
}

func TestEditorConcurrentReaders(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	ed, err := OpenEditor(path, EditOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for range 8 {
		wg.Go(func() {
			for range 50 {
				snap := ed.Snapshot()
				if _, err := snap.DecodeBitmap(0x0001); err != nil {
					errs <- err
					return
				}
				if _, err := snap.DecodeAudio(0x0020); err != nil {
					errs <- err
					return
				}
			}
		})
	}

	for i := range 20 {
		_, err := ed.Replace(0x0030, bytes.Repeat([]byte{byte(i)}, 16+i), nil)
		require.NoError(t, err)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestEditorRejectedReplaceKeepsState(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := zerolog.New(&logs)

	path := writeTempBlob(t, mixedIndexedBlob())
	ed, err := OpenEditor(path, EditOptions{Logger: &logger})
	require.NoError(t, err)

	before := ed.Snapshot()
	_, err = ed.Replace(0x0001, make([]byte, 3), nil)
	require.ErrorIs(t, err, ErrTruncatedPayload)
	assert.Same(t, before, ed.Snapshot())
	assert.False(t, ed.Dirty())
	assert.Contains(t, logs.String(), "replace rejected")

	_, err = ed.Replace(0x0030, []byte{1}, nil)
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "resource replaced")
	assert.Contains(t, logs.String(), path)
}

func TestEditorCompact(t *testing.T) {
	t.Parallel()

	second := rawResource(2, 10, 2)
	second.gap = 30
	path := writeTempBlob(t, buildIndexedBlob(1, rawResource(1, 10, 1), second))

	ed, err := OpenEditor(path, EditOptions{})
	require.NoError(t, err)
	require.NoError(t, ed.Compact())
	assert.True(t, ed.Dirty())

	_, err = ed.Commit(context.Background())
	require.NoError(t, err)

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.FreeSpace().Len())
	assert.Equal(t, indexedHeaderSize+2*recordSize+20, reopened.Len())
}

func TestEditorCommitLockedLeavesFile(t *testing.T) {
	t.Parallel()

	original := mixedIndexedBlob()
	path := writeTempBlob(t, original)
	ed, err := OpenEditor(path, EditOptions{BackupKeep: 1})
	require.NoError(t, err)
	_, err = ed.Replace(0x0030, []byte{9}, nil)
	require.NoError(t, err)

	lock := flock.New(path + lockSuffix)
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	_, err = ed.Commit(context.Background())
	require.ErrorIs(t, err, ErrLocked)
	assert.True(t, ed.Dirty())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)

	require.NoError(t, lock.Unlock())
	_, err = ed.Commit(context.Background())
	require.NoError(t, err)
}

func TestEditorCommitCanceled(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	ed, err := OpenEditor(path, EditOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ed.Commit(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenEditorErrors(t *testing.T) {
	t.Parallel()

	_, err := OpenEditor("  ", EditOptions{})
	require.ErrorIs(t, err, ErrInvalidPath)

	_, err = OpenEditor(writeTempBlob(t, []byte{1, 0}), EditOptions{})
	require.ErrorIs(t, err, ErrMalformedHeader)

	var ed *Editor
	assert.Empty(t, ed.Path())
	assert.Nil(t, ed.Snapshot())
	assert.False(t, ed.Dirty())
	require.ErrorIs(t, ed.Compact(), ErrNilBlob)
}
