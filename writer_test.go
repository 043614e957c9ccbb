package drc

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	b, err := Open(path)
	require.NoError(t, err)

	next, _, err := b.Replace(0x0030, bytes.Repeat([]byte{0x77}, 64), ReplaceOptions{})
	require.NoError(t, err)
	require.NoError(t, Save(next, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, next.Bytes(), data)

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, next.Entries(), reopened.Entries())

	payload, err := reopened.Payload(0x0030)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x77}, 64), payload)

	items, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name())
	}
	assert.ElementsMatch(t, []string{filepath.Base(path), filepath.Base(path) + lockSuffix}, names)
}

func TestSaveKeepsLockFileInPlace(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	b, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, Save(b, path))

	before, err := os.Stat(path + lockSuffix)
	require.NoError(t, err)

	require.NoError(t, Save(b, path))
	after, err := os.Stat(path + lockSuffix)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "writers must share one lock inode")

	lock := flock.New(path + lockSuffix)
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = lock.Unlock() })

	require.ErrorIs(t, Save(b, path), ErrLocked)
}

func TestSaveUnchangedIsByteIdentical(t *testing.T) {
	t.Parallel()

	file := append(append([]byte("HDR"), buildClassicBlob(rawResource(1, 5, 1))...), []byte("tail")...)
	path := writeTempBlob(t, file)

	b, err := OpenWithOptions(path, OpenOptions{Offset: 3})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "copy.bin")
	require.NoError(t, Save(b, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, file, data)
}

func TestSaveKeepsFileMode(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	require.NoError(t, os.Chmod(path, 0o640))

	b, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, Save(b, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestSaveRefusesLockedFile(t *testing.T) {
	t.Parallel()

	path := writeTempBlob(t, mixedIndexedBlob())
	b, err := Open(path)
	require.NoError(t, err)

	lock := flock.New(path + lockSuffix)
	locked, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	t.Cleanup(func() { _ = lock.Unlock() })

	require.ErrorIs(t, Save(b, path), ErrLocked)
}

func TestSaveErrors(t *testing.T) {
	t.Parallel()

	b := mustParse(t, mixedIndexedBlob())

	require.ErrorIs(t, Save(nil, "x.bin"), ErrNilBlob)
	require.ErrorIs(t, Save(b, ""), ErrInvalidPath)

	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "blob.bin")
	require.ErrorIs(t, Save(b, missing), ErrIO)
}

func TestCompactDropsFreeSpace(t *testing.T) {
	t.Parallel()

	b := gappedRaw(t)
	c, err := b.Compact()
	require.NoError(t, err)

	assert.Equal(t, 0, c.FreeSpace().Len())
	assert.Equal(t, 92+300, c.Len())
	assert.Equal(t, uint32(92+300), c.Header().Length)

	for _, e := range b.Entries() {
		want, err := b.Payload(e.ID)
		require.NoError(t, err)
		got, err := c.Payload(e.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got, "payload of 0x%04x", e.ID)
	}

	assert.Equal(t, 800, b.Len()-c.Len())
}

func TestCompactAfterRelocation(t *testing.T) {
	t.Parallel()

	b := mustParse(t, mixedIndexedBlob())
	grown, _, err := b.Replace(0x0010, bytes.Repeat([]byte{0x80}, 96), ReplaceOptions{
		Format: PaletteHeader{Colors: 32, RecordFormat: PaletteRGB24},
	})
	require.NoError(t, err)
	require.Equal(t, 1, grown.FreeSpace().Len())

	c, err := grown.Compact()
	require.NoError(t, err)
	assert.Equal(t, grown.Len()-48, c.Len())

	bm, err := c.DecodeBitmap(0x0001)
	require.NoError(t, err)
	assert.Equal(t, 32, bm.Palette.Len())

	reparsed := mustParse(t, c.Bytes())
	assert.Equal(t, c.Entries(), reparsed.Entries())
}

func TestCompactClassicKeepsPrefix(t *testing.T) {
	t.Parallel()

	second := rawResource(2, 4, 0x02)
	second.gap = 12
	file := append(append([]byte{0xAA, 0xBB}, buildClassicBlob(rawResource(1, 4, 0x01), second)...), 0xDD)

	b, err := ParseWithOptions(file, OpenOptions{Offset: 2})
	require.NoError(t, err)

	c, err := b.Compact()
	require.NoError(t, err)

	out := c.Bytes()
	assert.Equal(t, []byte{0xAA, 0xBB}, out[:2])
	// classic blobs run to end of file, so the trailing byte is free space too.
	assert.Equal(t, len(file)-13, len(out))

	payload, err := c.Payload(2)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x02}, 4), payload)
}
