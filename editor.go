// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Editor is a file-backed edit session over one blob.
// Mutations are serialized; readers take immutable snapshots at any time.
type Editor struct {
	current atomic.Pointer[Blob]
	log     zerolog.Logger
	path    string
	opts    EditOptions
	mu      sync.Mutex
	edits   int
}

// CommitResult describes one committed edit session.
type CommitResult struct {
	// Path is the rewritten blob file.
	Path string `json:"path" yaml:"path"`
	// BackupPath is kept backup of the previous file; empty when not kept.
	BackupPath string `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	// Edits is number of mutations written.
	Edits int `json:"edits" yaml:"edits"`
	// Length is written blob length excluding prefix and trailer.
	Length int `json:"length" yaml:"length"`
}

// OpenEditor loads blob file and starts an edit session.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, ErrInvalidPath
	}

	opts.applyDefaults()

	blob, err := OpenWithOptions(trimmedPath, OpenOptions{Offset: opts.Offset})
	if err != nil {
		return nil, err
	}

	e := &Editor{
		path: trimmedPath,
		opts: opts,
		log:  opts.Logger.With().Str("blob", trimmedPath).Logger(),
	}
	e.current.Store(blob)

	e.log.Debug().
		Str("layout", blob.Header().Layout.String()).
		Uint32("entries", blob.Header().Count).
		Int("length", blob.Len()).
		Msg("blob opened")

	return e, nil
}

// Path returns edited file path.
func (e *Editor) Path() string {
	if e == nil {
		return ""
	}

	return e.path
}

// Snapshot returns the current blob state. It stays valid after later edits.
func (e *Editor) Snapshot() *Blob {
	if e == nil {
		return nil
	}

	return e.current.Load()
}

// Dirty reports whether there are uncommitted edits.
func (e *Editor) Dirty() bool {
	if e == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.edits > 0
}

// Replace replaces resource payload and optionally its format header.
func (e *Editor) Replace(id uint16, payload []byte, format FormatHeader) (ReplaceResult, error) {
	if e == nil {
		return ReplaceResult{}, ErrNilBlob
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.replaceLocked(id, payload, format)
}

// ReplaceBitmapImage converts img to bitmap id payload and replaces it.
func (e *Editor) ReplaceBitmapImage(id uint16, img image.Image) (ReplaceResult, error) {
	if e == nil {
		return ReplaceResult{}, ErrNilBlob
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := e.current.Load().BitmapPayloadFromImage(id, img)
	if err != nil {
		return ReplaceResult{}, err
	}

	return e.replaceLocked(id, payload, nil)
}

// ReplaceSoundWAV converts WAV stream to sound id payload and replaces it.
func (e *Editor) ReplaceSoundWAV(id uint16, r io.ReadSeeker) (ReplaceResult, error) {
	if e == nil {
		return ReplaceResult{}, ErrNilBlob
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := e.current.Load().SoundPayloadFromWAV(id, r)
	if err != nil {
		return ReplaceResult{}, err
	}

	return e.replaceLocked(id, payload, nil)
}

// replaceLocked applies one replacement and publishes the new snapshot.
func (e *Editor) replaceLocked(id uint16, payload []byte, format FormatHeader) (ReplaceResult, error) {
	next, res, err := e.current.Load().Replace(id, payload, ReplaceOptions{
		Format:   format,
		ZeroFill: e.opts.ZeroFill,
	})
	if err != nil {
		e.log.Warn().Err(err).Uint16("id", id).Msg("replace rejected")
		return ReplaceResult{}, err
	}

	e.current.Store(next)
	e.edits++

	e.log.Debug().
		Uint16("id", id).
		Str("placement", string(res.Placement)).
		Uint32("old_offset", res.OldOffset).
		Uint32("new_offset", res.NewOffset).
		Uint32("old_size", res.OldSize).
		Uint32("new_size", res.NewSize).
		Msg("resource replaced")

	return res, nil
}

// Compact drops free space from the current snapshot.
func (e *Editor) Compact() error {
	if e == nil {
		return ErrNilBlob
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.current.Load()
	next, err := cur.Compact()
	if err != nil {
		return err
	}

	e.current.Store(next)
	e.edits++

	e.log.Debug().
		Int("old_length", cur.Len()).
		Int("new_length", next.Len()).
		Msg("blob compacted")

	return nil
}

// Commit writes the current snapshot over the file, keeping backups per BackupKeep.
// On failure the previous file is restored from backup.
func (e *Editor) Commit(ctx context.Context) (*CommitResult, error) {
	if e == nil {
		return nil, ErrNilBlob
	}

	if ctx == nil {
		ctx = context.Background()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock, err := lockFile(e.path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	mode, err := fileMode(e.path)
	if err != nil {
		return nil, err
	}

	blob := e.current.Load()
	backupPath := e.path + ".bak"
	if err := prepareBackupSlot(backupPath, e.opts.BackupKeep); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	if err := os.Rename(e.path, backupPath); err != nil {
		return nil, fmt.Errorf("%w: move blob to backup: %w", ErrIO, err)
	}

	if err := writeFileAtomic(blob, e.path, mode); err != nil {
		rollbackErr := rollbackFromBackup(e.path, backupPath)
		if rollbackErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %v)", err, rollbackErr)
		}

		e.log.Error().Err(err).Msg("commit failed, previous file restored")
		return nil, err
	}

	res := &CommitResult{
		Path:       e.path,
		BackupPath: backupPath,
		Edits:      e.edits,
		Length:     blob.Len(),
	}

	if e.opts.BackupKeep == 0 {
		if err := removeIfExists(backupPath); err != nil {
			return nil, fmt.Errorf("%w: remove backup: %w", ErrIO, err)
		}
		res.BackupPath = ""
	}

	e.edits = 0

	e.log.Info().
		Int("edits", res.Edits).
		Int("length", res.Length).
		Str("backup", res.BackupPath).
		Msg("blob committed")

	return res, nil
}

// prepareBackupSlot rotates/removes existing backup generations before new commit.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// rollbackFromBackup restores backup on failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
