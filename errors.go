// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/drc

package drc

import "errors"

// Sentinel errors for DRC blob operations. Use errors.Is in callers.
var (
	// ErrMalformedHeader means the blob header has a bad magic, version, or layout field.
	ErrMalformedHeader = errors.New("malformed DRC blob header")
	// ErrTruncatedDirectory means the declared entry count exceeds the remaining bytes.
	ErrTruncatedDirectory = errors.New("truncated resource directory")
	// ErrCorruptEntry means a directory record describes an impossible resource.
	ErrCorruptEntry = errors.New("corrupt resource entry")
	// ErrDuplicateResourceID means two directory records share one resource id.
	ErrDuplicateResourceID = errors.New("duplicate resource id")
	// ErrOutOfBounds means a read or seek went past the end of the buffer.
	ErrOutOfBounds = errors.New("read out of bounds")
	// ErrTruncatedPayload means resource data is shorter than its format header requires.
	ErrTruncatedPayload = errors.New("truncated resource payload")
	// ErrMissingPalette means a bitmap references a palette id that is not a palette resource.
	ErrMissingPalette = errors.New("missing palette resource")
	// ErrUnsupportedAudioEncoding means the sound format header names an unknown encoding.
	ErrUnsupportedAudioEncoding = errors.New("unsupported audio encoding")
	// ErrUnknownResourceID means no directory record carries the requested id.
	ErrUnknownResourceID = errors.New("unknown resource id")
	// ErrPayloadTooLarge means a payload exceeds a format limit or the 4 GiB offset space.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrFormatMismatch means replacement data or format header does not fit the resource shape.
	ErrFormatMismatch = errors.New("resource format mismatch")
	// ErrKindMismatch means the operation does not apply to the resource kind.
	ErrKindMismatch = errors.New("resource kind does not match operation")
	// ErrInvalidSelectPattern means selection rules failed to compile.
	ErrInvalidSelectPattern = errors.New("invalid select pattern")
	// ErrIO means reading or writing the blob file failed.
	ErrIO = errors.New("blob file I/O failed")
	// ErrNilBlob means the blob snapshot is nil.
	ErrNilBlob = errors.New("blob is nil")
	// ErrInvalidPath means the blob file path is empty.
	ErrInvalidPath = errors.New("invalid blob path")
	// ErrLocked means another process holds the blob file lock.
	ErrLocked = errors.New("blob file is locked by another writer")
)
