// Recsync - Event-Driven Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsync

package store

import "errors"

var (
	// ErrNotFound is returned when the aggregate does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by Create when the item already exists.
	ErrConflict = errors.New("already exists")

	// ErrVersionConflict is returned when a concurrent writer changed the
	// aggregate between read and save.
	ErrVersionConflict = errors.New("version conflict")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store closed")
)
