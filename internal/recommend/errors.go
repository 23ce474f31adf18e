// Pourcast - Alcohol Catalog Recommendations
// Copyright 2026 Pourcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pourcast/pourcast

package recommend

import "errors"

var (
	// ErrFitInProgress is returned when a fit is requested for a model
	// that is already being fitted.
	ErrFitInProgress = errors.New("model fit already in progress")

	// ErrUnknownModel is returned for a ModelType this package does not know.
	ErrUnknownModel = errors.New("unknown model type")

	// ErrSnapshotNotFound is returned by SnapshotStore implementations
	// when no snapshot exists for the requested tag.
	ErrSnapshotNotFound = errors.New("model snapshot not found")

	// ErrChecksumMismatch is returned when a snapshot payload fails
	// integrity verification.
	ErrChecksumMismatch = errors.New("model snapshot checksum mismatch")

	// ErrSchemaVersion is returned when a snapshot was written with an
	// incompatible serialization schema.
	ErrSchemaVersion = errors.New("unsupported model snapshot schema version")
)
