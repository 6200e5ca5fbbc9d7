// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package model

import (
	"errors"
	"fmt"
)

// ParseError reports a single source file that is not syntactically
// valid for its declared language. The orchestrator skips the file,
// records the failure and continues; a malformed file never aborts a
// corpus run.
type ParseError struct {
	Path     string
	Language string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s (%s): %v", e.Path, e.Language, e.Err)
	}
	return fmt.Sprintf("parse %s (%s): invalid syntax", e.Path, e.Language)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmbeddingServiceError reports a failed embedding batch. The
// orchestrator treats it as retryable up to a bounded count; a batch
// that exhausts retries marks its chunks embedding-absent rather than
// failing the run.
type EmbeddingServiceError struct {
	Batch int
	Err   error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding batch %d: %v", e.Batch, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error { return e.Err }

// IngestionError is a whole-run failure: the corpus is unreachable or
// produced zero chunks. The previous snapshot stays current.
type IngestionError struct {
	Source string
	Reason string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s", e.Source, e.Reason)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// ErrIndexUnavailable is returned when the vector index cannot be
// reached. Retrieval fails closed instead of silently returning an
// empty result set.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// ErrNoSnapshot is returned when retrieval runs before any ingestion
// has committed a snapshot.
var ErrNoSnapshot = errors.New("no committed snapshot")
