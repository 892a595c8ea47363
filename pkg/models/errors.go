package models

import (
	"errors"
	"fmt"
)

// ErrNoModelConfigured is returned when answer generation is requested with
// zero generative models configured. No network call is attempted.
var ErrNoModelConfigured = errors.New("no generative model configured")

// UngroundedError reports that grounding was required but retrieval produced
// no symbol matches and the caller did not opt into ungrounded fallback.
type UngroundedError struct {
	PackageName string
	Query       string
}

func (e *UngroundedError) Error() string {
	return fmt.Sprintf("no relevant symbols found for %s with query %q", e.PackageName, e.Query)
}

// IngestionError wraps the first unrecoverable step of a single package
// ingestion. One package's IngestionError never aborts a batch.
type IngestionError struct {
	PackageName string
	Step        string
	Err         error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %s: %s: %v", e.PackageName, e.Step, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }
