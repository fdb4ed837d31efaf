package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrExternalService  = errors.New("external service error")
	ErrNotFound         = errors.New("not found")
	ErrPartialIngestion = errors.New("partial ingestion failure")
)

// ExternalServiceError wraps a failed call to the LLM, an embedder or a vector index.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func NewExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

// PartialIngestionError reports the step at which an ingestion stopped and
// what had already been committed before it.
type PartialIngestionError struct {
	Document        string
	Step            string
	Vectorized      bool
	ImagesProcessed bool
	Err             error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("ingest %s: step %q failed (vectorized=%t, images_processed=%t): %v",
		e.Document, e.Step, e.Vectorized, e.ImagesProcessed, e.Err)
}

func (e *PartialIngestionError) Unwrap() error { return e.Err }

func (e *PartialIngestionError) Is(target error) bool { return target == ErrPartialIngestion }
