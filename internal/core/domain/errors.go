package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrPlanNotFound     = errors.New("plan not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyText        = errors.New("document has no extractable text")
	ErrAlreadyProcessed = errors.New("document already processed")
	ErrProvider         = errors.New("embedding provider failure")
	ErrTemporary        = errors.New("temporary failure")

	// ErrIngestionInProgress means another run holds the document's ingestion claim.
	ErrIngestionInProgress = errors.New("document ingestion already in progress")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
