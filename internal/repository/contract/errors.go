package contract

import (
	"errors"
	"fmt"

	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
)

var (
	ErrVersionConflict = errors.New("version conflict")
	ErrNotFound        = errors.New("document not found")
)

// ConflictError reports which document failed its version check.
type ConflictError struct {
	DocumentType    entity.DocumentType
	DocumentId      uuid.UUID
	ExpectedVersion int64
	CurrentVersion  int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: version conflict (expected %d, current %d)",
		e.DocumentType, e.DocumentId, e.ExpectedVersion, e.CurrentVersion)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrVersionConflict
}
