package implementation

import (
	"context"
	"errors"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// conflictFor explains a conditional update that matched no rows: either the
// row is gone or someone else bumped its version first.
func conflictFor(ctx context.Context, db *gorm.DB, table string, docType entity.DocumentType, id uuid.UUID, expected int64) error {
	var current struct{ Version int64 }
	err := db.WithContext(ctx).Table(table).Select("version").Where("id = ?", id).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return contract.ErrNotFound
	}
	if err != nil {
		return err
	}
	return &contract.ConflictError{
		DocumentType:    docType,
		DocumentId:      id,
		ExpectedVersion: expected,
		CurrentVersion:  current.Version,
	}
}

func applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}
