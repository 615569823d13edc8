package specification

import (
	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActiveEdition selects the newest edition that is not yet published.
type ActiveEdition struct{}

func (s ActiveEdition) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status <> ?", string(entity.EditionStatusPublished)).Order("created_at DESC")
}

type ByTrigger struct {
	TriggerID uuid.UUID
}

func (s ByTrigger) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("trigger_id = ?", s.TriggerID)
}

// AtVersion matches a row only while it is still at the expected version.
type AtVersion struct {
	Version int64
}

func (s AtVersion) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("version = ?", s.Version)
}

type ByEdition struct {
	EditionID uuid.UUID
}

func (s ByEdition) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("edition_id = ?", s.EditionID)
}

type ItemStatusIn struct {
	Statuses []entity.ItemStatus
}

func (s ItemStatusIn) Apply(db *gorm.DB) *gorm.DB {
	statuses := make([]string, len(s.Statuses))
	for i, st := range s.Statuses {
		statuses[i] = string(st)
	}
	return db.Where("status IN ?", statuses)
}

type Unresolved struct{}

func (s Unresolved) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("resolved = ?", false)
}

// PublishPending selects editions carrying the publish marker that are not
// yet published.
type PublishPending struct{}

func (s PublishPending) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("publish_requested = ? AND status <> ?", true, string(entity.EditionStatusPublished))
}
