package implementation

import (
	"context"
	"time"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/mapper"
	"curate-pipeline/internal/model"
	"curate-pipeline/internal/repository/contract"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChangeRecordRepositoryImpl struct {
	db *gorm.DB
}

func NewChangeRecordRepository(db *gorm.DB) contract.ChangeRecordRepository {
	return &ChangeRecordRepositoryImpl{db: db}
}

// changeFeedLockKey is the advisory lock every document write takes before
// appending change records.
const changeFeedLockKey int64 = 0x63757261746531

// Lock serialises writers until the surrounding transaction ends. Positions
// come from a sequence, so without it a transaction that took a lower
// position could commit after the reader has moved past it.
func (r *ChangeRecordRepositoryImpl) Lock(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", changeFeedLockKey).Error
}

func (r *ChangeRecordRepositoryImpl) Append(ctx context.Context, record *model.ChangeRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *ChangeRecordRepositoryImpl) Tail(ctx context.Context, after int64, limit int) ([]entity.ChangeRecord, error) {
	builder := sq.
		Select("position", "document_type", "document_id", "payload", "created_at").
		From(model.ChangeRecord{}.TableName()).
		Where(sq.Gt{"position": after}).
		OrderBy("position ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []*model.ChangeRecord
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]entity.ChangeRecord, len(rows))
	for i, row := range rows {
		records[i] = mapper.ChangeRecordToEntity(row)
	}
	return records, nil
}

type CheckpointRepositoryImpl struct {
	db *gorm.DB
}

func NewCheckpointRepository(db *gorm.DB) contract.CheckpointRepository {
	return &CheckpointRepositoryImpl{db: db}
}

func (r *CheckpointRepositoryImpl) Load(ctx context.Context, feed string) (int64, error) {
	var checkpoints []model.FeedCheckpoint
	if err := r.db.WithContext(ctx).Where("feed = ?", feed).Limit(1).Find(&checkpoints).Error; err != nil {
		return 0, err
	}
	if len(checkpoints) == 0 {
		return 0, nil
	}
	return checkpoints[0].Position, nil
}

// Advance upserts the checkpoint, keeping the greater of the stored and new
// positions.
func (r *CheckpointRepositoryImpl) Advance(ctx context.Context, feed string, position int64) error {
	checkpoint := model.FeedCheckpoint{Feed: feed, Position: position, UpdatedAt: time.Now()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "feed"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"position":   gorm.Expr("GREATEST(feed_checkpoints.position, EXCLUDED.position)"),
			"updated_at": checkpoint.UpdatedAt,
		}),
	}).Create(&checkpoint).Error
}
