package implementation

import (
	"context"
	"errors"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/mapper"
	"curate-pipeline/internal/model"
	"curate-pipeline/internal/repository/contract"
	"curate-pipeline/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RunMapper
}

func NewRunRepository(db *gorm.DB) contract.RunRepository {
	return &RunRepositoryImpl{
		db:     db,
		mapper: mapper.NewRunMapper(),
	}
}

func (r *RunRepositoryImpl) findAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Run, error) {
	var models []*model.AgentRun
	query := r.db.WithContext(ctx)
	for _, spec := range specs {
		query = spec.Apply(query)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RunRepositoryImpl) Create(ctx context.Context, run *entity.Run) error {
	m := r.mapper.ToModel(run)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*run = *r.mapper.ToEntity(m)
	return nil
}

func (r *RunRepositoryImpl) Update(ctx context.Context, run *entity.Run) error {
	m := r.mapper.ToModel(run)
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *RunRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Run, error) {
	var m model.AgentRun
	query := specification.ByID{ID: id}.Apply(r.db.WithContext(ctx))
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *RunRepositoryImpl) FindByTrigger(ctx context.Context, triggerId uuid.UUID) ([]*entity.Run, error) {
	return r.findAll(ctx,
		specification.ByTrigger{TriggerID: triggerId},
		specification.OrderBy{Field: "started_at"},
		specification.OrderBy{Field: "attempt"},
	)
}

func (r *RunRepositoryImpl) FindRecent(ctx context.Context, limit int) ([]*entity.Run, error) {
	return r.findAll(ctx,
		specification.OrderBy{Field: "started_at", Desc: true},
		specification.Limit{N: limit},
	)
}
