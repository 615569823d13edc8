package service

import (
	"context"

	"curate-pipeline/internal/dto"
	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
)

type RunLister interface {
	ListByTrigger(ctx context.Context, triggerId uuid.UUID) ([]*entity.Run, error)
	Recent(ctx context.Context, limit int) ([]*entity.Run, error)
}

type IRunService interface {
	ByTrigger(ctx context.Context, triggerId uuid.UUID) ([]*dto.RunResponse, error)
	Recent(ctx context.Context, limit int) ([]*dto.RunResponse, error)
}

type runService struct {
	runs RunLister
}

func NewRunService(runs RunLister) IRunService {
	return &runService{runs: runs}
}

func (s *runService) ByTrigger(ctx context.Context, triggerId uuid.UUID) ([]*dto.RunResponse, error) {
	runs, err := s.runs.ListByTrigger(ctx, triggerId)
	if err != nil {
		return nil, err
	}
	return toRunResponses(runs), nil
}

func (s *runService) Recent(ctx context.Context, limit int) ([]*dto.RunResponse, error) {
	runs, err := s.runs.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toRunResponses(runs), nil
}

func toRunResponses(runs []*entity.Run) []*dto.RunResponse {
	result := make([]*dto.RunResponse, 0, len(runs))
	for _, run := range runs {
		result = append(result, dto.ToRunResponse(run))
	}
	return result
}
