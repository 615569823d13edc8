package mapper

import (
	"encoding/json"

	"curate-pipeline/internal/entity"
	"curate-pipeline/internal/model"

	"gorm.io/datatypes"
)

type RunMapper struct{}

func NewRunMapper() *RunMapper {
	return &RunMapper{}
}

func (m *RunMapper) ToEntity(r *model.AgentRun) *entity.Run {
	if r == nil {
		return nil
	}

	var usage *entity.Usage
	if len(r.Usage) > 0 {
		var u entity.Usage
		if err := json.Unmarshal(r.Usage, &u); err == nil {
			usage = &u
		}
	}

	return &entity.Run{
		Id:          r.Id,
		Stage:       entity.StageName(r.Stage),
		TriggerId:   r.TriggerId,
		Attempt:     r.Attempt,
		Status:      entity.RunStatus(r.Status),
		Input:       []byte(r.Input),
		Output:      []byte(r.Output),
		Error:       r.Error,
		Usage:       usage,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

func (m *RunMapper) ToModel(r *entity.Run) *model.AgentRun {
	if r == nil {
		return nil
	}

	var usage datatypes.JSON
	if r.Usage != nil {
		raw, _ := json.Marshal(r.Usage)
		usage = datatypes.JSON(raw)
	}

	return &model.AgentRun{
		Id:          r.Id,
		Stage:       string(r.Stage),
		TriggerId:   r.TriggerId,
		Attempt:     r.Attempt,
		Status:      string(r.Status),
		Input:       jsonOrNil(r.Input),
		Output:      jsonOrNil(r.Output),
		Error:       r.Error,
		Usage:       usage,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

func (m *RunMapper) ToEntities(runs []*model.AgentRun) []*entity.Run {
	entities := make([]*entity.Run, len(runs))
	for i, r := range runs {
		entities[i] = m.ToEntity(r)
	}
	return entities
}

func jsonOrNil(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
