package dto

import (
	"encoding/json"
	"time"

	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
)

type SubmitItemRequest struct {
	URL       string     `json:"url" validate:"required,url"`
	EditionId *uuid.UUID `json:"edition_id"`
}

type ItemResponse struct {
	Id        uuid.UUID       `json:"id"`
	URL       string          `json:"url"`
	Title     *string         `json:"title,omitempty"`
	Status    string          `json:"status"`
	EditionId *uuid.UUID      `json:"edition_id,omitempty"`
	Review    json.RawMessage `json:"review,omitempty"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt *time.Time      `json:"updated_at"`
}

type EditionResponse struct {
	Id               uuid.UUID      `json:"id"`
	Status           string         `json:"status"`
	PipelineStatus   string         `json:"pipeline_status"`
	PublishRequested bool           `json:"publish_requested"`
	Content          map[string]any `json:"content"`
	ItemIds          []uuid.UUID    `json:"item_ids"`
	Version          int64          `json:"version"`
	CreatedAt        time.Time      `json:"created_at"`
	PublishedAt      *time.Time     `json:"published_at,omitempty"`
}

type SubmitFeedbackRequest struct {
	EditionId         uuid.UUID `json:"edition_id" validate:"required"`
	Section           string    `json:"section" validate:"required"`
	Comment           string    `json:"comment" validate:"required"`
	LearnFromFeedback bool      `json:"learn_from_feedback"`
}

type FeedbackResponse struct {
	Id        uuid.UUID `json:"id"`
	EditionId uuid.UUID `json:"edition_id"`
	Section   string    `json:"section"`
	Status    string    `json:"status"`
	Version   int64     `json:"version"`
}

type RevisionResponse struct {
	Id        uuid.UUID         `json:"id"`
	EditionId uuid.UUID         `json:"edition_id"`
	Sequence  int               `json:"sequence"`
	Source    string            `json:"source"`
	TriggerId uuid.UUID         `json:"trigger_id"`
	Summary   string            `json:"summary"`
	Content   map[string]any    `json:"content"`
	Sections  map[string]string `json:"sections,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type RunResponse struct {
	Id          uuid.UUID       `json:"id"`
	Stage       string          `json:"stage"`
	TriggerId   uuid.UUID       `json:"trigger_id"`
	Attempt     int             `json:"attempt"`
	Status      string          `json:"status"`
	Error       *string         `json:"error,omitempty"`
	Usage       *entity.Usage   `json:"usage,omitempty"`
	Output      json.RawMessage `json:"output,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	DurationMs  *int64          `json:"duration_ms,omitempty"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Pending     int    `json:"pending,omitempty"`
	Position    int64  `json:"feed_position,omitempty"`
	Clients     int    `json:"clients,omitempty"`
	DedupKeys   int    `json:"dedup_keys,omitempty"`
}

func ToItemResponse(i *entity.Item) *ItemResponse {
	res := &ItemResponse{
		Id:        i.Id,
		URL:       i.URL,
		Title:     i.Title,
		Status:    string(i.Status),
		Review:    i.Review,
		Version:   i.Version,
		CreatedAt: i.CreatedAt,
		UpdatedAt: i.UpdatedAt,
	}
	if i.EditionId != uuid.Nil {
		editionId := i.EditionId
		res.EditionId = &editionId
	}
	return res
}

func ToEditionResponse(e *entity.Edition) *EditionResponse {
	itemIds := e.ItemIds
	if itemIds == nil {
		itemIds = []uuid.UUID{}
	}
	return &EditionResponse{
		Id:               e.Id,
		Status:           string(e.Status),
		PipelineStatus:   e.PipelineStatus(),
		PublishRequested: e.PublishRequested,
		Content:          e.Content,
		ItemIds:          itemIds,
		Version:          e.Version,
		CreatedAt:        e.CreatedAt,
		PublishedAt:      e.PublishedAt,
	}
}

func ToFeedbackResponse(f *entity.Feedback) *FeedbackResponse {
	return &FeedbackResponse{
		Id:        f.Id,
		EditionId: f.EditionId,
		Section:   f.Section,
		Status:    f.PipelineStatus(),
		Version:   f.Version,
	}
}

func ToRevisionResponse(r *entity.Revision, sections map[string]string) *RevisionResponse {
	return &RevisionResponse{
		Id:        r.Id,
		EditionId: r.EditionId,
		Sequence:  r.Sequence,
		Source:    string(r.Source),
		TriggerId: r.TriggerId,
		Summary:   r.Summary,
		Content:   r.Content,
		Sections:  sections,
		CreatedAt: r.CreatedAt,
	}
}

func ToRunResponse(r *entity.Run) *RunResponse {
	res := &RunResponse{
		Id:          r.Id,
		Stage:       string(r.Stage),
		TriggerId:   r.TriggerId,
		Attempt:     r.Attempt,
		Status:      string(r.Status),
		Error:       r.Error,
		Usage:       r.Usage,
		Output:      r.Output,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.CompletedAt != nil {
		ms := r.CompletedAt.Sub(r.StartedAt).Milliseconds()
		res.DurationMs = &ms
	}
	return res
}
