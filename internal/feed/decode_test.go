package feed

import (
	"testing"

	"curate-pipeline/internal/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	id := uuid.New()
	editionId := uuid.New()
	dec := newDecoder()

	tests := []struct {
		name       string
		record     entity.ChangeRecord
		wantErr    bool
		wantStatus string
		wantAgg    uuid.UUID
	}{
		{
			name:    "not json",
			record:  entity.ChangeRecord{DocumentType: "item", Payload: []byte("{nope")},
			wantErr: true,
		},
		{
			name:    "missing id",
			record:  entity.ChangeRecord{DocumentType: "item", Payload: []byte(`{"status":"submitted"}`)},
			wantErr: true,
		},
		{
			name:    "unknown document type",
			record:  entity.ChangeRecord{DocumentType: "note", Payload: []byte(`{"id":"` + id.String() + `","status":"submitted"}`)},
			wantErr: true,
		},
		{
			name:    "unknown item status",
			record:  entity.ChangeRecord{DocumentType: "item", Payload: []byte(`{"id":"` + id.String() + `","status":"lost"}`)},
			wantErr: true,
		},
		{
			name: "record id differs from payload",
			record: entity.ChangeRecord{
				DocumentType: "item",
				DocumentId:   uuid.NewString(),
				Payload:      []byte(`{"id":"` + id.String() + `","status":"submitted"}`),
			},
			wantErr: true,
		},
		{
			name:    "feedback without resolved flag",
			record:  entity.ChangeRecord{DocumentType: "feedback", Payload: []byte(`{"id":"` + id.String() + `"}`)},
			wantErr: true,
		},
		{
			name: "item with edition",
			record: entity.ChangeRecord{
				DocumentType: "item",
				DocumentId:   id.String(),
				Payload:      []byte(`{"id":"` + id.String() + `","edition_id":"` + editionId.String() + `","status":"fetching","version":4}`),
			},
			wantStatus: "fetching",
			wantAgg:    editionId,
		},
		{
			name:       "unresolved feedback",
			record:     entity.ChangeRecord{DocumentType: "feedback", Payload: []byte(`{"id":"` + id.String() + `","edition_id":"` + editionId.String() + `","resolved":false}`)},
			wantStatus: entity.FeedbackStatusUnresolved,
			wantAgg:    editionId,
		},
		{
			name:       "resolved feedback",
			record:     entity.ChangeRecord{DocumentType: "feedback", Payload: []byte(`{"id":"` + id.String() + `","resolved":true}`)},
			wantStatus: entity.FeedbackStatusResolved,
		},
		{
			name:       "edition with publish marker",
			record:     entity.ChangeRecord{DocumentType: "edition", Payload: []byte(`{"id":"` + id.String() + `","status":"in_review","publish_requested":true}`)},
			wantStatus: entity.EditionStatusPublishRequested,
			wantAgg:    id,
		},
		{
			name:       "edition without marker",
			record:     entity.ChangeRecord{DocumentType: "edition", Payload: []byte(`{"id":"` + id.String() + `","status":"drafting"}`)},
			wantStatus: "drafting",
			wantAgg:    id,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := dec.decode(tt.record)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedRecord)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, id, ev.DocumentId)
			assert.Equal(t, tt.wantStatus, ev.ObservedStatus)
			assert.Equal(t, tt.wantAgg, ev.AggregateId)
		})
	}
}
