package config

import (
	"testing"
	"time"

	"curate-pipeline/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	cfg := Load()

	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.Stage.DefaultTimeout)
	assert.Equal(t, 100, cfg.Feed.BatchSize)
	assert.Equal(t, "owned", cfg.Pipeline.AggregatePolicy)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDurations(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "1500ms", want: 1500 * time.Millisecond},
		{name: "bare seconds", value: "45", want: 45 * time.Second},
		{name: "garbage falls back", value: "soon", want: 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STAGE_DEFAULT_TIMEOUT", tt.value)
			assert.Equal(t, tt.want, Load().Stage.DefaultTimeout)
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	cfg := Load()
	cfg.Pipeline.AggregatePolicy = "random"
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Pipeline.MaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = Load()
	cfg.Stage.Mode = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_CONNECTION_STRING", "")
	assert.Error(t, Load().Validate())
}

func TestParseStages(t *testing.T) {
	raw := []byte(`
stages:
  fetch:
    timeout: 30s
    subject: agents.fetch
  review:
    timeout: 2m
`)
	sf, err := ParseStages(raw)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, sf.Timeout(entity.StageFetch, time.Minute))
	assert.Equal(t, 2*time.Minute, sf.Timeout(entity.StageReview, time.Minute))
	assert.Equal(t, time.Minute, sf.Timeout(entity.StagePublish, time.Minute))
	assert.Equal(t, "agents.fetch", sf.Subject(entity.StageFetch))
	assert.Equal(t, "stages.review", sf.Subject(entity.StageReview))
}

func TestParseStagesRejectsUnknownStage(t *testing.T) {
	_, err := ParseStages([]byte("stages:\n  translate:\n    timeout: 1s\n"))
	assert.Error(t, err)
}

func TestLoadStagesMissingFile(t *testing.T) {
	sf, err := LoadStages("does-not-exist.yaml")
	require.NoError(t, err)
	assert.Empty(t, sf.Stages)
}
