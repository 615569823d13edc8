package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"curate-pipeline/internal/entity"

	"gopkg.in/yaml.v3"
)

// StageSettings is one entry of stages.yaml.
type StageSettings struct {
	Timeout time.Duration `yaml:"timeout"`
	Subject string        `yaml:"subject"`
}

type StagesFile struct {
	Stages map[entity.StageName]StageSettings `yaml:"stages"`
}

// LoadStages reads per-stage settings. A missing file yields an empty set so
// every stage falls back to STAGE_DEFAULT_TIMEOUT.
func LoadStages(path string) (*StagesFile, error) {
	sf := &StagesFile{Stages: map[entity.StageName]StageSettings{}}
	if path == "" {
		return sf, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return sf, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseStages(raw)
}

func ParseStages(raw []byte) (*StagesFile, error) {
	sf := &StagesFile{}
	if err := yaml.Unmarshal(raw, sf); err != nil {
		return nil, fmt.Errorf("parse stages: %w", err)
	}
	if sf.Stages == nil {
		sf.Stages = map[entity.StageName]StageSettings{}
	}
	for name, s := range sf.Stages {
		if !name.Valid() {
			return nil, fmt.Errorf("parse stages: unknown stage %q", name)
		}
		if s.Timeout < 0 {
			return nil, fmt.Errorf("parse stages: %s timeout must not be negative", name)
		}
	}
	return sf, nil
}

// Timeout returns the stage's deadline, or fallback when none is set.
func (sf *StagesFile) Timeout(name entity.StageName, fallback time.Duration) time.Duration {
	if s, ok := sf.Stages[name]; ok && s.Timeout > 0 {
		return s.Timeout
	}
	return fallback
}

// Subject returns the NATS request subject for a stage.
func (sf *StagesFile) Subject(name entity.StageName) string {
	if s, ok := sf.Stages[name]; ok && s.Subject != "" {
		return s.Subject
	}
	return "stages." + string(name)
}
