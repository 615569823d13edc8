package stage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"curate-pipeline/internal/entity"
)

// LocalAgents returns deterministic in-process agents for every stage. They
// back development runs without remote stage workers and the stub worker
// binary; they never call out to anything.
func LocalAgents() map[entity.StageName]Agent {
	return map[entity.StageName]Agent{
		entity.StageFetch:   AgentFunc(localFetch),
		entity.StageReview:  AgentFunc(localReview),
		entity.StageDraft:   AgentFunc(localDraft),
		entity.StageEdit:    AgentFunc(localEdit),
		entity.StagePublish: AgentFunc(localPublish),
	}
}

func localFetch(_ context.Context, in Input) (Output, error) {
	raw := str(in.Payload["url"])
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Output{}, fmt.Errorf("cannot fetch %q", raw)
	}
	title := strings.Trim(u.Host+u.Path, "/")
	content := "Content retrieved from " + raw
	return Output{
		Fields: map[string]any{"title": title, "content": content},
		Usage:  usage(raw, content),
	}, nil
}

func localReview(_ context.Context, in Input) (Output, error) {
	content := str(in.Payload["content"])
	if content == "" {
		return Output{}, errors.New("nothing to review")
	}
	summary := content
	if len(summary) > 140 {
		summary = summary[:140]
	}
	return Output{
		Fields: map[string]any{
			"summary":   summary,
			"relevance": relevance(content),
		},
		Usage: usage(content, summary),
	}, nil
}

func localDraft(_ context.Context, in Input) (Output, error) {
	itemId := str(in.Payload["item_id"])
	section := map[string]any{
		"title": str(in.Payload["title"]),
		"url":   str(in.Payload["url"]),
		"body":  str(in.Payload["content"]),
	}
	return Output{
		Fields: map[string]any{"item:" + itemId: section},
		Usage:  usage(str(in.Payload["content"]), str(in.Payload["title"])),
	}, nil
}

func localEdit(_ context.Context, in Input) (Output, error) {
	comment := str(in.Payload["comment"])
	revised := map[string]any{
		"previous": in.Payload["current"],
		"note":     comment,
	}
	return Output{
		Fields: map[string]any{"content": revised},
		Usage:  usage(comment, comment),
	}, nil
}

func localPublish(_ context.Context, in Input) (Output, error) {
	editionId := str(in.Payload["edition_id"])
	if editionId == "" {
		return Output{}, errors.New("no edition to publish")
	}
	return Output{
		Fields: map[string]any{
			"channel": "local",
			"ref":     "editions/" + editionId,
		},
	}, nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// relevance is a stable score in [0,1) derived from the text.
func relevance(text string) float64 {
	var sum int
	for _, r := range text {
		sum += int(r)
	}
	return float64(sum%100) / 100
}

func usage(in, out string) *entity.Usage {
	return &entity.Usage{
		InputTokens:  len(strings.Fields(in)),
		OutputTokens: len(strings.Fields(out)),
	}
}
