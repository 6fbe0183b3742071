package ai

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/pkg/anthropic"
)

// PreScreener judges a batch of programs in one call.
type PreScreener struct {
	*caller
	model     string
	maxTokens int64
}

type screenResponse struct {
	Verdicts []model.ScreenVerdict `json:"verdicts"`
}

// Screen returns one verdict per recognized item id. Items the model skipped
// get no verdict; unknown ids are dropped.
func (s *PreScreener) Screen(ctx context.Context, profile model.Profile, items []model.ScreenItem) ([]model.ScreenVerdict, model.TokenUsage, error) {
	if len(items) == 0 {
		return nil, model.TokenUsage{}, nil
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, model.TokenUsage{}, eris.Wrap(err, "ai: marshal screen items")
	}

	system := anthropic.BuildCachedSystemBlocks(screenPrompt, profileContext(profile))
	text, usage, err := s.complete(ctx, "prescreen", s.model, s.maxTokens, system, "Programs:\n"+string(payload))
	if err != nil {
		return nil, usage, err
	}

	var resp screenResponse
	if err := decodeJSON("prescreen", text, &resp); err != nil {
		return nil, usage, err
	}

	known := make(map[string]bool, len(items))
	for _, it := range items {
		known[it.Slug] = true
	}
	out := make([]model.ScreenVerdict, 0, len(resp.Verdicts))
	for _, v := range resp.Verdicts {
		if known[v.Slug] {
			out = append(out, v)
		}
	}
	return out, usage, nil
}
