package ai

import (
	"context"
	"strings"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/pkg/anthropic"
)

// DefaultDimensions are the five scoring axes and their weights.
var DefaultDimensions = []model.Dimension{
	{Name: "eligibility", Weight: 0.30},
	{Name: "industry_fit", Weight: 0.25},
	{Name: "funding_value", Weight: 0.20},
	{Name: "feasibility", Weight: 0.15},
	{Name: "timing", Weight: 0.10},
}

// FitScorer scores a program against the operator profile.
type FitScorer struct {
	*caller
	model     string
	maxTokens int64
}

// Score returns the fit result with dimensions sanitized to the five known axes.
func (s *FitScorer) Score(ctx context.Context, profile model.Profile, p *model.Program) (*model.FitResult, model.TokenUsage, error) {
	system := anthropic.BuildCachedSystemBlocks(scorePrompt, profileContext(profile))
	text, usage, err := s.complete(ctx, "score", s.model, s.maxTokens, system, programBrief(p))
	if err != nil {
		return nil, usage, err
	}

	var fit model.FitResult
	if err := decodeJSON("score", text, &fit); err != nil {
		return nil, usage, err
	}
	fit.Score = clamp(fit.Score)
	fit.Dimensions = sanitizeDimensions(fit.Dimensions, fit.Score)
	fit.Strengths = compact(fit.Strengths)
	fit.Weaknesses = compact(fit.Weaknesses)
	fit.KeyActions = compact(fit.KeyActions)
	fit.Model = s.model
	return &fit, usage, nil
}

// sanitizeDimensions returns exactly the five known axes in canonical order
// with canonical weights and clamped scores. Unknown axes are dropped; an axis
// the reply left out takes the overall score.
func sanitizeDimensions(in []model.Dimension, overall int) []model.Dimension {
	got := make(map[string]int, len(in))
	for _, d := range in {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if _, dup := got[name]; !dup {
			got[name] = clamp(d.Score)
		}
	}
	out := make([]model.Dimension, 0, len(DefaultDimensions))
	for _, d := range DefaultDimensions {
		score, ok := got[d.Name]
		if !ok {
			score = overall
		}
		out = append(out, model.Dimension{Name: d.Name, Weight: d.Weight, Score: score})
	}
	return out
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
