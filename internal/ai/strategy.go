package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/pkg/anthropic"
)

// StrategyWriter drafts the application strategy markdown.
type StrategyWriter struct {
	*caller
	model     string
	maxTokens int64
}

// Write returns the strategy document for a scored program.
func (s *StrategyWriter) Write(ctx context.Context, profile model.Profile, p *model.Program, fit *model.FitResult) (*model.StrategyResult, model.TokenUsage, error) {
	var b strings.Builder
	b.WriteString(programBrief(p))
	if fit != nil {
		fmt.Fprintf(&b, "\n## Fit assessment (%d/100)\n\n", fit.WeightedScore())
		if fit.Summary != "" {
			b.WriteString(fit.Summary + "\n")
		}
		for _, group := range []struct {
			title string
			items []string
		}{
			{"Strengths", fit.Strengths},
			{"Weaknesses", fit.Weaknesses},
			{"Key actions", fit.KeyActions},
		} {
			if len(group.items) > 0 {
				b.WriteString("\n### " + group.title + "\n- " + strings.Join(group.items, "\n- ") + "\n")
			}
		}
	}

	system := anthropic.BuildCachedSystemBlocks(strategyPrompt, profileContext(profile))
	text, usage, err := s.complete(ctx, "strategy", s.model, s.maxTokens, system, b.String())
	if err != nil {
		return nil, usage, err
	}
	return &model.StrategyResult{Markdown: stripFence(text) + "\n", Model: s.model}, usage, nil
}

// stripFence removes a wrapping ```markdown fence.
func stripFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.Index(text, "\n"); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
