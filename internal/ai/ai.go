// Package ai implements the pipeline's model-backed collaborators on top of
// the Anthropic Messages API: batched pre-screening, field structuring, fit
// scoring and strategy drafting.
package ai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/cost"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/pkg/anthropic"
)

// Default models per task.
const (
	DefaultScreenModel    = "claude-haiku-4-5-20251001"
	DefaultStructureModel = "claude-haiku-4-5-20251001"
	DefaultScoreModel     = "claude-sonnet-4-5-20250929"
	DefaultStrategyModel  = "claude-sonnet-4-5-20250929"
)

// Options selects models and output budgets. Zero values use the defaults.
type Options struct {
	ScreenModel    string
	StructureModel string
	ScoreModel     string
	StrategyModel  string
	// MaxTokens bounds every JSON response; strategies get twice as much.
	MaxTokens int64
}

func (o Options) withDefaults() Options {
	if o.ScreenModel == "" {
		o.ScreenModel = DefaultScreenModel
	}
	if o.StructureModel == "" {
		o.StructureModel = DefaultStructureModel
	}
	if o.ScoreModel == "" {
		o.ScoreModel = DefaultScoreModel
	}
	if o.StrategyModel == "" {
		o.StrategyModel = DefaultStrategyModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4096
	}
	return o
}

// Collaborators bundles the four model-backed pipeline collaborators.
type Collaborators struct {
	Screener   *PreScreener
	Structurer *Structurer
	Scorer     *FitScorer
	Strategist *StrategyWriter
}

// New builds every collaborator over one client and price table.
func New(llm anthropic.Client, calc *cost.Calculator, opts Options) *Collaborators {
	opts = opts.withDefaults()
	c := &caller{llm: llm, calc: calc}
	return &Collaborators{
		Screener:   &PreScreener{caller: c, model: opts.ScreenModel, maxTokens: opts.MaxTokens},
		Structurer: &Structurer{caller: c, model: opts.StructureModel, maxTokens: opts.MaxTokens},
		Scorer:     &FitScorer{caller: c, model: opts.ScoreModel, maxTokens: opts.MaxTokens},
		Strategist: &StrategyWriter{caller: c, model: opts.StrategyModel, maxTokens: 2 * opts.MaxTokens},
	}
}

type caller struct {
	llm  anthropic.Client
	calc *cost.Calculator
}

var zeroTemp = 0.0

// complete sends one user turn and returns the text with priced usage. A
// response cut off by max_tokens is returned as-is; JSON callers repair it.
func (c *caller) complete(ctx context.Context, task, modelID string, maxTokens int64, system []anthropic.SystemBlock, user string) (string, model.TokenUsage, error) {
	resp, err := c.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       modelID,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: user}},
		Temperature: &zeroTemp,
	})
	if err != nil {
		return "", model.TokenUsage{}, eris.Wrapf(err, "ai: %s call", task)
	}

	usage := model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	}
	if c.calc != nil {
		usage = c.calc.Price(modelID, usage)
	}
	zap.L().Debug("cost attribution",
		zap.String("model", modelID),
		zap.String("task", task),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Int("cache_write_tokens", usage.CacheCreationTokens),
		zap.Int("cache_read_tokens", usage.CacheReadTokens),
		zap.Float64("estimated_cost_usd", usage.Cost),
	)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", usage, eris.Errorf("ai: %s returned no text (stop_reason=%s)", task, resp.StopReason)
	}
	return text, usage, nil
}
