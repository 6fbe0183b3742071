package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/resilience"
)

type strategyOutcome int

const (
	strategyNone strategyOutcome = iota
	strategyWritten
	strategyKept
	strategyBelowThreshold
)

// score is Stage E: fit-score each eligible program, then draft a strategy
// for the ones at or above the threshold.
func (o *Orchestrator) score(ctx context.Context, rs *runState, pr *model.PhaseResult) error {
	if o.deps.Scorer == nil || !o.opts.Profile.Configured() {
		pr.Status = model.PhaseStatusSkipped
		return nil
	}

	programs, err := o.listPrograms(ctx, rs, model.StageScore)
	if err != nil {
		return err
	}
	var eligible []*model.Program
	for _, p := range programs {
		if scoreEligible(p, rs.force) {
			eligible = append(eligible, p)
		}
	}
	pr.Metadata["eligible"] = len(eligible)

	written, kept, below := 0, 0, 0
	total := len(eligible)
	for i, p := range eligible {
		if err := canceled(ctx); err != nil {
			return err
		}
		rs.progress(model.StageScore, i+1, total, p.Slug)

		outcome, usage, err := o.scoreOne(ctx, p, rs.force)
		rs.addUsage(pr, usage)
		rs.summary.Count(model.StageScore, err)
		if err != nil {
			rs.log.Warn("pipeline: score failed", zap.String("slug", p.Slug), zap.Error(err))
		}
		switch outcome {
		case strategyWritten:
			written++
		case strategyKept:
			kept++
		case strategyBelowThreshold:
			below++
		}
	}
	pr.Metadata["strategies_written"] = written
	pr.Metadata["strategies_kept"] = kept
	pr.Metadata["strategies_skipped"] = below
	return nil
}

func scoreEligible(p *model.Program, force bool) bool {
	if p.Rejected() {
		return false
	}
	if p.Phase < model.PhaseCrawled && p.DetailURL != "" {
		return false
	}
	return force || p.Score == 0
}

// scoreOne scores p, writes its analysis and, above the threshold, its strategy.
// Existing satellites are replaced only when force is set; without force a
// stored analysis is reused so the program score always matches it.
func (o *Orchestrator) scoreOne(ctx context.Context, p *model.Program, force bool) (strategyOutcome, model.TokenUsage, error) {
	var usage model.TokenUsage

	stored, err := o.storedAnalysis(ctx, p.Slug, force)
	if err != nil {
		return strategyNone, usage, err
	}

	var (
		fit        *model.FitResult
		score      int
		analyzedAt time.Time
	)
	if stored != nil {
		fit = fitFromAnalysis(stored)
		score = stored.Score
		analyzedAt = stored.AnalyzedAt
	} else {
		err := o.call(ctx, resilience.LaneAI, func(ctx context.Context) error {
			var (
				u   model.TokenUsage
				err error
			)
			fit, u, err = o.deps.Scorer.Score(ctx, o.opts.Profile, p)
			usage.Add(u)
			return err
		})
		if err != nil {
			return strategyNone, usage, model.NewCollaboratorError("score", p.Slug, err)
		}
		if fit == nil {
			return strategyNone, usage, model.NewCollaboratorError("score", p.Slug, errEmptyResult)
		}

		score = fit.WeightedScore()
		analyzedAt = o.now()
		a := &model.Analysis{
			Slug:        p.Slug,
			ProgramSlug: p.Slug,
			Score:       score,
			Dimensions:  fit.Dimensions,
			Strengths:   fit.Strengths,
			Weaknesses:  fit.Weaknesses,
			KeyActions:  fit.KeyActions,
			Model:       fit.Model,
			AnalyzedAt:  analyzedAt,
			Body:        renderAnalysis(p, fit, score),
		}
		if err := o.deps.Catalog.PutAnalysis(ctx, a); err != nil {
			return strategyNone, usage, err
		}
	}

	p.Score = score
	p.Status = model.StatusAnalyzed
	p.AnalyzedAt = &analyzedAt
	if err := o.save(ctx, p); err != nil {
		return strategyNone, usage, err
	}

	if score < o.opts.StrategyThreshold || o.deps.Strategist == nil {
		return strategyBelowThreshold, usage, nil
	}
	if has, err := o.deps.Catalog.HasStrategy(ctx, p.Slug); err != nil {
		return strategyNone, usage, err
	} else if has && !force {
		return strategyKept, usage, nil
	}

	var res *model.StrategyResult
	err = o.call(ctx, resilience.LaneAI, func(ctx context.Context) error {
		var (
			u   model.TokenUsage
			err error
		)
		res, u, err = o.deps.Strategist.Write(ctx, o.opts.Profile, p, fit)
		usage.Add(u)
		return err
	})
	if err != nil {
		return strategyNone, usage, model.NewCollaboratorError("strategy", p.Slug, err)
	}
	if res == nil || strings.TrimSpace(res.Markdown) == "" {
		return strategyNone, usage, model.NewCollaboratorError("strategy", p.Slug, errEmptyResult)
	}
	s := &model.Strategy{
		Slug:        p.Slug,
		ProgramSlug: p.Slug,
		Score:       score,
		Model:       res.Model,
		GeneratedAt: o.now(),
		Body:        res.Markdown,
	}
	if err := o.deps.Catalog.PutStrategy(ctx, s); err != nil {
		return strategyNone, usage, err
	}
	return strategyWritten, usage, nil
}

// storedAnalysis returns the analysis already written for slug, or nil when
// there is none or force asks for a fresh one.
func (o *Orchestrator) storedAnalysis(ctx context.Context, slug string, force bool) (*model.Analysis, error) {
	if force {
		return nil, nil
	}
	a, err := o.deps.Catalog.GetAnalysis(ctx, slug)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	return a, err
}

func fitFromAnalysis(a *model.Analysis) *model.FitResult {
	return &model.FitResult{
		Score:      a.Score,
		Dimensions: a.Dimensions,
		Strengths:  a.Strengths,
		Weaknesses: a.Weaknesses,
		KeyActions: a.KeyActions,
		Model:      a.Model,
	}
}

func renderAnalysis(p *model.Program, fit *model.FitResult, score int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Fit analysis: %s\n\n", p.Title)
	fmt.Fprintf(&b, "**Score:** %d/100\n\n", score)
	if s := strings.TrimSpace(fit.Summary); s != "" {
		b.WriteString(s + "\n\n")
	}
	if len(fit.Dimensions) > 0 {
		b.WriteString("| Dimension | Weight | Score |\n|---|---|---|\n")
		for _, d := range fit.Dimensions {
			fmt.Fprintf(&b, "| %s | %.2f | %d |\n", d.Name, d.Weight, d.Score)
		}
		b.WriteString("\n")
	}
	writeList(&b, "Strengths", fit.Strengths)
	writeList(&b, "Weaknesses", fit.Weaknesses)
	writeList(&b, "Key actions", fit.KeyActions)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("## " + heading + "\n\n")
	for _, it := range items {
		b.WriteString("- " + it + "\n")
	}
	b.WriteString("\n")
}
