package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/resilience"
)

const (
	screenSummaryRunes  = 400
	defaultRejectReason = "prescreen: not a fit for the operator profile"
)

// prescreen is Stage B: one batched call judges every eligible program
// against the operator profile. Failing programs move to the rejected phase.
func (o *Orchestrator) prescreen(ctx context.Context, rs *runState, pr *model.PhaseResult) error {
	if o.deps.PreScreener == nil || !o.opts.Profile.Configured() {
		pr.Status = model.PhaseStatusSkipped
		return nil
	}

	programs, err := o.listPrograms(ctx, rs, model.StagePrescreen)
	if err != nil {
		return err
	}
	var eligible []*model.Program
	for _, p := range programs {
		if p.Phase == model.PhaseIngested || (rs.force && p.Rejected()) {
			eligible = append(eligible, p)
		}
	}
	pr.Metadata["eligible"] = len(eligible)
	if len(eligible) == 0 {
		return nil
	}
	if err := canceled(ctx); err != nil {
		return err
	}

	items := make([]model.ScreenItem, 0, len(eligible))
	for _, p := range eligible {
		items = append(items, screenItem(p))
	}

	var (
		verdicts []model.ScreenVerdict
		usage    model.TokenUsage
	)
	err = o.call(ctx, resilience.LaneAI, func(ctx context.Context) error {
		var err error
		verdicts, usage, err = o.deps.PreScreener.Screen(ctx, o.opts.Profile, items)
		return err
	})
	rs.addUsage(pr, usage)
	if err != nil {
		err = model.NewCollaboratorError("prescreen", "batch", err)
		rs.summary.Count(model.StagePrescreen, err)
		rs.log.Warn("pipeline: prescreen call failed", zap.Int("items", len(items)), zap.Error(err))
		return nil
	}

	bySlug := make(map[string]model.ScreenVerdict, len(verdicts))
	for _, v := range verdicts {
		bySlug[v.Slug] = v
	}

	rejected := 0
	total := len(eligible)
	for i, p := range eligible {
		rs.progress(model.StagePrescreen, i+1, total, p.Slug)

		v, ok := bySlug[p.Slug]
		if !ok {
			// No verdict means the model did not object.
			v = model.ScreenVerdict{Slug: p.Slug, Pass: true}
		}
		if !o.applyVerdict(p, v) {
			rs.summary.Count(model.StagePrescreen, nil)
			continue
		}
		err := o.deps.Catalog.PutProgram(ctx, p)
		rs.summary.Count(model.StagePrescreen, err)
		if err != nil {
			rs.log.Warn("pipeline: prescreen write failed", zap.String("slug", p.Slug), zap.Error(err))
			continue
		}
		if p.Rejected() {
			rejected++
			rs.log.Info("pipeline: program rejected",
				zap.String("slug", p.Slug),
				zap.String("reason", p.RejectReason),
			)
		}
	}
	pr.Metadata["rejected"] = rejected
	return nil
}

// applyVerdict mutates p for v and reports whether anything changed.
func (o *Orchestrator) applyVerdict(p *model.Program, v model.ScreenVerdict) bool {
	if v.Pass {
		if !p.Rejected() {
			return false
		}
		p.Phase = model.PhaseIngested
		p.Status = model.StatusIngested
		p.Score = 0
		p.RejectReason = ""
		return true
	}

	reason := strings.TrimSpace(v.Reason)
	if reason == "" {
		reason = defaultRejectReason
	}
	if p.Rejected() && p.RejectReason == reason && p.Score == o.opts.RejectScore {
		return false
	}
	p.Phase = model.PhaseRejected
	p.Status = model.StatusRejected
	p.Score = o.opts.RejectScore
	p.RejectReason = reason
	return true
}

func screenItem(p *model.Program) model.ScreenItem {
	return model.ScreenItem{
		Slug:        p.Slug,
		Title:       p.Title,
		Operator:    p.Operator,
		SupportType: p.SupportType,
		Region:      p.Region,
		Summary:     truncateRunes(strings.TrimSpace(recordText(p.Body)), screenSummaryRunes),
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
