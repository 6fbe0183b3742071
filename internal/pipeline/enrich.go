package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/resilience"
)

// enrich is Stage D: one structuring call per crawled program over its body,
// detail text and attachment text.
func (o *Orchestrator) enrich(ctx context.Context, rs *runState, pr *model.PhaseResult) error {
	if o.deps.Structurer == nil {
		pr.Status = model.PhaseStatusSkipped
		return nil
	}

	programs, err := o.listPrograms(ctx, rs, model.StageEnrich)
	if err != nil {
		return err
	}
	var eligible []*model.Program
	for _, p := range programs {
		if p.Rejected() {
			continue
		}
		if p.Phase == model.PhaseCrawled || (rs.force && p.Phase >= model.PhaseCrawled) {
			eligible = append(eligible, p)
		}
	}
	pr.Metadata["eligible"] = len(eligible)

	total := len(eligible)
	for i, p := range eligible {
		if err := canceled(ctx); err != nil {
			return err
		}
		rs.progress(model.StageEnrich, i+1, total, p.Slug)

		usage, err := o.enrichOne(ctx, p)
		rs.addUsage(pr, usage)
		rs.summary.Count(model.StageEnrich, err)
		if err != nil {
			rs.log.Warn("pipeline: enrich failed", zap.String("slug", p.Slug), zap.Error(err))
		}
	}
	return nil
}

// enrichOne extracts pending attachments, runs the structuring call and
// merges its patch into p. Attachment extraction is persisted even when the
// call fails.
func (o *Orchestrator) enrichOne(ctx context.Context, p *model.Program) (model.TokenUsage, error) {
	attachmentText, extracted := o.extractAttachments(ctx, p)

	in := model.EnrichInput{
		Program:        p,
		RecordText:     recordText(p.Body),
		CrawledText:    detailText(p.Body),
		AttachmentText: attachmentText,
	}
	o.boundInput(&in)

	var (
		patch *model.ProgramPatch
		usage model.TokenUsage
	)
	err := o.call(ctx, resilience.LaneAI, func(ctx context.Context) error {
		var err error
		patch, usage, err = o.deps.Structurer.Structure(ctx, in)
		return err
	})
	if err != nil {
		if extracted {
			if serr := o.save(ctx, p); serr != nil {
				zap.L().Warn("pipeline: save extracted attachments failed", zap.String("slug", p.Slug), zap.Error(serr))
			}
		}
		return usage, model.NewCollaboratorError("enrich", p.Slug, err)
	}

	if patch != nil {
		mergePatch(p, patch)
	}
	catalog.BackfillFunding(p)
	if p.Phase < model.PhaseEnriched {
		p.Phase = model.PhaseEnriched
	}
	p.Status = model.StatusEnriched
	p.EnrichedAt = o.stamp()
	return usage, o.save(ctx, p)
}

// extractAttachments writes text sidecars for unanalyzed attachments and
// returns the combined text of every analyzed one. The bool reports whether
// any attachment changed state.
func (o *Orchestrator) extractAttachments(ctx context.Context, p *model.Program) (string, bool) {
	log := zap.L().With(zap.String("slug", p.Slug))
	changed := false

	if o.deps.Extractor != nil {
		for i := range p.Attachments {
			a := &p.Attachments[i]
			if a.Analyzed {
				continue
			}
			data, err := o.deps.Catalog.ReadAttachment(ctx, *a)
			if err != nil {
				log.Warn("pipeline: read attachment failed", zap.String("path", a.Path), zap.Error(err))
				continue
			}
			ext, err := o.deps.Extractor.Extract(ctx, a.DisplayName, data)
			if err != nil {
				log.Warn("pipeline: extract attachment failed", zap.String("path", a.Path), zap.Error(err))
				continue
			}
			if err := o.deps.Catalog.SaveAttachmentText(ctx, a, ext.Text); err != nil {
				log.Warn("pipeline: save attachment text failed", zap.String("path", a.Path), zap.Error(err))
				continue
			}
			changed = true
			log.Debug("pipeline: extracted attachment",
				zap.String("path", a.Path),
				zap.String("type", ext.Type),
				zap.Int("chars", len(ext.Text)),
			)
		}
	}

	var b strings.Builder
	for _, a := range p.AnalyzedAttachments() {
		text, err := o.deps.Catalog.AttachmentText(ctx, a)
		if err != nil {
			log.Warn("pipeline: read attachment text failed", zap.String("path", a.Path), zap.Error(err))
			continue
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		b.WriteString("### " + a.DisplayName + "\n\n" + text + "\n\n")
	}
	return strings.TrimSpace(b.String()), changed
}

// boundInput trims the input texts to the configured budget, cutting the
// attachment text first and the record text last.
func (o *Orchestrator) boundInput(in *model.EnrichInput) {
	budget := o.opts.MaxInputChars
	in.RecordText = truncateRunes(in.RecordText, budget)
	budget -= len([]rune(in.RecordText))
	in.CrawledText = truncateRunes(in.CrawledText, max(budget, 0))
	budget -= len([]rune(in.CrawledText))
	in.AttachmentText = truncateRunes(in.AttachmentText, max(budget, 0))
}
