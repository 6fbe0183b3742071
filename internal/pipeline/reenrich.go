package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/resilience"
)

// DefaultBulkQualityBelow selects programs for bulk re-enrichment when no
// threshold is given.
const DefaultBulkQualityBelow = 60

// ReenrichOptions controls a single re-enrichment.
type ReenrichOptions struct {
	// Recrawl fetches the detail page again before structuring.
	Recrawl bool
}

// ReenrichResult reports the quality change of one re-enrichment.
type ReenrichResult struct {
	Slug       string           `json:"slug"`
	Before     int              `json:"before"`
	After      int              `json:"after"`
	Delta      int              `json:"delta"`
	Usage      model.TokenUsage `json:"usage"`
	CrawlError string           `json:"crawl_error,omitempty"`
}

// BulkOptions selects programs for bulk re-enrichment.
type BulkOptions struct {
	QualityBelow int `json:"quality_below"`
	Limit        int `json:"limit,omitempty"`
}

// BulkResult aggregates a bulk re-enrichment.
type BulkResult struct {
	Processed int              `json:"processed"`
	Improved  int              `json:"improved"`
	Errors    int              `json:"errors"`
	Usage     model.TokenUsage `json:"usage"`
}

// Reenrich runs the structuring step again for one program, optionally
// recrawling first. Values are merged if empty, so quality never drops.
func (o *Orchestrator) Reenrich(ctx context.Context, slug string, opts ReenrichOptions) (*ReenrichResult, error) {
	if o.deps.Structurer == nil {
		return nil, model.Invalidf("pipeline: re-enrichment needs a structuring collaborator")
	}
	p, err := o.deps.Catalog.GetProgram(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p.Rejected() {
		return nil, model.Invalidf("pipeline: program %s is rejected", slug)
	}

	res := &ReenrichResult{Slug: slug, Before: catalog.Quality(p)}
	log := zap.L().With(zap.String("slug", slug))

	if opts.Recrawl && p.DetailURL != "" && o.deps.Crawler != nil {
		if err := o.crawlOne(ctx, p, true); err != nil {
			if !isCollaboratorError(err) && !errors.Is(err, resilience.ErrLaneOpen) {
				return nil, err
			}
			res.CrawlError = err.Error()
			log.Warn("pipeline: recrawl failed", zap.Error(err))
		}
	}

	usage, err := o.enrichOne(ctx, p)
	res.Usage = usage
	if err != nil {
		return nil, err
	}

	res.After = p.QualityScore
	res.Delta = res.After - res.Before
	log.Info("pipeline: re-enriched program",
		zap.Int("before", res.Before),
		zap.Int("after", res.After),
	)
	return res, nil
}

// ReenrichBulk re-enriches, one at a time, every program below the quality
// threshold that has extracted attachment text to learn from.
func (o *Orchestrator) ReenrichBulk(ctx context.Context, opts BulkOptions) (*BulkResult, error) {
	if opts.QualityBelow <= 0 {
		opts.QualityBelow = DefaultBulkQualityBelow
	}
	programs, err := o.deps.Catalog.ListPrograms(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list programs for re-enrichment")
	}

	var selected []string
	for _, p := range programs {
		if opts.Limit > 0 && len(selected) >= opts.Limit {
			break
		}
		if p.Rejected() || p.QualityScore >= opts.QualityBelow {
			continue
		}
		if o.hasAttachmentText(ctx, p) {
			selected = append(selected, p.Slug)
		}
	}

	out := &BulkResult{}
	for _, slug := range selected {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := o.Reenrich(ctx, slug, ReenrichOptions{})
		out.Processed++
		if res != nil {
			out.Usage.Add(res.Usage)
		}
		if err != nil {
			out.Errors++
			zap.L().Warn("pipeline: bulk re-enrichment failed", zap.String("slug", slug), zap.Error(err))
			continue
		}
		if res.Delta > 0 {
			out.Improved++
		}
	}
	zap.L().Info("pipeline: bulk re-enrichment complete",
		zap.Int("processed", out.Processed),
		zap.Int("improved", out.Improved),
		zap.Int("errors", out.Errors),
	)
	return out, nil
}

func (o *Orchestrator) hasAttachmentText(ctx context.Context, p *model.Program) bool {
	for _, a := range p.AnalyzedAttachments() {
		text, err := o.deps.Catalog.AttachmentText(ctx, a)
		if err == nil && text != "" {
			return true
		}
	}
	return false
}

func isCollaboratorError(err error) bool {
	var ce *model.CollaboratorError
	return errors.As(err, &ce)
}
