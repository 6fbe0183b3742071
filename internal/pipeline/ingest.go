package pipeline

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/model"
)

// extraAttachmentURLs holds listing-provided attachment links until Stage C
// downloads them.
const extraAttachmentURLs = "attachment_urls"

// ingest is Stage A: persist candidates, then prune duplicates and
// out-of-scope programs.
func (o *Orchestrator) ingest(ctx context.Context, rs *runState, pr *model.PhaseResult) error {
	candidates, err := o.deps.Lister.List(ctx)
	if err != nil {
		return model.Fatal("list candidates", err)
	}
	pr.Metadata["candidates"] = len(candidates)

	known := o.knownTitles(rs.stored)
	total := len(candidates)
	for i, c := range candidates {
		if err := canceled(ctx); err != nil {
			return err
		}
		rs.progress(model.StageIngest, i+1, total, c.Name)

		outcome, err := o.ingestOne(ctx, c, known)
		rs.summary.Count(model.StageIngest, err)
		if err != nil {
			rs.log.Warn("pipeline: ingest failed",
				zap.String("name", c.Name),
				zap.String("source", c.Source),
				zap.Error(err),
			)
			continue
		}
		switch outcome {
		case ingestCreated:
			rs.summary.Created++
		case ingestUpdated:
			rs.summary.Updated++
		case ingestDuplicate:
			rs.summary.DuplicatesSkipped++
		}
	}

	if o.deps.Pruner == nil {
		return nil
	}
	removed, err := o.deps.Pruner.Dedup(ctx)
	rs.summary.DuplicatesRemoved += removed
	if err != nil {
		rs.summary.Count(model.StageIngest, err)
		rs.log.Warn("pipeline: dedup failed", zap.Error(err))
	}
	filtered, err := o.deps.Pruner.Filter(ctx)
	rs.summary.FilteredOut += filtered
	if err != nil {
		rs.summary.Count(model.StageIngest, err)
		rs.log.Warn("pipeline: filter failed", zap.Error(err))
	}
	pr.Metadata["duplicates_removed"] = rs.summary.DuplicatesRemoved
	pr.Metadata["duplicates_skipped"] = rs.summary.DuplicatesSkipped
	pr.Metadata["filtered_out"] = rs.summary.FilteredOut
	return nil
}

type ingestOutcome int

const (
	ingestCreated ingestOutcome = iota
	ingestUpdated
	ingestDuplicate
)

// knownTitles maps the dedup key of every program stored before this run onto
// its slug. Without a pruner there is no duplicate detection.
func (o *Orchestrator) knownTitles(stored []*model.Program) map[string]string {
	if o.deps.Pruner == nil {
		return nil
	}
	known := make(map[string]string, len(stored))
	for _, p := range stored {
		if key := o.deps.Pruner.Key(p.Title); key != "" {
			known[key] = p.Slug
		}
	}
	return known
}

// ingestOne writes a candidate. An existing program only has its synced_at
// refreshed. A new candidate whose title duplicates a program kept by an
// earlier run is not stored: that program already won dedup, and storing the
// newcomer would only have it deleted again or let it displace a reviewed
// document.
func (o *Orchestrator) ingestOne(ctx context.Context, c model.Candidate, known map[string]string) (ingestOutcome, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return 0, model.Invalidf("pipeline: candidate from %s has no name", c.Source)
	}
	slug := catalog.ProgramSlug(name, c.SourceID)

	existing, err := o.deps.Catalog.GetProgram(ctx, slug)
	switch {
	case err == nil:
		existing.SyncedAt = o.now()
		return ingestUpdated, o.deps.Catalog.PutProgram(ctx, existing)
	case !errors.Is(err, model.ErrNotFound):
		return 0, err
	}

	if o.deps.Pruner != nil {
		if held, ok := known[o.deps.Pruner.Key(name)]; ok {
			zap.L().Debug("pipeline: skipped duplicate candidate",
				zap.String("slug", slug),
				zap.String("kept", held),
			)
			return ingestDuplicate, nil
		}
	}

	p := programFromCandidate(slug, c)
	p.SyncedAt = o.now()
	return ingestCreated, o.save(ctx, p)
}

func programFromCandidate(slug string, c model.Candidate) *model.Program {
	p := &model.Program{
		Slug:              slug,
		Title:             strings.TrimSpace(c.Name),
		Operator:          strings.TrimSpace(c.Operator),
		SupportType:       strings.TrimSpace(c.SupportType),
		Region:            strings.TrimSpace(c.Region),
		Source:            c.Source,
		SourceID:          c.SourceID,
		DetailURL:         webURL(c.DetailURL),
		StartDate:         strings.TrimSpace(c.StartDate),
		EndDate:           strings.TrimSpace(c.EndDate),
		SupportScale:      strings.TrimSpace(c.SupportScale),
		Budget:            strings.TrimSpace(c.Budget),
		Eligibility:       nonEmpty(c.Eligibility),
		TargetAudience:    strings.TrimSpace(c.TargetAudience),
		RequiredDocuments: nonEmpty(c.RequiredDocuments),
		Phase:             model.PhaseIngested,
		Status:            model.StatusIngested,
	}

	var urls []any
	for _, u := range c.AttachmentURLs {
		if u = webURL(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) > 0 {
		p.Extra = map[string]any{extraAttachmentURLs: urls}
	}

	var b strings.Builder
	b.WriteString("# " + p.Title + "\n")
	if desc := strings.TrimSpace(c.Description); desc != "" {
		b.WriteString("\n" + desc + "\n")
	}
	p.Body = b.String()

	catalog.BackfillFunding(p)
	return p
}

// webURL returns raw when it is an absolute http(s) URL, else "".
func webURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return raw
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// attachmentURLs returns the listing-provided attachment links of p.
func attachmentURLs(p *model.Program) []string {
	var out []string
	switch v := p.Extra[extraAttachmentURLs].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	case string:
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
