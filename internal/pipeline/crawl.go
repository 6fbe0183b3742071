package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/resilience"
)

// detailHeading marks the crawled detail-page text inside a program body.
const detailHeading = "## Detail Page"

// crawl is Stage C: fetch each eligible program's detail page, merge what it
// reveals and capture linked attachments. A failed fetch still advances the
// program so later stages can work from the listing data. A program the
// scheduler refused to fetch stays where it is for the next run.
func (o *Orchestrator) crawl(ctx context.Context, rs *runState, pr *model.PhaseResult) error {
	if o.deps.Crawler == nil {
		pr.Status = model.PhaseStatusSkipped
		return nil
	}

	programs, err := o.listPrograms(ctx, rs, model.StageCrawl)
	if err != nil {
		return err
	}

	var eligible []*model.Program
	for _, p := range programs {
		if p.Rejected() {
			continue
		}
		if p.DetailURL == "" {
			if rs.force && p.Phase == model.PhaseIngested {
				o.advanceWithoutURL(ctx, rs, p)
			}
			continue
		}
		if rs.force || p.Phase < model.PhaseCrawled {
			eligible = append(eligible, p)
		}
	}
	pr.Metadata["eligible"] = len(eligible)

	attachments := 0
	total := len(eligible)
	for i, p := range eligible {
		if err := canceled(ctx); err != nil {
			return err
		}
		rs.progress(model.StageCrawl, i+1, total, p.Slug)

		before := len(p.Attachments)
		err := o.crawlOne(ctx, p, rs.force)
		if cerr := canceled(ctx); cerr != nil {
			return cerr
		}
		if errors.Is(err, resilience.ErrLaneOpen) {
			rs.summary.Skip(model.StageCrawl)
			rs.log.Info("pipeline: crawl deferred to next run",
				zap.String("slug", p.Slug),
				zap.Error(err),
			)
			continue
		}
		attachments += len(p.Attachments) - before
		rs.summary.Count(model.StageCrawl, err)
		if err != nil {
			rs.log.Warn("pipeline: crawl failed",
				zap.String("slug", p.Slug),
				zap.String("url", p.DetailURL),
				zap.Error(err),
			)
		}
	}
	pr.Metadata["attachments"] = attachments
	return nil
}

// advanceWithoutURL moves a program with nothing to crawl on to phase 2.
func (o *Orchestrator) advanceWithoutURL(ctx context.Context, rs *runState, p *model.Program) {
	p.Phase = model.PhaseCrawled
	p.Status = model.StatusCrawled
	if err := o.save(ctx, p); err != nil {
		rs.summary.Count(model.StageCrawl, err)
		rs.log.Warn("pipeline: advance without url failed", zap.String("slug", p.Slug), zap.Error(err))
		return
	}
	rs.summary.Skip(model.StageCrawl)
}

// crawlOne fetches p's detail page and saves the result. The returned error
// is the crawl failure, if any; the program is saved either way unless the
// fetch never happened because the lane was open or ctx ended.
func (o *Orchestrator) crawlOne(ctx context.Context, p *model.Program, fresh bool) error {
	var page *model.CrawledPage
	crawlErr := o.call(ctx, resilience.LaneCrawl, func(ctx context.Context) error {
		var err error
		page, err = o.deps.Crawler.Crawl(ctx, p.DetailURL, fresh)
		return err
	})
	if errors.Is(crawlErr, resilience.ErrLaneOpen) || ctx.Err() != nil {
		return crawlErr
	}

	if crawlErr == nil && page != nil {
		mergePatch(p, patchFromPage(page))
		appendDetail(p, page.Text)
		o.collectAttachments(ctx, p, page.Links)
		p.CrawledAt = o.stamp()
	}
	catalog.BackfillFunding(p)

	if p.Phase < model.PhaseCrawled {
		p.Phase = model.PhaseCrawled
		p.Status = model.StatusCrawled
	}
	if err := o.save(ctx, p); err != nil {
		return err
	}
	return model.NewCollaboratorError("crawl", p.Slug, crawlErr)
}

// collectAttachments downloads attachment links found on the page or carried
// over from the listing, up to the configured count and size. Failures are
// logged; they never fail the crawl.
func (o *Orchestrator) collectAttachments(ctx context.Context, p *model.Program, links []model.Link) {
	if o.deps.Downloader == nil {
		return
	}
	var urls []string
	seen := map[string]bool{}
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}
	for _, l := range links {
		if o.isAttachmentLink(l) {
			add(webURL(l.URL))
		}
	}
	for _, u := range attachmentURLs(p) {
		add(u)
	}

	log := zap.L().With(zap.String("slug", p.Slug))
	for _, u := range urls {
		if len(p.Attachments) >= o.opts.MaxAttachments {
			log.Debug("pipeline: attachment limit reached", zap.Int("limit", o.opts.MaxAttachments))
			return
		}
		if catalog.HasAttachmentFrom(p, u) {
			continue
		}

		var dl *model.Download
		err := o.call(ctx, resilience.LaneCrawl, func(ctx context.Context) error {
			var err error
			dl, err = o.deps.Downloader.Download(ctx, u)
			return err
		})
		if err != nil {
			log.Warn("pipeline: attachment download failed", zap.String("url", u), zap.Error(err))
			continue
		}
		if int64(len(dl.Data)) > o.opts.MaxAttachmentBytes {
			log.Info("pipeline: attachment too large",
				zap.String("url", u),
				zap.Int("bytes", len(dl.Data)),
			)
			continue
		}

		name := dl.FileName
		if name == "" {
			name = fileNameFromURL(u)
		}
		a, err := o.deps.Catalog.SaveAttachment(ctx, p.Slug, name, u, dl.Data)
		if err != nil {
			log.Warn("pipeline: attachment save failed", zap.String("url", u), zap.Error(err))
			continue
		}
		catalog.AddAttachment(p, a)
	}
}

func (o *Orchestrator) isAttachmentLink(l model.Link) bool {
	candidates := []string{strings.ToLower(strings.TrimSpace(l.Text))}
	if u, err := url.Parse(l.URL); err == nil {
		candidates = append(candidates, strings.ToLower(u.Path))
	}
	for _, c := range candidates {
		for _, ext := range o.opts.AttachmentExtensions {
			if strings.HasSuffix(c, strings.ToLower(ext)) {
				return true
			}
		}
	}
	return false
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "attachment"
	}
	name := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	return name
}

// appendDetail adds the crawled text to the body under detailHeading, once.
func appendDetail(p *model.Program, text string) {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(p.Body, detailHeading) {
		return
	}
	body := strings.TrimRight(p.Body, "\n")
	if body != "" {
		body += "\n\n"
	}
	p.Body = body + detailHeading + "\n\n" + text + "\n"
}

// recordText is the body without the crawled detail section.
func recordText(body string) string {
	if i := strings.Index(body, detailHeading); i >= 0 {
		return strings.TrimSpace(body[:i])
	}
	return strings.TrimSpace(body)
}

// detailText is the crawled detail section of a body, or "".
func detailText(body string) string {
	i := strings.Index(body, detailHeading)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(body[i+len(detailHeading):])
}

var (
	phoneRe = regexp.MustCompile(`\b0\d{1,2}[-.\s)]\d{3,4}[-.\s]\d{4}\b`)
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	dateRe  = regexp.MustCompile(`(20\d{2})\s*[.\-/년]\s*(\d{1,2})\s*[.\-/월]\s*(\d{1,2})`)
)

// patchFromPage pulls the contact line and application window out of page text.
func patchFromPage(page *model.CrawledPage) *model.ProgramPatch {
	patch := &model.ProgramPatch{}
	text := page.Text

	var contact []string
	if m := phoneRe.FindString(text); m != "" {
		contact = append(contact, m)
	}
	if m := emailRe.FindString(text); m != "" {
		contact = append(contact, m)
	}
	patch.Contact = strings.Join(contact, ", ")

	dates := dateRe.FindAllStringSubmatch(text, 2)
	if len(dates) == 2 {
		patch.StartDate = isoDate(dates[0])
		patch.EndDate = isoDate(dates[1])
	}
	return patch
}

func isoDate(m []string) string {
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
}
