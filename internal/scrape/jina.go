package scrape

import (
	"context"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/resilience"
	"github.com/sells-group/grant-cli/pkg/jina"
)

var errNeedsFallback = eris.New("jina: response has no usable content")

var markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\((https?://[^)\s]+)\)`)

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
	"자동입력 방지",
}

// JinaScraper reads pages through the Jina Reader, which renders script-only
// pages the plain HTTP scraper cannot. Calls go through the scheduler's
// reader lane so a failing upstream is skipped after repeated failures.
type JinaScraper struct {
	client jina.Client
	sched  *resilience.Scheduler
}

// NewJinaScraper creates a JinaScraper. sched may be nil.
func NewJinaScraper(client jina.Client, sched *resilience.Scheduler) *JinaScraper {
	return &JinaScraper{client: client, sched: sched}
}

// Name implements Scraper.
func (j *JinaScraper) Name() string { return "jina" }

// Scrape fetches a URL via Jina Reader and validates the response.
func (j *JinaScraper) Scrape(ctx context.Context, targetURL string) (*model.CrawledPage, error) {
	return resilience.Call(ctx, j.sched, resilience.LaneReader, func(ctx context.Context) (*model.CrawledPage, error) {
		resp, err := j.client.Read(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, errNeedsFallback
		}

		page := &model.CrawledPage{
			URL:        targetURL,
			Title:      resp.Data.Title,
			Text:       strings.TrimSpace(resp.Data.Content),
			StatusCode: 200,
		}
		seen := make(map[string]bool)
		for _, m := range markdownLinkRe.FindAllStringSubmatch(resp.Data.Content, -1) {
			if seen[m[2]] {
				continue
			}
			seen[m[2]] = true
			page.Links = append(page.Links, model.Link{URL: m[2], Text: strings.TrimSpace(m[1])})
		}
		return page, nil
	})
}

// needsFallback reports whether a Jina response is empty or a challenge
// page rather than content.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len([]rune(content)) < 50 {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
