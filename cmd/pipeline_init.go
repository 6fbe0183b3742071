package main

import (
	"context"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/ai"
	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/config"
	"github.com/sells-group/grant-cli/internal/cost"
	"github.com/sells-group/grant-cli/internal/dedup"
	"github.com/sells-group/grant-cli/internal/extract"
	"github.com/sells-group/grant-cli/internal/fetcher"
	"github.com/sells-group/grant-cli/internal/listing"
	"github.com/sells-group/grant-cli/internal/pipeline"
	"github.com/sells-group/grant-cli/internal/resilience"
	"github.com/sells-group/grant-cli/internal/scrape"
	"github.com/sells-group/grant-cli/internal/store"
	anthropicpkg "github.com/sells-group/grant-cli/pkg/anthropic"
	"github.com/sells-group/grant-cli/pkg/jina"
)

// pipelineEnv holds the stores and the orchestrator needed by the run,
// reenrich and serve commands.
type pipelineEnv struct {
	Store        store.Store
	Catalog      *catalog.Catalog
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates the config for mode, opens the stores and wires
// every collaborator into an Orchestrator. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	cat, err := initCatalog()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	deps, err := buildDeps(cfg, cat, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orch := pipeline.New(deps, pipelineOptions(cfg))
	return &pipelineEnv{Store: st, Catalog: cat, Orchestrator: orch}, nil
}

// buildDeps constructs the collaborators. Without an Anthropic key the AI
// collaborators stay nil and their stages are skipped.
func buildDeps(c *config.Config, cat *catalog.Catalog, st store.Store) (pipeline.Deps, error) {
	sched := buildScheduler(c.Throttle)
	httpFetcher := fetcher.NewHTTPFetcher(fetcherOptions(c.Fetcher))

	lister, err := listing.New(c.Listing.Sources, httpFetcher)
	if err != nil {
		return pipeline.Deps{}, eris.Wrap(err, "init listing sources")
	}

	extractor, err := extract.NewFromConfig(c.OCR, c.Mistral.Key)
	if err != nil {
		return pipeline.Deps{}, err
	}

	deps := pipeline.Deps{
		Catalog:    cat,
		Lister:     lister,
		Pruner:     dedup.New(cat, filterRules(c)),
		Crawler:    scrape.NewCrawler(buildScraper(c, httpFetcher, sched), st, time.Duration(c.Crawl.CacheTTLHours)*time.Hour),
		Downloader: scrape.NewDownloader(httpFetcher),
		Extractor:  extractor,
		Ledger:     st,
		Scheduler:  sched,
	}

	if c.Anthropic.Key == "" {
		zap.L().Warn("GRANT_ANTHROPIC_KEY not set, pre-screen, enrichment and scoring are skipped")
		return deps, nil
	}

	llm := anthropicpkg.NewClient(c.Anthropic.Key, option.WithMaxRetries(c.Anthropic.MaxRetries))
	collab := ai.New(llm, cost.NewCalculator(costRates(c.Pricing)), ai.Options{
		ScreenModel:    c.Anthropic.ScreenModel,
		StructureModel: c.Anthropic.StructureModel,
		ScoreModel:     c.Anthropic.ScoreModel,
		StrategyModel:  c.Anthropic.StrategyModel,
		MaxTokens:      c.Anthropic.MaxTokens,
	})
	deps.PreScreener = collab.Screener
	deps.Structurer = collab.Structurer
	deps.Scorer = collab.Scorer
	deps.Strategist = collab.Strategist
	return deps, nil
}

// buildScraper puts the Jina Reader behind the plain HTTP scraper for pages
// that only render with script.
func buildScraper(c *config.Config, f fetcher.Fetcher, sched *resilience.Scheduler) scrape.Scraper {
	httpScraper := scrape.NewHTTPScraper(f, scrape.HTTPOptions{
		Timeout:  time.Duration(c.Crawl.TimeoutSecs) * time.Second,
		MaxRunes: c.Crawl.MaxRunes,
	})
	if !c.Crawl.UseJina {
		return httpScraper
	}
	opts := []jina.Option{jina.WithBaseURL(c.Jina.BaseURL)}
	if c.Jina.RenderTimeoutSecs > 0 {
		opts = append(opts, jina.WithRenderTimeout(time.Duration(c.Jina.RenderTimeoutSecs)*time.Second))
	}
	return scrape.NewChain(httpScraper, scrape.NewJinaScraper(jina.NewClient(c.Jina.Key, opts...), sched))
}

func buildScheduler(t config.ThrottleConfig) *resilience.Scheduler {
	lane := func(ms int) resilience.LaneConfig {
		return resilience.LaneConfig{
			Interval:  time.Duration(ms) * time.Millisecond,
			TripAfter: t.TripAfter,
			Cooldown:  time.Duration(t.CooldownSecs) * time.Second,
		}
	}
	return resilience.NewScheduler(map[string]resilience.LaneConfig{
		resilience.LaneAI:     lane(t.AIIntervalMs),
		resilience.LaneCrawl:  lane(t.CrawlIntervalMs),
		resilience.LaneReader: lane(t.ReaderIntervalMs),
	})
}

func fetcherOptions(f config.FetcherConfig) fetcher.HTTPOptions {
	opts := fetcher.HTTPOptions{
		UserAgent:    f.UserAgent,
		Timeout:      time.Duration(f.TimeoutSecs) * time.Second,
		MaxRetries:   f.MaxRetries,
		MaxBodyBytes: int64(f.MaxBodyMB) << 20,
		Header:       http.Header{},
	}
	opts.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")
	return opts
}

func filterRules(c *config.Config) dedup.Rules {
	rules := dedup.Rules{
		Maturity:         c.Profile.Maturity,
		MaturityPatterns: c.Filter.MaturityPatterns,
		Region:           c.Profile.Region,
		KnownRegions:     c.Filter.KnownRegions,
		NationalMarkers:  c.Filter.NationalMarkers,
	}
	if len(rules.MaturityPatterns) == 0 {
		rules.MaturityPatterns = dedup.DefaultMaturityPatterns
	}
	if len(rules.KnownRegions) == 0 {
		rules.KnownRegions = dedup.DefaultKnownRegions
	}
	if len(rules.NationalMarkers) == 0 {
		rules.NationalMarkers = dedup.DefaultNationalMarkers
	}
	return rules
}

func costRates(p config.PricingConfig) cost.Rates {
	rates := cost.Rates{Anthropic: make(map[string]cost.ModelRate, len(p.Anthropic))}
	for name, mp := range p.Anthropic {
		rates.Anthropic[name] = cost.ModelRate{
			Input:         mp.Input,
			Output:        mp.Output,
			CacheWriteMul: mp.CacheWriteMul,
			CacheReadMul:  mp.CacheReadMul,
		}
	}
	return rates
}

func pipelineOptions(c *config.Config) pipeline.Options {
	return pipeline.Options{
		Profile:              c.Profile,
		StrategyThreshold:    c.Pipeline.StrategyThreshold,
		RejectScore:          c.Pipeline.RejectScore,
		MaxAttachments:       c.Pipeline.MaxAttachments,
		MaxAttachmentBytes:   int64(c.Pipeline.MaxAttachmentMB) << 20,
		AttachmentExtensions: c.Pipeline.AttachmentExtensions,
		MaxInputChars:        c.Pipeline.MaxInputChars,
	}
}
