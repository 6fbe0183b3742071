package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/dedup"
	"github.com/sells-group/grant-cli/internal/docstore"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/resilience"
)

var testProfile = model.Profile{Name: "Acme Robotics", Industry: "manufacturing", Region: "서울"}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	st, err := docstore.New(docstore.Config{Root: t.TempDir()})
	require.NoError(t, err)
	return catalog.New(st)
}

func listerOf(candidates ...model.Candidate) *mockLister {
	l := &mockLister{}
	l.On("List", mock.Anything).Return(candidates, nil)
	return l
}

func forSlug(slug string) any {
	return mock.MatchedBy(func(p *model.Program) bool { return p.Slug == slug })
}

func inputFor(slug string) any {
	return mock.MatchedBy(func(in model.EnrichInput) bool { return in.Program.Slug == slug })
}

func getProgram(t *testing.T, cat *catalog.Catalog, slug string) *model.Program {
	t.Helper()
	p, err := cat.GetProgram(context.Background(), slug)
	require.NoError(t, err)
	return p
}

func slugs(t *testing.T, cat *catalog.Catalog) []string {
	t.Helper()
	programs, err := cat.ListPrograms(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(programs))
	for _, p := range programs {
		out = append(out, p.Slug)
	}
	return out
}

func TestRun_DedupKeepsHigherQuality(t *testing.T) {
	cat := newTestCatalog(t)
	sparse := model.Candidate{Name: "Grant X", Source: "bizinfo", SourceID: "A1"}
	rich := model.Candidate{
		Name:              "Grant X",
		Source:            "kstartup",
		SourceID:          "B2",
		Operator:          "중소벤처기업부",
		SupportType:       "사업화",
		StartDate:         "2024-03-01",
		EndDate:           "2024-03-31",
		SupportScale:      "최대 1억원",
		DetailURL:         "https://www.example.go.kr/grant-x",
		Eligibility:       []string{"창업 3년 이내"},
		TargetAudience:    "초기 창업기업",
		RequiredDocuments: []string{"사업계획서"},
	}

	o := New(Deps{
		Catalog: cat,
		Lister:  listerOf(sparse, rich),
		Pruner:  dedup.New(cat, dedup.Rules{}),
	}, Options{})

	summary, err := o.Run(context.Background(), model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 1, summary.DuplicatesRemoved)

	programs, err := cat.ListPrograms(context.Background())
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, "Grant X", programs[0].Title)
	assert.Equal(t, "kstartup", programs[0].Source)
	assert.Equal(t, int64(100_000_000), programs[0].MaxFunding)
	assert.Equal(t, catalog.Quality(programs[0]), programs[0].QualityScore)
	assert.Greater(t, programs[0].QualityScore, 50)
}

func TestRun_PrescreenRejects(t *testing.T) {
	cat := newTestCatalog(t)
	lister := listerOf(
		model.Candidate{Name: "Grant X", Source: "bizinfo", DetailURL: "https://example.go.kr/x"},
		model.Candidate{Name: "Grant Y", Source: "bizinfo", DetailURL: "https://example.go.kr/y"},
	)

	screener := &mockPreScreener{}
	screener.On("Screen", mock.Anything, testProfile, mock.MatchedBy(func(items []model.ScreenItem) bool {
		return len(items) == 2
	})).Return([]model.ScreenVerdict{
		{Slug: "grant-x", Pass: true},
		{Slug: "grant-y", Pass: false, Reason: "wrong industry"},
	}, model.TokenUsage{InputTokens: 100, Cost: 0.01}, nil).Once()

	crawler := &mockCrawler{}
	crawler.On("Crawl", mock.Anything, "https://example.go.kr/x", false).
		Return(&model.CrawledPage{URL: "https://example.go.kr/x", Text: "문의: 02-123-4567"}, nil).Once()

	structurer := &mockStructurer{}
	structurer.On("Structure", mock.Anything, inputFor("grant-x")).
		Return(&model.ProgramPatch{Operator: "서울시"}, model.TokenUsage{}, nil).Once()

	scorer := &mockScorer{}
	scorer.On("Score", mock.Anything, testProfile, forSlug("grant-x")).
		Return(&model.FitResult{Score: 50}, model.TokenUsage{}, nil).Once()

	o := New(Deps{
		Catalog:     cat,
		Lister:      lister,
		PreScreener: screener,
		Crawler:     crawler,
		Structurer:  structurer,
		Scorer:      scorer,
	}, Options{Profile: testProfile})

	summary, err := o.Run(context.Background(), model.RunOptions{}, nil)
	require.NoError(t, err)

	y := getProgram(t, cat, "grant-y")
	assert.Equal(t, model.PhaseRejected, y.Phase)
	assert.Equal(t, model.StatusRejected, y.Status)
	assert.Equal(t, 3, y.Score)
	assert.Equal(t, "wrong industry", y.RejectReason)

	x := getProgram(t, cat, "grant-x")
	assert.Equal(t, model.PhaseEnriched, x.Phase)
	assert.Equal(t, model.StatusAnalyzed, x.Status)
	assert.Equal(t, 50, x.Score)
	assert.Equal(t, "서울시", x.Operator)
	assert.Equal(t, "02-123-4567", x.Contact)

	assert.Equal(t, 2, summary.Stages[model.StagePrescreen].Processed)
	assert.InDelta(t, 0.01, summary.Usage.Cost, 1e-9)
	crawler.AssertNotCalled(t, "Crawl", mock.Anything, "https://example.go.kr/y", mock.Anything)
	screener.AssertExpectations(t)
	crawler.AssertExpectations(t)
	structurer.AssertExpectations(t)
	scorer.AssertExpectations(t)
}

func TestRun_RejectedStaysRejectedWithoutForce(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, cat.PutProgram(ctx, &model.Program{
		Slug:         "grant-y",
		Title:        "Grant Y",
		Phase:        model.PhaseRejected,
		Status:       model.StatusRejected,
		Score:        3,
		RejectReason: "wrong industry",
	}))

	// Screener, crawler and scorer carry no expectations: any call fails the test.
	o := New(Deps{
		Catalog:     cat,
		Lister:      listerOf(model.Candidate{Name: "Grant Y", Source: "bizinfo"}),
		PreScreener: &mockPreScreener{},
		Crawler:     &mockCrawler{},
		Structurer:  &mockStructurer{},
		Scorer:      &mockScorer{},
	}, Options{Profile: testProfile})

	summary, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	y := getProgram(t, cat, "grant-y")
	assert.Equal(t, model.PhaseRejected, y.Phase)
	assert.Equal(t, 3, y.Score)
	assert.Equal(t, "wrong industry", y.RejectReason)
}

func TestRun_ForcedRescreenRestoresPassingProgram(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, cat.PutProgram(ctx, &model.Program{
		Slug:         "grant-y",
		Title:        "Grant Y",
		Phase:        model.PhaseRejected,
		Status:       model.StatusRejected,
		Score:        3,
		RejectReason: "wrong industry",
	}))

	screener := &mockPreScreener{}
	screener.On("Screen", mock.Anything, testProfile, mock.Anything).
		Return([]model.ScreenVerdict{{Slug: "grant-y", Pass: true}}, model.TokenUsage{}, nil).Once()

	o := New(Deps{
		Catalog:     cat,
		Lister:      listerOf(),
		PreScreener: screener,
	}, Options{Profile: testProfile})

	_, err := o.Run(ctx, model.RunOptions{Force: true}, nil)
	require.NoError(t, err)

	y := getProgram(t, cat, "grant-y")
	assert.Equal(t, model.PhaseIngested, y.Phase)
	assert.Equal(t, model.StatusIngested, y.Status)
	assert.Zero(t, y.Score)
	assert.Empty(t, y.RejectReason)
	screener.AssertExpectations(t)
}

func TestRun_PrescreenCallFailureChangesNothing(t *testing.T) {
	cat := newTestCatalog(t)
	screener := &mockPreScreener{}
	screener.On("Screen", mock.Anything, testProfile, mock.Anything).
		Return(nil, model.TokenUsage{}, errors.New("overloaded")).Once()

	o := New(Deps{
		Catalog:     cat,
		Lister:      listerOf(model.Candidate{Name: "Grant X", Source: "bizinfo"}),
		PreScreener: screener,
	}, Options{Profile: testProfile})

	summary, err := o.Run(context.Background(), model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StageCount{Errors: 1}, summary.Stages[model.StagePrescreen])

	x := getProgram(t, cat, "grant-x")
	assert.Equal(t, model.PhaseIngested, x.Phase)
	assert.Equal(t, model.StatusIngested, x.Status)
}

func TestRun_MissingVerdictCountsAsPass(t *testing.T) {
	cat := newTestCatalog(t)
	screener := &mockPreScreener{}
	screener.On("Screen", mock.Anything, testProfile, mock.Anything).
		Return([]model.ScreenVerdict{}, model.TokenUsage{}, nil).Once()

	o := New(Deps{
		Catalog:     cat,
		Lister:      listerOf(model.Candidate{Name: "Grant X", Source: "bizinfo"}),
		PreScreener: screener,
	}, Options{Profile: testProfile})

	_, err := o.Run(context.Background(), model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIngested, getProgram(t, cat, "grant-x").Phase)
}

func TestRun_NoDetailURLReachesEnrichOnlyUnderForce(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	lister := listerOf(model.Candidate{Name: "Grant Z", Source: "bizinfo", Description: "지원 내용"})

	structurer := &mockStructurer{}
	o := New(Deps{
		Catalog:    cat,
		Lister:     lister,
		Crawler:    &mockCrawler{},
		Structurer: structurer,
	}, Options{})

	summary, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StageCount{}, summary.Stages[model.StageCrawl])
	assert.Equal(t, model.PhaseIngested, getProgram(t, cat, "grant-z").Phase)
	structurer.AssertNotCalled(t, "Structure", mock.Anything, mock.Anything)

	structurer.On("Structure", mock.Anything, inputFor("grant-z")).
		Return(&model.ProgramPatch{SupportType: "R&D"}, model.TokenUsage{}, nil).Once()

	summary, err = o.Run(ctx, model.RunOptions{Force: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stages[model.StageCrawl].Skipped)
	assert.Equal(t, 1, summary.Stages[model.StageEnrich].Processed)

	z := getProgram(t, cat, "grant-z")
	assert.Equal(t, model.PhaseEnriched, z.Phase)
	assert.Equal(t, model.StatusEnriched, z.Status)
	assert.Equal(t, "R&D", z.SupportType)
	assert.NotNil(t, z.EnrichedAt)
	structurer.AssertExpectations(t)
}

func TestRun_StrategyThreshold(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	lister := listerOf(
		model.Candidate{Name: "High Fit", Source: "bizinfo"},
		model.Candidate{Name: "Low Fit", Source: "bizinfo"},
	)

	high := &model.FitResult{
		Score: 75,
		Dimensions: []model.Dimension{
			{Name: "eligibility", Weight: 1, Score: 75},
		},
		Strengths: []string{"region match"},
		Model:     "claude-sonnet",
	}
	low := &model.FitResult{Score: 40}

	scorer := &mockScorer{}
	scorer.On("Score", mock.Anything, testProfile, forSlug("high-fit")).Return(high, model.TokenUsage{Cost: 0.02}, nil).Once()
	scorer.On("Score", mock.Anything, testProfile, forSlug("low-fit")).Return(low, model.TokenUsage{Cost: 0.02}, nil).Once()

	strategist := &mockStrategist{}
	strategist.On("Write", mock.Anything, testProfile, forSlug("high-fit"), high).
		Return(&model.StrategyResult{Markdown: "# Strategy\n", Model: "claude-opus"}, model.TokenUsage{Cost: 0.1}, nil).Once()

	o := New(Deps{
		Catalog:    cat,
		Lister:     lister,
		Scorer:     scorer,
		Strategist: strategist,
	}, Options{Profile: testProfile})

	summary, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Stages[model.StageScore].Processed)
	assert.InDelta(t, 0.14, summary.Usage.Cost, 1e-9)

	ok, err := cat.HasStrategy(ctx, "high-fit")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = cat.HasStrategy(ctx, "low-fit")
	require.NoError(t, err)
	assert.False(t, ok)

	a, err := cat.GetAnalysis(ctx, "high-fit")
	require.NoError(t, err)
	assert.Equal(t, 75, a.Score)
	assert.Contains(t, a.Body, "region match")

	hf := getProgram(t, cat, "high-fit")
	assert.Equal(t, 75, hf.Score)
	assert.Equal(t, model.StatusAnalyzed, hf.Status)
	assert.Equal(t, 40, getProgram(t, cat, "low-fit").Score)

	// Scored programs are not scored again without force.
	_, err = o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	scorer.AssertExpectations(t)
	strategist.AssertExpectations(t)
}

func TestRun_ForceRewritesSatellites(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	scorer := &mockScorer{}
	scorer.On("Score", mock.Anything, testProfile, forSlug("grant-x")).
		Return(&model.FitResult{Score: 80}, model.TokenUsage{}, nil).Once()
	scorer.On("Score", mock.Anything, testProfile, forSlug("grant-x")).
		Return(&model.FitResult{Score: 90}, model.TokenUsage{}, nil).Once()

	strategist := &mockStrategist{}
	strategist.On("Write", mock.Anything, testProfile, forSlug("grant-x"), mock.Anything).
		Return(&model.StrategyResult{Markdown: "first"}, model.TokenUsage{}, nil).Once()
	strategist.On("Write", mock.Anything, testProfile, forSlug("grant-x"), mock.Anything).
		Return(&model.StrategyResult{Markdown: "second"}, model.TokenUsage{}, nil).Once()

	o := New(Deps{
		Catalog:    cat,
		Lister:     listerOf(model.Candidate{Name: "Grant X", Source: "bizinfo"}),
		Scorer:     scorer,
		Strategist: strategist,
	}, Options{Profile: testProfile})

	_, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	_, err = o.Run(ctx, model.RunOptions{Force: true}, nil)
	require.NoError(t, err)

	a, err := cat.GetAnalysis(ctx, "grant-x")
	require.NoError(t, err)
	assert.Equal(t, 90, a.Score)
	s, err := cat.GetStrategy(ctx, "grant-x")
	require.NoError(t, err)
	assert.Equal(t, "second", s.Body)
	scorer.AssertExpectations(t)
	strategist.AssertExpectations(t)
}

func TestRun_IngestIsIdempotent(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	lister := listerOf(
		model.Candidate{Name: "Grant A", Source: "bizinfo", SourceID: "1"},
		model.Candidate{Name: "Grant B", Source: "bizinfo", SourceID: "2"},
		model.Candidate{Name: "Grant B", Source: "kstartup", SourceID: "9"},
	)
	o := New(Deps{Catalog: cat, Lister: lister}, Options{})

	first, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	before := slugs(t, cat)

	second, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Equal(t, 3, second.Updated)
	assert.Equal(t, before, slugs(t, cat))
	assert.Equal(t, []string{"grant-a-1", "grant-b-2", "grant-b-9"}, before)
}

func TestRun_CrawlFailureStillAdvances(t *testing.T) {
	cat := newTestCatalog(t)
	crawler := &mockCrawler{}
	crawler.On("Crawl", mock.Anything, "https://example.go.kr/x", false).
		Return(nil, errors.New("timeout")).Once()

	o := New(Deps{
		Catalog: cat,
		Lister:  listerOf(model.Candidate{Name: "Grant X", Source: "bizinfo", DetailURL: "https://example.go.kr/x"}),
		Crawler: crawler,
	}, Options{})

	summary, err := o.Run(context.Background(), model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StageCount{Errors: 1}, summary.Stages[model.StageCrawl])

	x := getProgram(t, cat, "grant-x")
	assert.Equal(t, model.PhaseCrawled, x.Phase)
	assert.Equal(t, model.StatusCrawled, x.Status)
	assert.Nil(t, x.CrawledAt)
}

func TestRun_ListingFailureIsFatal(t *testing.T) {
	cat := newTestCatalog(t)
	lister := &mockLister{}
	lister.On("List", mock.Anything).Return(nil, errors.New("listing api down"))

	sink := &recordingSink{}
	o := New(Deps{Catalog: cat, Lister: lister}, Options{})
	summary, err := o.Run(context.Background(), model.RunOptions{}, sink)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.True(t, model.IsFatal(err))
	assert.Len(t, sink.failures, 1)
	assert.Empty(t, sink.summaries)
}

func TestRun_ProgressIsMonotonic(t *testing.T) {
	cat := newTestCatalog(t)
	crawler := &mockCrawler{}
	crawler.On("Crawl", mock.Anything, mock.Anything, false).
		Return(&model.CrawledPage{Text: "상세 내용"}, nil)
	structurer := &mockStructurer{}
	structurer.On("Structure", mock.Anything, mock.Anything).
		Return(&model.ProgramPatch{}, model.TokenUsage{}, nil)

	o := New(Deps{
		Catalog: cat,
		Lister: listerOf(
			model.Candidate{Name: "One", Source: "s", DetailURL: "https://example.go.kr/1"},
			model.Candidate{Name: "Two", Source: "s", DetailURL: "https://example.go.kr/2"},
			model.Candidate{Name: "Three", Source: "s", DetailURL: "https://example.go.kr/3"},
		),
		Crawler:    crawler,
		Structurer: structurer,
	}, Options{})

	sink := &recordingSink{}
	_, err := o.Run(context.Background(), model.RunOptions{}, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, sink.terminals())
	require.Len(t, sink.events, 9)

	for i := 1; i < len(sink.events); i++ {
		prev, cur := sink.events[i-1], sink.events[i]
		if cur.StageIndex == prev.StageIndex {
			assert.Equal(t, prev.Current+1, cur.Current)
		} else {
			assert.Greater(t, cur.StageIndex, prev.StageIndex)
			assert.Equal(t, 1, cur.Current)
		}
		assert.LessOrEqual(t, cur.Current, cur.Total)
	}
}

func TestRun_LedgerRecordsStages(t *testing.T) {
	cat := newTestCatalog(t)
	ledger := &mockLedger{}
	ledger.On("CreateRun", mock.Anything, model.RunOptions{Trigger: "cli"}).
		Return(&model.Run{ID: "run-1"}, nil).Once()
	ledger.On("UpdateRunStatus", mock.Anything, "run-1", mock.Anything).Return(nil)
	ledger.On("CreatePhase", mock.Anything, "run-1", mock.Anything).
		Return(&model.RunPhase{ID: "phase"}, nil).Times(len(model.Stages))
	ledger.On("CompletePhase", mock.Anything, "phase", mock.Anything).Return(nil).Times(len(model.Stages))
	ledger.On("UpdateRunResult", mock.Anything, "run-1", mock.MatchedBy(func(r *model.RunResult) bool {
		return r.Summary != nil && r.Error == ""
	})).Return(nil).Once()

	o := New(Deps{Catalog: cat, Lister: listerOf(), Ledger: ledger}, Options{})
	summary, err := o.Run(context.Background(), model.RunOptions{Trigger: "cli"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)

	ledger.AssertExpectations(t)
	ledger.AssertCalled(t, "UpdateRunStatus", mock.Anything, "run-1", model.RunStatusComplete)
	ledger.AssertCalled(t, "CompletePhase", mock.Anything, "phase", mock.MatchedBy(func(pr *model.PhaseResult) bool {
		return pr.Name == model.StagePrescreen && pr.Status == model.PhaseStatusSkipped
	}))
}

func TestRun_LedgerUnavailableIsFatal(t *testing.T) {
	ledger := &mockLedger{}
	ledger.On("CreateRun", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	sink := &recordingSink{}
	o := New(Deps{Catalog: newTestCatalog(t), Lister: listerOf(), Ledger: ledger}, Options{})
	_, err := o.Run(context.Background(), model.RunOptions{}, sink)
	require.Error(t, err)
	assert.True(t, model.IsFatal(err))
	assert.Len(t, sink.failures, 1)
}

func TestRun_CanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	o := New(Deps{
		Catalog: newTestCatalog(t),
		Lister:  listerOf(model.Candidate{Name: "Grant X", Source: "s"}),
	}, Options{})
	_, err := o.Run(ctx, model.RunOptions{}, sink)
	require.Error(t, err)
	assert.True(t, model.IsFatal(err))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, sink.terminals())
}

func TestRun_OpenCrawlLaneDefersRemainingPrograms(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	var candidates []model.Candidate
	for i := 1; i <= 6; i++ {
		candidates = append(candidates, model.Candidate{
			Name:      fmt.Sprintf("Site %d", i),
			Source:    "s",
			DetailURL: fmt.Sprintf("https://example.go.kr/%d", i),
		})
	}

	crawler := &mockCrawler{}
	crawler.On("Crawl", mock.Anything, "https://example.go.kr/1", false).Return(nil, errors.New("dial tcp: refused")).Once()
	crawler.On("Crawl", mock.Anything, "https://example.go.kr/2", false).Return(nil, errors.New("dial tcp: refused")).Once()

	tripping := resilience.NewScheduler(map[string]resilience.LaneConfig{
		resilience.LaneCrawl: {TripAfter: 2, Cooldown: time.Hour},
	})
	o := New(Deps{Catalog: cat, Lister: listerOf(candidates...), Crawler: crawler, Scheduler: tripping}, Options{})
	summary, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StageCount{Errors: 2, Skipped: 4}, summary.Stages[model.StageCrawl])
	crawler.AssertNumberOfCalls(t, "Crawl", 2)

	assert.Equal(t, model.PhaseCrawled, getProgram(t, cat, "site-1").Phase)
	assert.Equal(t, model.PhaseCrawled, getProgram(t, cat, "site-2").Phase)
	for i := 3; i <= 6; i++ {
		p := getProgram(t, cat, fmt.Sprintf("site-%d", i))
		assert.Equal(t, model.PhaseIngested, p.Phase, p.Slug)
		assert.Nil(t, p.CrawledAt, p.Slug)
	}

	// The next run, on a closed lane, crawls only what was deferred.
	for i := 3; i <= 6; i++ {
		crawler.On("Crawl", mock.Anything, fmt.Sprintf("https://example.go.kr/%d", i), false).
			Return(&model.CrawledPage{Text: "문의: 02-123-4567"}, nil).Once()
	}
	next := New(Deps{Catalog: cat, Lister: listerOf(candidates...), Crawler: crawler}, Options{})
	summary, err = next.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StageCount{Processed: 4}, summary.Stages[model.StageCrawl])
	for i := 3; i <= 6; i++ {
		p := getProgram(t, cat, fmt.Sprintf("site-%d", i))
		assert.Equal(t, model.PhaseCrawled, p.Phase, p.Slug)
		assert.Equal(t, "02-123-4567", p.Contact, p.Slug)
	}
	crawler.AssertExpectations(t)
}
