package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/grant-cli/internal/model"
)

// --- Lister Mock ---

type mockLister struct {
	mock.Mock
}

func (m *mockLister) List(ctx context.Context) ([]model.Candidate, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Candidate), args.Error(1)
}

// --- Crawler Mock ---

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) Crawl(ctx context.Context, url string, fresh bool) (*model.CrawledPage, error) {
	args := m.Called(ctx, url, fresh)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CrawledPage), args.Error(1)
}

// --- Downloader Mock ---

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Download(ctx context.Context, url string) (*model.Download, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Download), args.Error(1)
}

// --- ContentExtractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, fileName string, data []byte) (model.Extraction, error) {
	args := m.Called(ctx, fileName, data)
	return args.Get(0).(model.Extraction), args.Error(1)
}

// --- PreScreener Mock ---

type mockPreScreener struct {
	mock.Mock
}

func (m *mockPreScreener) Screen(ctx context.Context, profile model.Profile, items []model.ScreenItem) ([]model.ScreenVerdict, model.TokenUsage, error) {
	args := m.Called(ctx, profile, items)
	var verdicts []model.ScreenVerdict
	if v := args.Get(0); v != nil {
		verdicts = v.([]model.ScreenVerdict)
	}
	return verdicts, args.Get(1).(model.TokenUsage), args.Error(2)
}

// --- Structurer Mock ---

type mockStructurer struct {
	mock.Mock
}

func (m *mockStructurer) Structure(ctx context.Context, in model.EnrichInput) (*model.ProgramPatch, model.TokenUsage, error) {
	args := m.Called(ctx, in)
	var patch *model.ProgramPatch
	if v := args.Get(0); v != nil {
		patch = v.(*model.ProgramPatch)
	}
	return patch, args.Get(1).(model.TokenUsage), args.Error(2)
}

// --- FitScorer Mock ---

type mockScorer struct {
	mock.Mock
}

func (m *mockScorer) Score(ctx context.Context, profile model.Profile, p *model.Program) (*model.FitResult, model.TokenUsage, error) {
	args := m.Called(ctx, profile, p)
	var fit *model.FitResult
	if v := args.Get(0); v != nil {
		fit = v.(*model.FitResult)
	}
	return fit, args.Get(1).(model.TokenUsage), args.Error(2)
}

// --- StrategyWriter Mock ---

type mockStrategist struct {
	mock.Mock
}

func (m *mockStrategist) Write(ctx context.Context, profile model.Profile, p *model.Program, fit *model.FitResult) (*model.StrategyResult, model.TokenUsage, error) {
	args := m.Called(ctx, profile, p, fit)
	var res *model.StrategyResult
	if v := args.Get(0); v != nil {
		res = v.(*model.StrategyResult)
	}
	return res, args.Get(1).(model.TokenUsage), args.Error(2)
}

// --- Ledger Mock ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CreateRun(ctx context.Context, opts model.RunOptions) (*model.Run, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockLedger) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	args := m.Called(ctx, runID, status)
	return args.Error(0)
}

func (m *mockLedger) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	args := m.Called(ctx, runID, result)
	return args.Error(0)
}

func (m *mockLedger) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunPhase), args.Error(1)
}

func (m *mockLedger) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	args := m.Called(ctx, phaseID, result)
	return args.Error(0)
}

// --- Recording sink ---

type recordingSink struct {
	mu        sync.Mutex
	events    []model.ProgressEvent
	summaries []*model.Summary
	failures  []error
}

func (s *recordingSink) Progress(ev model.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) Complete(summary *model.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
}

func (s *recordingSink) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func (s *recordingSink) terminals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries) + len(s.failures)
}
