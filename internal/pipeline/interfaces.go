package pipeline

import (
	"context"

	"github.com/sells-group/grant-cli/internal/model"
)

// Lister fetches candidate records from the configured listing sources.
type Lister interface {
	List(ctx context.Context) ([]model.Candidate, error)
}

// Crawler fetches and extracts a program's detail page. fresh bypasses any cache.
type Crawler interface {
	Crawl(ctx context.Context, url string, fresh bool) (*model.CrawledPage, error)
}

// Downloader fetches an attachment binary linked from a detail page.
type Downloader interface {
	Download(ctx context.Context, url string) (*model.Download, error)
}

// ContentExtractor turns an attachment binary into plain text.
type ContentExtractor interface {
	Extract(ctx context.Context, fileName string, data []byte) (model.Extraction, error)
}

// PreScreener judges a batch of programs against the operator profile in one call.
type PreScreener interface {
	Screen(ctx context.Context, profile model.Profile, items []model.ScreenItem) ([]model.ScreenVerdict, model.TokenUsage, error)
}

// Structurer extracts structured fields from a program's collected text.
type Structurer interface {
	Structure(ctx context.Context, in model.EnrichInput) (*model.ProgramPatch, model.TokenUsage, error)
}

// FitScorer scores a program against the operator profile.
type FitScorer interface {
	Score(ctx context.Context, profile model.Profile, p *model.Program) (*model.FitResult, model.TokenUsage, error)
}

// StrategyWriter drafts an application strategy for a high-scoring program.
type StrategyWriter interface {
	Write(ctx context.Context, profile model.Profile, p *model.Program, fit *model.FitResult) (*model.StrategyResult, model.TokenUsage, error)
}

// Pruner removes duplicate and out-of-scope programs after ingest. Key maps a
// title onto the value duplicates share.
type Pruner interface {
	Key(title string) string
	Dedup(ctx context.Context) (int, error)
	Filter(ctx context.Context) (int, error)
}

// Ledger records runs and their stages.
type Ledger interface {
	CreateRun(ctx context.Context, opts model.RunOptions) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
}
