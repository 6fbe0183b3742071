// Package pipeline drives grant programs through the phased enrichment run:
// ingest, pre-screen, shallow crawl, deep enrichment and fit scoring.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/progress"
	"github.com/sells-group/grant-cli/internal/resilience"
)

// Defaults applied by New when an option is left zero.
const (
	DefaultStrategyThreshold  = 70
	DefaultRejectScore        = 3
	DefaultMaxAttachments     = 5
	DefaultMaxAttachmentBytes = 20 << 20
	DefaultMaxInputChars      = 60000
)

var errEmptyResult = eris.New("pipeline: collaborator returned no result")

// DefaultAttachmentExtensions are the link suffixes Stage C downloads.
var DefaultAttachmentExtensions = []string{".pdf", ".hwp", ".hwpx", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".zip"}

// Deps are the collaborators of an Orchestrator. Catalog and Lister are
// required; a nil collaborator skips the stage that needs it.
type Deps struct {
	Catalog     *catalog.Catalog
	Lister      Lister
	Pruner      Pruner
	Crawler     Crawler
	Downloader  Downloader
	Extractor   ContentExtractor
	PreScreener PreScreener
	Structurer  Structurer
	Scorer      FitScorer
	Strategist  StrategyWriter
	Ledger      Ledger
	Scheduler   *resilience.Scheduler
}

// Options tune stage behaviour.
type Options struct {
	Profile              model.Profile
	StrategyThreshold    int
	RejectScore          int
	MaxAttachments       int
	MaxAttachmentBytes   int64
	AttachmentExtensions []string
	MaxInputChars        int
}

func (o Options) withDefaults() Options {
	if o.StrategyThreshold <= 0 {
		o.StrategyThreshold = DefaultStrategyThreshold
	}
	if o.RejectScore <= 0 {
		o.RejectScore = DefaultRejectScore
	}
	if o.MaxAttachments <= 0 {
		o.MaxAttachments = DefaultMaxAttachments
	}
	if o.MaxAttachmentBytes <= 0 {
		o.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	if len(o.AttachmentExtensions) == 0 {
		o.AttachmentExtensions = DefaultAttachmentExtensions
	}
	if o.MaxInputChars <= 0 {
		o.MaxInputChars = DefaultMaxInputChars
	}
	return o
}

// Orchestrator runs the enrichment stages against the catalog.
type Orchestrator struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	return &Orchestrator{
		deps: deps,
		opts: opts.withDefaults(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// runState is the bookkeeping shared by the stages of one run.
type runState struct {
	id      string
	force   bool
	sink    progress.Sink
	summary *model.Summary
	log     *zap.Logger

	// stored is the program set as it stood before ingest.
	stored []*model.Program
}

func (rs *runState) progress(stage string, current, total int, item string) {
	rs.sink.Progress(model.ProgressEvent{
		Stage:      stage,
		StageIndex: model.StageIndex(stage),
		Current:    current,
		Total:      total,
		Item:       item,
	})
}

func (rs *runState) addUsage(pr *model.PhaseResult, u model.TokenUsage) {
	pr.TokenUsage.Add(u)
	rs.summary.Usage.Add(u)
}

// stageStatus maps each stage onto the run status reported while it executes.
var stageStatus = map[string]model.RunStatus{
	model.StageIngest:    model.RunStatusIngesting,
	model.StagePrescreen: model.RunStatusScreening,
	model.StageCrawl:     model.RunStatusCrawling,
	model.StageEnrich:    model.RunStatusEnriching,
	model.StageScore:     model.RunStatusScoring,
}

// Run executes stages A through E in order. The sink receives progress events
// and exactly one terminal payload: Complete with the summary, or Fail with
// the fatal error that aborted the run.
func (o *Orchestrator) Run(ctx context.Context, opts model.RunOptions, sink progress.Sink) (*model.Summary, error) {
	if sink == nil {
		sink = progress.Nop{}
	}
	summary, err := o.run(ctx, opts, sink)
	if err != nil {
		sink.Fail(err)
		return nil, err
	}
	sink.Complete(summary)
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, opts model.RunOptions, sink progress.Sink) (*model.Summary, error) {
	if o.deps.Catalog == nil || o.deps.Lister == nil {
		return nil, model.Fatal("configure run", eris.New("pipeline: catalog and lister are required"))
	}

	runID := uuid.NewString()
	if o.deps.Ledger != nil {
		run, err := o.deps.Ledger.CreateRun(ctx, opts)
		if err != nil {
			return nil, model.Fatal("create run", err)
		}
		runID = run.ID
	}

	rs := &runState{
		id:      runID,
		force:   opts.Force,
		sink:    sink,
		summary: model.NewSummary(runID, opts.Force),
		log:     zap.L().With(zap.String("run_id", runID), zap.Bool("force", opts.Force)),
	}
	rs.log.Info("pipeline: starting run", zap.String("trigger", opts.Trigger))

	// The store must answer before anything is ingested.
	stored, err := o.deps.Catalog.ListPrograms(ctx)
	if err != nil {
		return nil, o.failRun(ctx, rs, model.Fatal("list programs", err))
	}
	rs.stored = stored

	stages := []struct {
		name string
		fn   func(context.Context, *runState, *model.PhaseResult) error
	}{
		{model.StageIngest, o.ingest},
		{model.StagePrescreen, o.prescreen},
		{model.StageCrawl, o.crawl},
		{model.StageEnrich, o.enrich},
		{model.StageScore, o.score},
	}
	for _, st := range stages {
		if err := o.trackStage(ctx, rs, st.name, st.fn); err != nil {
			return nil, o.failRun(ctx, rs, err)
		}
	}

	rs.summary.Duration = time.Since(rs.summary.StartedAt)
	o.finishRun(ctx, rs)
	rs.log.Info("pipeline: run complete",
		zap.Int("created", rs.summary.Created),
		zap.Int("updated", rs.summary.Updated),
		zap.Int("duplicates_removed", rs.summary.DuplicatesRemoved),
		zap.Int("duplicates_skipped", rs.summary.DuplicatesSkipped),
		zap.Int("filtered_out", rs.summary.FilteredOut),
		zap.Float64("cost_usd", rs.summary.Usage.Cost),
		zap.Duration("duration", rs.summary.Duration),
	)
	return rs.summary, nil
}

// trackStage records one stage in the ledger, times it and logs the outcome.
// Only fatal errors are returned; other stage failures are recorded and the
// run moves on.
func (o *Orchestrator) trackStage(ctx context.Context, rs *runState, stage string, fn func(context.Context, *runState, *model.PhaseResult) error) error {
	ledgerCtx := context.WithoutCancel(ctx)
	o.setStatus(ledgerCtx, rs, stageStatus[stage])

	var phase *model.RunPhase
	if o.deps.Ledger != nil {
		var err error
		phase, err = o.deps.Ledger.CreatePhase(ledgerCtx, rs.id, stage)
		if err != nil {
			rs.log.Warn("pipeline: failed to create phase", zap.String("stage", stage), zap.Error(err))
		}
	}

	pr := &model.PhaseResult{Name: stage, Metadata: map[string]any{}}
	start := time.Now()
	fnErr := fn(ctx, rs, pr)
	pr.Duration = time.Since(start).Milliseconds()

	counts := rs.summary.Stages[stage]
	pr.Metadata["processed"] = counts.Processed
	pr.Metadata["errors"] = counts.Errors
	pr.Metadata["skipped"] = counts.Skipped

	switch {
	case fnErr != nil:
		pr.Status = model.PhaseStatusFailed
		pr.Error = fnErr.Error()
		rs.log.Error("pipeline: stage failed",
			zap.String("stage", stage),
			zap.Int64("duration_ms", pr.Duration),
			zap.Error(fnErr),
		)
	case pr.Status == model.PhaseStatusSkipped:
		rs.log.Info("pipeline: stage skipped", zap.String("stage", stage))
	default:
		pr.Status = model.PhaseStatusComplete
		rs.log.Info("pipeline: stage complete",
			zap.String("stage", stage),
			zap.Int64("duration_ms", pr.Duration),
			zap.Int("processed", counts.Processed),
			zap.Int("errors", counts.Errors),
		)
	}

	if phase != nil {
		if err := o.deps.Ledger.CompletePhase(ledgerCtx, phase.ID, pr); err != nil {
			rs.log.Warn("pipeline: failed to complete phase", zap.String("stage", stage), zap.Error(err))
		}
	}

	if model.IsFatal(fnErr) {
		return fnErr
	}
	return nil
}

func (o *Orchestrator) setStatus(ctx context.Context, rs *runState, status model.RunStatus) {
	if o.deps.Ledger == nil || status == "" {
		return
	}
	if err := o.deps.Ledger.UpdateRunStatus(ctx, rs.id, status); err != nil {
		rs.log.Warn("pipeline: failed to update status", zap.Error(err))
	}
}

func (o *Orchestrator) failRun(ctx context.Context, rs *runState, err error) error {
	rs.log.Error("pipeline: run failed", zap.Error(err))
	if o.deps.Ledger == nil {
		return err
	}
	ledgerCtx := context.WithoutCancel(ctx)
	if uerr := o.deps.Ledger.UpdateRunResult(ledgerCtx, rs.id, &model.RunResult{Error: err.Error()}); uerr != nil {
		rs.log.Warn("pipeline: failed to record run result", zap.Error(uerr))
	}
	o.setStatus(ledgerCtx, rs, model.RunStatusFailed)
	return err
}

func (o *Orchestrator) finishRun(ctx context.Context, rs *runState) {
	if o.deps.Ledger == nil {
		return
	}
	ledgerCtx := context.WithoutCancel(ctx)
	if err := o.deps.Ledger.UpdateRunResult(ledgerCtx, rs.id, &model.RunResult{Summary: rs.summary}); err != nil {
		rs.log.Warn("pipeline: failed to record run result", zap.Error(err))
	}
	o.setStatus(ledgerCtx, rs, model.RunStatusComplete)
}

// canceled turns a cancelled context into a run-aborting error.
func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return model.Fatal("run canceled", err)
	}
	return nil
}

// call runs fn on a scheduler lane.
func (o *Orchestrator) call(ctx context.Context, lane string, fn func(ctx context.Context) error) error {
	return o.deps.Scheduler.Do(ctx, lane, fn)
}

// listPrograms reads every program for a stage. A failure here fails the
// stage, not the run.
func (o *Orchestrator) listPrograms(ctx context.Context, rs *runState, stage string) ([]*model.Program, error) {
	programs, err := o.deps.Catalog.ListPrograms(ctx)
	if err != nil {
		rs.summary.Count(stage, err)
		return nil, eris.Wrapf(err, "pipeline: list programs for %s", stage)
	}
	return programs, nil
}

// save recomputes the quality score and writes p.
func (o *Orchestrator) save(ctx context.Context, p *model.Program) error {
	p.QualityScore = catalog.Quality(p)
	return o.deps.Catalog.PutProgram(ctx, p)
}

func (o *Orchestrator) stamp() *time.Time {
	t := o.now()
	return &t
}
