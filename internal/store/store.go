// Package store is the run ledger: pipeline runs, their stages, and the
// detail-page crawl cache. SQLite is the default backend; Postgres is used
// when a database URL is configured.
package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Trigger string          `json:"trigger,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 100

// Store defines the persistence interface for the run ledger.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, opts model.RunOptions) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Crawl cache. GetCachedCrawl returns nil, nil on a miss or expired entry.
	GetCachedCrawl(ctx context.Context, url string) (*model.CrawlCache, error)
	SetCachedCrawl(ctx context.Context, url string, page *model.CrawledPage, ttl time.Duration) error
	DeleteExpiredCrawls(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// listRunsQuery builds the filtered, newest-first run listing.
func listRunsQuery(builder sq.StatementBuilderType, filter RunFilter) (string, []any, error) {
	q := builder.
		Select("id", "options", "status", "result", "created_at", "updated_at").
		From("runs").
		OrderBy("created_at DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Trigger != "" {
		q = q.Where(sq.Eq{"run_trigger": filter.Trigger})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	q = q.Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return "", nil, eris.Wrap(err, "store: build list runs query")
	}
	return sqlStr, args, nil
}
