package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/store"
)

// collectLimit bounds how many recent runs a snapshot scans.
const collectLimit = 10000

// Snapshot holds a point-in-time view of pipeline health.
type Snapshot struct {
	// Runs created within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsActive   int     `json:"runs_active"`
	FailRate     float64 `json:"fail_rate"`
	CostUSD      float64 `json:"cost_usd"`
	Tokens       int     `json:"tokens"`
	Created      int     `json:"programs_created"`
	Updated      int     `json:"programs_updated"`

	// Runs still not terminal after the stuck threshold.
	Stuck []string `json:"stuck,omitempty"`

	LastError     string    `json:"last_error,omitempty"`
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the slice of the run ledger the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers snapshots from the run ledger.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new snapshot collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarizes the runs created within the lookback window. Runs
// that are neither complete nor failed after stuckAfter are listed as stuck.
func (c *Collector) Collect(ctx context.Context, lookbackHours int, stuckAfter time.Duration) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{LookbackHours: lookbackHours, CollectedAt: now}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{Limit: collectLimit})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	// Runs arrive newest first.
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			break
		}
		snap.RunsTotal++
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
			if snap.LastError == "" && r.Result != nil {
				snap.LastError = r.Result.Error
			}
		default:
			snap.RunsActive++
			if stuckAfter > 0 && now.Sub(r.UpdatedAt) > stuckAfter {
				snap.Stuck = append(snap.Stuck, r.ID)
			}
		}
		if r.Result != nil && r.Result.Summary != nil {
			s := r.Result.Summary
			snap.CostUSD += s.Usage.Cost
			snap.Tokens += s.Usage.InputTokens + s.Usage.OutputTokens
			snap.Created += s.Created
			snap.Updated += s.Updated
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	return snap, nil
}
