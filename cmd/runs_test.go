package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/grant-cli/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Options:   model.RunOptions{Trigger: "cli"},
			Status:    model.RunStatusComplete,
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Options:   model.RunOptions{Trigger: "api", Force: true},
			Status:    model.RunStatusCrawling,
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "TRIGGER")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "crawling")
	assert.Contains(t, output, "true")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestFormatRunsList_FailedRunTruncatesError(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{{
		ID:        "abc12345",
		Status:    model.RunStatusFailed,
		Result:    &model.RunResult{Error: "pipeline: list candidates: listing: all 3 sources failed with status 503"},
		CreatedAt: now,
		UpdatedAt: now.Add(30 * time.Second),
	}}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "pipeline: list candidates: listing: a...")
	assert.NotContains(t, output, "status 503")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "1",
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Summary: &model.Summary{Created: 4, Updated: 1, Usage: model.TokenUsage{Cost: 0.25}}},
			CreatedAt: now.Add(-time.Hour),
			UpdatedAt: now.Add(-time.Hour + 10*time.Second),
		},
		{
			ID:        "2",
			Status:    model.RunStatusComplete,
			Result:    &model.RunResult{Summary: &model.Summary{Created: 1, Usage: model.TokenUsage{Cost: 0.5}}},
			CreatedAt: now.Add(-2 * time.Hour),
			UpdatedAt: now.Add(-2*time.Hour + 20*time.Second),
		},
		{ID: "3", Status: model.RunStatusFailed, Result: &model.RunResult{Error: "boom"}, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "4", Status: model.RunStatusScoring, CreatedAt: now.Add(-time.Minute)},
		{ID: "old", Status: model.RunStatusComplete, CreatedAt: now.Add(-48 * time.Hour)},
	}

	s := computeRunStats(runs, 24*time.Hour, now)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Other)
	assert.Equal(t, 5, s.Created)
	assert.Equal(t, 1, s.Updated)
	assert.InDelta(t, 0.75, s.CostUSD, 1e-9)
	assert.InDelta(t, 15.0, s.AvgDurSecs, 1e-9)

	all := computeRunStats(runs, 0, now)
	assert.Equal(t, 5, all.Total)
	assert.Equal(t, 3, all.Complete)
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil, time.Hour, time.Now())
	assert.Zero(t, s.Total)
	assert.Zero(t, s.AvgDurSecs)
}

func TestFormatRunStats(t *testing.T) {
	var buf bytes.Buffer
	formatRunStats(&buf, runStats{Total: 3, Complete: 2, Failed: 1, Created: 7, CostUSD: 1.5, AvgDurSecs: 12.34})

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "Programs created:")
	assert.Contains(t, output, "$1.5000")
	assert.Contains(t, output, "12.3s")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000"))
	assert.Equal(t, "short", truncateID("short"))
}
