package model

import "time"

// Stage labels and indices, in execution order.
const (
	StageIngest    = "ingest"
	StagePrescreen = "prescreen"
	StageCrawl     = "crawl"
	StageEnrich    = "enrich"
	StageScore     = "score"
)

// Stages lists the stage labels in execution order; the index is the stage index.
var Stages = []string{StageIngest, StagePrescreen, StageCrawl, StageEnrich, StageScore}

// StageIndex returns the position of a stage label, or -1.
func StageIndex(label string) int {
	for i, s := range Stages {
		if s == label {
			return i
		}
	}
	return -1
}

// ProgressEvent reports progress of one item inside a stage.
type ProgressEvent struct {
	Stage      string `json:"stage"`
	StageIndex int    `json:"stage_index"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Item       string `json:"item"`
}

// StageCount aggregates per-stage outcomes.
type StageCount struct {
	Processed int `json:"processed"`
	Errors    int `json:"errors"`
	Skipped   int `json:"skipped,omitempty"`
}

// Summary is the completion payload of a pipeline run.
type Summary struct {
	RunID             string                `json:"run_id"`
	Force             bool                  `json:"force"`
	Created           int                   `json:"created"`
	Updated           int                   `json:"updated"`
	DuplicatesRemoved int                   `json:"duplicates_removed"`
	DuplicatesSkipped int                   `json:"duplicates_skipped"`
	FilteredOut       int                   `json:"filtered_out"`
	Stages            map[string]StageCount `json:"stages"`
	Usage             TokenUsage            `json:"usage"`
	StartedAt         time.Time             `json:"started_at"`
	Duration          time.Duration         `json:"duration_ns"`
}

// NewSummary returns a Summary with every stage counter present.
func NewSummary(runID string, force bool) *Summary {
	s := &Summary{
		RunID:     runID,
		Force:     force,
		Stages:    make(map[string]StageCount, len(Stages)),
		StartedAt: time.Now().UTC(),
	}
	for _, st := range Stages {
		s.Stages[st] = StageCount{}
	}
	return s
}

// Count records one outcome for a stage.
func (s *Summary) Count(stage string, err error) {
	c := s.Stages[stage]
	if err != nil {
		c.Errors++
	} else {
		c.Processed++
	}
	s.Stages[stage] = c
}

// Skip records a skipped item for a stage.
func (s *Summary) Skip(stage string) {
	c := s.Stages[stage]
	c.Skipped++
	s.Stages[stage] = c
}
