package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/dedup"
	"github.com/sells-group/grant-cli/internal/model"
)

func sparseCandidate(name, source, sourceID string) model.Candidate {
	return model.Candidate{Name: name, Source: source, SourceID: sourceID}
}

func richCandidate(name, source, sourceID string) model.Candidate {
	return model.Candidate{
		Name:           name,
		Source:         source,
		SourceID:       sourceID,
		Operator:       "중소벤처기업부",
		SupportType:    "사업화",
		EndDate:        "2024-03-31",
		SupportScale:   "최대 1억원",
		Eligibility:    []string{"창업 3년 이내"},
		TargetAudience: "초기 창업기업",
	}
}

func phases(t *testing.T, cat *catalog.Catalog) map[string]model.Phase {
	t.Helper()
	programs, err := cat.ListPrograms(context.Background())
	require.NoError(t, err)
	out := make(map[string]model.Phase, len(programs))
	for _, p := range programs {
		out[p.Slug] = p.Phase
	}
	return out
}

func runOnce(t *testing.T, cat *catalog.Catalog, candidates ...model.Candidate) *model.Summary {
	t.Helper()
	o := New(Deps{
		Catalog: cat,
		Lister:  listerOf(candidates...),
		Pruner:  dedup.New(cat, dedup.Rules{}),
	}, Options{})
	summary, err := o.Run(context.Background(), model.RunOptions{}, nil)
	require.NoError(t, err)
	return summary
}

func TestRun_DedupIsStableAcrossRuns(t *testing.T) {
	a := sparseCandidate("Grant X", "bizinfo", "A1")
	b := richCandidate("Grant X", "kstartup", "B2")

	tests := []struct {
		name   string
		second []model.Candidate
	}{
		{"same order", []model.Candidate{a, b}},
		{"reversed order", []model.Candidate{b, a}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cat := newTestCatalog(t)

			first := runOnce(t, cat, a, b)
			assert.Equal(t, 2, first.Created)
			assert.Equal(t, 1, first.DuplicatesRemoved)
			assert.Equal(t, map[string]model.Phase{"grant-x-b2": model.PhaseIngested}, phases(t, cat))

			second := runOnce(t, cat, tc.second...)
			assert.Zero(t, second.Created)
			assert.Zero(t, second.DuplicatesRemoved)
			assert.Equal(t, 1, second.DuplicatesSkipped)
			assert.Equal(t, 1, second.Updated)
			assert.Equal(t, map[string]model.Phase{"grant-x-b2": model.PhaseIngested}, phases(t, cat))

			third := runOnce(t, cat, tc.second...)
			assert.Zero(t, third.Created)
			assert.Equal(t, []string{"grant-x-b2"}, slugs(t, cat))
		})
	}
}

func TestRun_RejectedSurvivorIsNotReplacedByDuplicate(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	a := sparseCandidate("Grant Y", "bizinfo", "A1")
	b := richCandidate("Grant Y", "kstartup", "B2")

	screener := &mockPreScreener{}
	screener.On("Screen", mock.Anything, testProfile, mock.MatchedBy(func(items []model.ScreenItem) bool {
		return len(items) == 1 && items[0].Slug == "grant-y-b2"
	})).Return([]model.ScreenVerdict{
		{Slug: "grant-y-b2", Pass: false, Reason: "지역 제한"},
	}, model.TokenUsage{}, nil).Once()

	first := New(Deps{
		Catalog:     cat,
		Lister:      listerOf(a, b),
		Pruner:      dedup.New(cat, dedup.Rules{}),
		PreScreener: screener,
	}, Options{Profile: testProfile})
	_, err := first.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Phase{"grant-y-b2": model.PhaseRejected}, phases(t, cat))

	summary := runOnce(t, cat, b, a)
	assert.Zero(t, summary.Created)
	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Equal(t, map[string]model.Phase{"grant-y-b2": model.PhaseRejected}, phases(t, cat))

	y := getProgram(t, cat, "grant-y-b2")
	assert.Equal(t, model.StatusRejected, y.Status)
	assert.Equal(t, "지역 제한", y.RejectReason)
	screener.AssertExpectations(t)
}

func TestRun_StoredProgramOutranksLaterDuplicate(t *testing.T) {
	cat := newTestCatalog(t)
	runOnce(t, cat, sparseCandidate("Grant Z", "s", "1"))

	// A later listing of the same title never displaces the stored program,
	// even when it carries more data.
	summary := runOnce(t, cat, sparseCandidate("Grant Z", "s", "1"), richCandidate("Grant Z", "k", "2"))
	assert.Zero(t, summary.Created)
	assert.Equal(t, 1, summary.DuplicatesSkipped)
	assert.Equal(t, []string{"grant-z-1"}, slugs(t, cat))
}
