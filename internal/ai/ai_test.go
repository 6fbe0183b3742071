package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-cli/internal/cost"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/pkg/anthropic"
)

var profile = model.Profile{Name: "그랜트랩", Industry: "SaaS", Region: "서울", Maturity: "초기창업"}

func newCollaborators(llm anthropic.Client) *Collaborators {
	return New(llm, cost.NewCalculator(cost.Rates{Anthropic: map[string]cost.ModelRate{
		"test-model": {Input: 1, Output: 10},
	}}), Options{ScreenModel: "test-model", StructureModel: "test-model", ScoreModel: "test-model", StrategyModel: "test-model"})
}

func TestScreen_FiltersUnknownIDs(t *testing.T) {
	llm := &mockClient{}
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return len(req.System) == 2 &&
			strings.Contains(req.System[1].Text, "- Industry: SaaS") &&
			req.System[1].CacheControl != nil &&
			strings.Contains(req.Messages[0].Content, `"id":"grant-a"`)
	})).Return(reply("```json\n"+`{"verdicts":[{"id":"grant-a","pass":false,"reason":"지역 제한"},{"id":"ghost","pass":false}]}`+"\n```"), nil).Once()

	verdicts, usage, err := newCollaborators(llm).Screener.Screen(context.Background(), profile, []model.ScreenItem{
		{Slug: "grant-a", Title: "부산 지역 창업 지원"},
		{Slug: "grant-b", Title: "SaaS 바우처"},
	})
	require.NoError(t, err)
	require.Len(t, verdicts, 1)
	assert.Equal(t, model.ScreenVerdict{Slug: "grant-a", Pass: false, Reason: "지역 제한"}, verdicts[0])
	assert.InDelta(t, 2.0, usage.Cost, 1e-9)
	llm.AssertExpectations(t)
}

func TestScreen_EmptyItemsSkipsCall(t *testing.T) {
	llm := &mockClient{}
	verdicts, _, err := newCollaborators(llm).Screener.Screen(context.Background(), profile, nil)
	require.NoError(t, err)
	assert.Empty(t, verdicts)
	llm.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestScreen_CallError(t *testing.T) {
	llm := &mockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()

	_, _, err := newCollaborators(llm).Screener.Screen(context.Background(), profile, []model.ScreenItem{{Slug: "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai: prescreen call")
}

func TestStructure_NormalizesPatch(t *testing.T) {
	llm := &mockClient{}
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		c := req.Messages[0].Content
		return strings.HasPrefix(c, "# Grant X") &&
			strings.Contains(c, "## Attachments\n\n평가기준") &&
			!strings.Contains(c, "## Detail page")
	})).Return(reply(`Here is the data: {"operator":"중소벤처기업부","start_date":"2024.03.04","end_date":"2024-03-29",
"support_scale":"최대 5천만원","eligibility":["중소기업"," "],"extra":{"keywords":[],"note":"야간 접수"}}`), nil).Once()

	patch, _, err := newCollaborators(llm).Structurer.Structure(context.Background(), model.EnrichInput{
		Program:        &model.Program{Title: "Grant X"},
		RecordText:     "listing",
		AttachmentText: "평가기준: 기술성",
	})
	require.NoError(t, err)
	assert.Equal(t, "중소벤처기업부", patch.Operator)
	assert.Empty(t, patch.StartDate)
	assert.Equal(t, "2024-03-29", patch.EndDate)
	assert.Equal(t, int64(50_000_000), patch.MaxFunding)
	assert.Equal(t, []string{"중소기업"}, patch.Eligibility)
	assert.Equal(t, map[string]any{"note": "야간 접수"}, patch.Extra)
}

func TestStructure_InvalidJSON(t *testing.T) {
	llm := &mockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(reply("no structured data"), nil).Once()

	_, usage, err := newCollaborators(llm).Structurer.Structure(context.Background(), model.EnrichInput{RecordText: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai: parse structure response")
	assert.Equal(t, 1000000, usage.InputTokens, "usage is reported even on failure")
}

func TestScore_SanitizesDimensions(t *testing.T) {
	llm := &mockClient{}
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "- Eligibility: 중소기업; 서울 소재")
	})).Return(reply(`{"score": 140, "dimensions": [
		{"name": "Timing", "weight": 9, "score": 50},
		{"name": "eligibility", "weight": 0.3, "score": 120},
		{"name": "vibes", "weight": 1, "score": 0},
		{"name": "industry_fit", "weight": 0.25, "score": -5}
	], "strengths": ["서울 소재", ""], "summary": "적합"}`), nil).Once()

	fit, _, err := newCollaborators(llm).Scorer.Score(context.Background(), profile, &model.Program{
		Title: "Grant", Eligibility: []string{"중소기업", "서울 소재"},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Dimension{
		{Name: "eligibility", Weight: 0.30, Score: 100},
		{Name: "industry_fit", Weight: 0.25, Score: 0},
		{Name: "funding_value", Weight: 0.20, Score: 100},
		{Name: "feasibility", Weight: 0.15, Score: 100},
		{Name: "timing", Weight: 0.10, Score: 50},
	}, fit.Dimensions)
	assert.Equal(t, 100, fit.Score)
	assert.Equal(t, []string{"서울 소재"}, fit.Strengths)
	assert.Equal(t, "test-model", fit.Model)
	assert.Equal(t, 70, fit.WeightedScore())
}

func TestScore_RepairsTruncatedReply(t *testing.T) {
	llm := &mockClient{}
	resp := reply(`{"score": 72, "dimensions": [], "strengths": ["기술력", "팀 구성`)
	resp.StopReason = "max_tokens"
	llm.On("CreateMessage", mock.Anything, mock.Anything).Return(resp, nil).Once()

	fit, _, err := newCollaborators(llm).Scorer.Score(context.Background(), profile, &model.Program{Title: "Grant"})
	require.NoError(t, err)
	assert.Equal(t, 72, fit.WeightedScore())
	require.Len(t, fit.Dimensions, 5)
	for _, d := range fit.Dimensions {
		assert.Equal(t, 72, d.Score, d.Name)
	}
	assert.Equal(t, []string{"기술력", "팀 구성"}, fit.Strengths)
}

func TestStrategy_StripsFence(t *testing.T) {
	llm := &mockClient{}
	llm.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "## Fit assessment (80/100)") &&
			strings.Contains(req.Messages[0].Content, "### Key actions\n- 서류 준비") &&
			req.MaxTokens == 8192
	})).Return(reply("```markdown\n# 지원 전략 요약\n\n내용\n```"), nil).Once()

	res, _, err := newCollaborators(llm).Strategist.Write(context.Background(), profile, &model.Program{Title: "Grant"},
		&model.FitResult{Score: 80, KeyActions: []string{"서류 준비"}})
	require.NoError(t, err)
	assert.Equal(t, "# 지원 전략 요약\n\n내용\n", res.Markdown)
	assert.Equal(t, "test-model", res.Model)
}

func TestComplete_EmptyText(t *testing.T) {
	llm := &mockClient{}
	llm.On("CreateMessage", mock.Anything, mock.Anything).
		Return(&anthropic.MessageResponse{StopReason: "refusal"}, nil).Once()

	_, _, err := newCollaborators(llm).Strategist.Write(context.Background(), profile, &model.Program{Title: "Grant"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop_reason=refusal")
}

func TestOptionsDefaults(t *testing.T) {
	c := New(&mockClient{}, nil, Options{})
	assert.Equal(t, DefaultScreenModel, c.Screener.model)
	assert.Equal(t, DefaultScoreModel, c.Scorer.model)
	assert.Equal(t, int64(4096), c.Structurer.maxTokens)
	assert.Equal(t, int64(8192), c.Strategist.maxTokens)
}
