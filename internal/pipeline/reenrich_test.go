package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/model"
)

func putEnriched(t *testing.T, cat *catalog.Catalog, slug, attachmentText string) *model.Program {
	t.Helper()
	ctx := context.Background()
	p := &model.Program{
		Slug:      slug,
		Title:     "Program " + slug,
		DetailURL: "https://example.go.kr/" + slug,
		Phase:     model.PhaseEnriched,
		Status:    model.StatusEnriched,
		Body:      "# Program\n",
	}
	if attachmentText != "" {
		a, err := cat.SaveAttachment(ctx, slug, "notice.pdf", "", []byte("%PDF-1.4"))
		require.NoError(t, err)
		require.NoError(t, cat.SaveAttachmentText(ctx, &a, attachmentText))
		p.Attachments = []model.Attachment{a}
	}
	p.QualityScore = catalog.Quality(p)
	require.NoError(t, cat.PutProgram(ctx, p))
	return p
}

func TestReenrich_ImprovesQuality(t *testing.T) {
	cat := newTestCatalog(t)
	putEnriched(t, cat, "grant-x", "평가기준: 기술성 40점")

	structurer := &mockStructurer{}
	structurer.On("Structure", mock.Anything, mock.MatchedBy(func(in model.EnrichInput) bool {
		return in.AttachmentText == "### notice.pdf\n\n평가기준: 기술성 40점"
	})).Return(&model.ProgramPatch{
		EvaluationCriteria: []string{"기술성 40점"},
		Eligibility:        []string{"중소기업"},
	}, model.TokenUsage{OutputTokens: 50}, nil).Once()

	o := New(Deps{Catalog: cat, Lister: listerOf(), Structurer: structurer}, Options{})
	res, err := o.Reenrich(context.Background(), "grant-x", ReenrichOptions{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Before)
	assert.Equal(t, 35, res.After)
	assert.Equal(t, 25, res.Delta)
	assert.Equal(t, 50, res.Usage.OutputTokens)

	got := getProgram(t, cat, "grant-x")
	assert.Equal(t, []string{"기술성 40점"}, got.EvaluationCriteria)
	assert.Equal(t, 35, got.QualityScore)
	structurer.AssertExpectations(t)
}

func TestReenrich_RecrawlFailureIsReported(t *testing.T) {
	cat := newTestCatalog(t)
	putEnriched(t, cat, "grant-x", "")

	crawler := &mockCrawler{}
	crawler.On("Crawl", mock.Anything, "https://example.go.kr/grant-x", true).
		Return(nil, errors.New("503")).Once()
	structurer := &mockStructurer{}
	structurer.On("Structure", mock.Anything, mock.Anything).
		Return(&model.ProgramPatch{}, model.TokenUsage{}, nil).Once()

	o := New(Deps{Catalog: cat, Lister: listerOf(), Crawler: crawler, Structurer: structurer}, Options{})
	res, err := o.Reenrich(context.Background(), "grant-x", ReenrichOptions{Recrawl: true})
	require.NoError(t, err)
	assert.Contains(t, res.CrawlError, "503")
	assert.Zero(t, res.Delta)
	crawler.AssertExpectations(t)
}

func TestReenrich_Errors(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()
	require.NoError(t, cat.PutProgram(ctx, &model.Program{
		Slug: "rejected", Title: "Rejected", Phase: model.PhaseRejected, Status: model.StatusRejected, Score: 3,
	}))

	o := New(Deps{Catalog: cat, Lister: listerOf(), Structurer: &mockStructurer{}}, Options{})

	_, err := o.Reenrich(ctx, "missing", ReenrichOptions{})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = o.Reenrich(ctx, "rejected", ReenrichOptions{})
	assert.True(t, errors.Is(err, model.ErrValidation))

	noAI := New(Deps{Catalog: cat, Lister: listerOf()}, Options{})
	_, err = noAI.Reenrich(ctx, "rejected", ReenrichOptions{})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestReenrichBulk_SelectsLowQualityWithAttachmentText(t *testing.T) {
	cat := newTestCatalog(t)
	putEnriched(t, cat, "a", "자격요건: 법인")
	putEnriched(t, cat, "b", "")
	putEnriched(t, cat, "c", "기타")

	structurer := &mockStructurer{}
	structurer.On("Structure", mock.Anything, inputFor("a")).
		Return(&model.ProgramPatch{Eligibility: []string{"법인"}}, model.TokenUsage{Cost: 0.01}, nil).Once()
	structurer.On("Structure", mock.Anything, inputFor("c")).
		Return(nil, model.TokenUsage{}, errors.New("bad json")).Once()

	o := New(Deps{Catalog: cat, Lister: listerOf(), Structurer: structurer}, Options{})
	res, err := o.ReenrichBulk(context.Background(), BulkOptions{QualityBelow: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Improved)
	assert.Equal(t, 1, res.Errors)
	structurer.AssertExpectations(t)
}
