package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/grant-cli/internal/model"
)

func TestPatchFromPage(t *testing.T) {
	page := &model.CrawledPage{Text: "접수기간: 2024. 3. 4 ~ 2024.03.29\n문의처: 02-2100-1234, grant@example.go.kr"}
	patch := patchFromPage(page)
	assert.Equal(t, "2024-03-04", patch.StartDate)
	assert.Equal(t, "2024-03-29", patch.EndDate)
	assert.Equal(t, "02-2100-1234, grant@example.go.kr", patch.Contact)

	single := patchFromPage(&model.CrawledPage{Text: "마감 2024년 5월 1일"})
	assert.Empty(t, single.StartDate)
	assert.Empty(t, single.EndDate)
}

func TestAppendDetail_Once(t *testing.T) {
	p := &model.Program{Body: "# Grant\n\nlisting text\n"}
	appendDetail(p, "detail one")
	appendDetail(p, "detail two")

	assert.Equal(t, "# Grant\n\nlisting text\n\n## Detail Page\n\ndetail one\n", p.Body)
	assert.Equal(t, "# Grant\n\nlisting text", recordText(p.Body))
	assert.Equal(t, "detail one", detailText(p.Body))
}

func TestIsAttachmentLink(t *testing.T) {
	o := New(Deps{}, Options{})
	assert.True(t, o.isAttachmentLink(model.Link{URL: "https://x.kr/files/notice.PDF"}))
	assert.True(t, o.isAttachmentLink(model.Link{URL: "https://x.kr/download?id=3", Text: "공고문.hwp"}))
	assert.False(t, o.isAttachmentLink(model.Link{URL: "https://x.kr/board/view", Text: "목록"}))
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "공고문.pdf", fileNameFromURL("https://x.kr/files/%EA%B3%B5%EA%B3%A0%EB%AC%B8.pdf"))
	assert.Equal(t, "attachment", fileNameFromURL("https://x.kr/"))
}

func TestCrawlAndEnrich_AttachmentLifecycle(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	crawler := &mockCrawler{}
	crawler.On("Crawl", mock.Anything, "https://example.go.kr/x", false).Return(&model.CrawledPage{
		Text: "상세 공고",
		Links: []model.Link{
			{URL: "https://example.go.kr/files/notice.pdf", Text: "공고문"},
			{URL: "https://example.go.kr/files/form.hwp", Text: "신청서"},
			{URL: "https://example.go.kr/board", Text: "목록"},
		},
	}, nil).Once()

	downloader := &mockDownloader{}
	downloader.On("Download", mock.Anything, "https://example.go.kr/files/notice.pdf").
		Return(&model.Download{Data: []byte("%PDF-1.4 notice")}, nil).Once()
	downloader.On("Download", mock.Anything, "https://example.go.kr/files/form.hwp").
		Return(nil, errors.New("404")).Once()

	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, "notice.pdf", []byte("%PDF-1.4 notice")).
		Return(model.Extraction{Type: "pdf", Text: "지원대상: 중소기업"}, nil).Once()

	structurer := &mockStructurer{}
	structurer.On("Structure", mock.Anything, mock.MatchedBy(func(in model.EnrichInput) bool {
		return in.AttachmentText == "### notice.pdf\n\n지원대상: 중소기업" && in.CrawledText == "상세 공고"
	})).Return(&model.ProgramPatch{TargetAudience: "중소기업"}, model.TokenUsage{}, nil).Once()

	o := New(Deps{
		Catalog:    cat,
		Lister:     listerOf(model.Candidate{Name: "Grant X", Source: "s", DetailURL: "https://example.go.kr/x"}),
		Crawler:    crawler,
		Downloader: downloader,
		Extractor:  extractor,
		Structurer: structurer,
	}, Options{})

	summary, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stages[model.StageCrawl].Processed)
	assert.Equal(t, 1, summary.Stages[model.StageEnrich].Processed)

	x := getProgram(t, cat, "grant-x")
	require.Len(t, x.Attachments, 1)
	assert.True(t, x.Attachments[0].Analyzed)
	assert.Equal(t, "https://example.go.kr/files/notice.pdf", x.Attachments[0].SourceURL)
	assert.Equal(t, "중소기업", x.TargetAudience)
	assert.Equal(t, model.PhaseEnriched, x.Phase)

	text, err := cat.AttachmentText(ctx, x.Attachments[0])
	require.NoError(t, err)
	assert.Equal(t, "지원대상: 중소기업", text)

	crawler.AssertExpectations(t)
	downloader.AssertExpectations(t)
	extractor.AssertExpectations(t)
	structurer.AssertExpectations(t)
}

func TestEnrich_FailureKeepsExtractedAttachments(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	p := &model.Program{Slug: "grant-x", Title: "Grant X", Phase: model.PhaseCrawled, Status: model.StatusCrawled}
	a, err := cat.SaveAttachment(ctx, "grant-x", "photo.png", "", []byte("\x89PNG\r\n\x1a\n"))
	require.NoError(t, err)
	p.Attachments = []model.Attachment{a}
	require.NoError(t, cat.PutProgram(ctx, p))

	extractor := &mockExtractor{}
	extractor.On("Extract", mock.Anything, "photo.png", mock.Anything).
		Return(model.Extraction{Type: "image"}, nil).Once()
	structurer := &mockStructurer{}
	structurer.On("Structure", mock.Anything, mock.Anything).
		Return(nil, model.TokenUsage{}, errors.New("rate limited")).Once()

	o := New(Deps{Catalog: cat, Lister: listerOf(), Extractor: extractor, Structurer: structurer}, Options{})
	summary, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stages[model.StageEnrich].Errors)

	got := getProgram(t, cat, "grant-x")
	assert.Equal(t, model.PhaseCrawled, got.Phase)
	require.Len(t, got.Attachments, 1)
	assert.True(t, got.Attachments[0].Analyzed, "an image is retained with empty text")
}

func TestBoundInput(t *testing.T) {
	o := New(Deps{}, Options{MaxInputChars: 10})
	in := model.EnrichInput{RecordText: "123456", CrawledText: "abcdef", AttachmentText: "zzz"}
	o.boundInput(&in)
	assert.Equal(t, "123456", in.RecordText)
	assert.Equal(t, "abcd", in.CrawledText)
	assert.Empty(t, in.AttachmentText)
}

func TestScoreEligible(t *testing.T) {
	tests := []struct {
		name  string
		p     model.Program
		force bool
		want  bool
	}{
		{"crawled unscored", model.Program{Phase: model.PhaseCrawled}, false, true},
		{"ingested with url", model.Program{Phase: model.PhaseIngested, DetailURL: "https://x.kr"}, false, false},
		{"ingested without url", model.Program{Phase: model.PhaseIngested}, false, true},
		{"already scored", model.Program{Phase: model.PhaseEnriched, Score: 60}, false, false},
		{"already scored forced", model.Program{Phase: model.PhaseEnriched, Score: 60}, true, true},
		{"rejected forced", model.Program{Phase: model.PhaseRejected, Score: 3}, true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, scoreEligible(&tc.p, tc.force))
		})
	}
}

func TestScore_StoredAnalysisIsReusedWithoutForce(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	analyzedAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, cat.PutProgram(ctx, &model.Program{
		Slug: "grant-x", Title: "Grant X", Phase: model.PhaseCrawled, Status: model.StatusCrawled,
	}))
	require.NoError(t, cat.PutAnalysis(ctx, &model.Analysis{
		Slug:        "grant-x",
		ProgramSlug: "grant-x",
		Score:       82,
		KeyActions:  []string{"사업계획서 보완"},
		AnalyzedAt:  analyzedAt,
		Body:        "# Fit analysis\n",
	}))

	scorer := &mockScorer{}
	strategist := &mockStrategist{}
	strategist.On("Write", mock.Anything, testProfile, forSlug("grant-x"), mock.MatchedBy(func(fit *model.FitResult) bool {
		return fit.Score == 82 && len(fit.KeyActions) == 1
	})).Return(&model.StrategyResult{Markdown: "# 전략\n"}, model.TokenUsage{}, nil).Once()

	o := New(Deps{Catalog: cat, Lister: listerOf(), Scorer: scorer, Strategist: strategist}, Options{Profile: testProfile})
	summary, err := o.Run(ctx, model.RunOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stages[model.StageScore].Processed)
	scorer.AssertNotCalled(t, "Score", mock.Anything, mock.Anything, mock.Anything)

	got := getProgram(t, cat, "grant-x")
	a, err := cat.GetAnalysis(ctx, "grant-x")
	require.NoError(t, err)
	assert.Equal(t, a.Score, got.Score)
	assert.Equal(t, 82, got.Score)
	require.NotNil(t, got.AnalyzedAt)
	assert.True(t, analyzedAt.Equal(*got.AnalyzedAt))

	s, err := cat.GetStrategy(ctx, "grant-x")
	require.NoError(t, err)
	assert.Equal(t, 82, s.Score)
	strategist.AssertExpectations(t)
}
