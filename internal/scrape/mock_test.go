package scrape

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/pkg/jina"
)

// --- Scraper Mock ---

type mockScraper struct {
	mock.Mock
	name string
}

func (m *mockScraper) Name() string { return m.name }

func (m *mockScraper) Scrape(ctx context.Context, url string) (*model.CrawledPage, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CrawledPage), args.Error(1)
}

// --- Cache Mock ---

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetCachedCrawl(ctx context.Context, url string) (*model.CrawlCache, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CrawlCache), args.Error(1)
}

func (m *mockCache) SetCachedCrawl(ctx context.Context, url string, page *model.CrawledPage, ttl time.Duration) error {
	args := m.Called(ctx, url, page, ttl)
	return args.Error(0)
}

// --- Jina Client Mock ---

type mockJina struct {
	mock.Mock
}

func (m *mockJina) Read(ctx context.Context, targetURL string) (*jina.ReadResponse, error) {
	args := m.Called(ctx, targetURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jina.ReadResponse), args.Error(1)
}
