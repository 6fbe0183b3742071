package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/model"
)

// DefaultCacheTTL is how long a crawled page is reused.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores crawled pages by URL. GetCachedCrawl returns nil, nil on a
// miss or an expired entry.
type Cache interface {
	GetCachedCrawl(ctx context.Context, url string) (*model.CrawlCache, error)
	SetCachedCrawl(ctx context.Context, url string, page *model.CrawledPage, ttl time.Duration) error
}

// Crawler serves detail pages from a cache, falling back to a Scraper. It
// satisfies the pipeline's crawler collaborator.
type Crawler struct {
	scraper Scraper
	cache   Cache
	ttl     time.Duration
}

// NewCrawler creates a Crawler. cache may be nil, which disables caching.
func NewCrawler(scraper Scraper, cache Cache, ttl time.Duration) *Crawler {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Crawler{scraper: scraper, cache: cache, ttl: ttl}
}

// Crawl returns the page at url. fresh bypasses the cache read but still
// refreshes the cached copy. Cache failures are logged, never returned.
func (c *Crawler) Crawl(ctx context.Context, url string, fresh bool) (*model.CrawledPage, error) {
	log := zap.L().With(zap.String("url", url))

	if c.cache != nil && !fresh {
		cached, err := c.cache.GetCachedCrawl(ctx, url)
		if err != nil {
			log.Warn("scrape: crawl cache read failed", zap.Error(err))
		} else if cached != nil {
			log.Debug("scrape: crawl cache hit", zap.Time("crawled_at", cached.CrawledAt))
			page := cached.Page
			return &page, nil
		}
	}

	page, err := c.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.SetCachedCrawl(ctx, url, page, c.ttl); err != nil {
			log.Warn("scrape: crawl cache write failed", zap.Error(err))
		}
	}
	return page, nil
}
