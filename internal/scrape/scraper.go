// Package scrape fetches program detail pages and reduces them to the text,
// title and links the crawl stage works from.
package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/grant-cli/internal/model"
)

// ErrBlocked is returned when a page is an anti-bot challenge or a
// script-only shell rather than content.
var ErrBlocked = eris.New("scrape: page is blocked")

// Scraper fetches a single URL and returns its content.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*model.CrawledPage, error)
	Name() string
}
