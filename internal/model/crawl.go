package model

import "time"

// CrawledPage is a fetched detail page, cached in the run ledger.
type CrawledPage struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Text       string `json:"text"`
	StatusCode int    `json:"status_code"`
	Links      []Link `json:"links,omitempty"`
}

// Link is an anchor found on a crawled page.
type Link struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// CrawlCache holds cached page data for a detail URL.
type CrawlCache struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Page      CrawledPage `json:"page"`
	CrawledAt time.Time   `json:"crawled_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Download is a fetched attachment binary.
type Download struct {
	URL         string
	FileName    string
	ContentType string
	Data        []byte
}

// Extraction is the content extractor's result for one binary.
type Extraction struct {
	// Type is the detected content type, e.g. "pdf", "xlsx", "html", "image".
	Type string
	// Text is empty for images and unsupported formats.
	Text string
}
